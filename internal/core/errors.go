package core

import "errors"

// Error taxonomy for the realtime layer. Adapters wrap these with context
// via fmt.Errorf("...: %w", ...) and map them to wire error codes; none of
// them is fatal to the process or to other connections.
var (
	// ErrProtocol marks a malformed or out-of-order client event, e.g.
	// join-room before identify. The event is dropped, the connection stays.
	ErrProtocol = errors.New("protocol error")

	// ErrNotFound marks a referenced conversation, booking or notification
	// that does not exist. Surfaced to the originating connection only.
	ErrNotFound = errors.New("not found")

	// ErrIllegalTransition marks a reschedule action attempted from a state
	// that does not permit it, or by a party not entitled to perform it.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrStoreUnavailable marks a collaborator failure. The operation fails
	// closed: no broadcast, no notification; the client retries.
	ErrStoreUnavailable = errors.New("store unavailable")
)
