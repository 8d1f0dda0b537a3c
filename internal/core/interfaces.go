package core

// Frame is a raw outbound payload, already encoded.
type Frame []byte

// ConnID identifies one live connection for its whole transport lifetime.
type ConnID string

// Conn abstracts the outbound half of a client connection.
// Owned by the adapter; the adapter must Close() it. A send is
// fire-and-forget into the connection's outbound queue: a full queue is a
// diagnostic concern for the caller, never a delivery guarantee.
type Conn interface {
	TrySend(Frame) error
	Close()
}
