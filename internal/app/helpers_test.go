package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/polyglotte/relay/internal/core"
)

// fakeConn captures frames instead of writing to a socket.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// events decodes every captured frame and returns their type field.
func (f *fakeConn) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(fr, &env); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}
