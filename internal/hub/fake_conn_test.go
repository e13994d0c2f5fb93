package hub

import (
	"context"
	"sync"
)

// fakeConn is a no-op transport for tests that only need a Session to exist,
// never a real socket.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	code   int
	reason string
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error { return nil }

func (f *fakeConn) Ping(ctx context.Context) error { return nil }

func (f *fakeConn) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	f.reason = reason
	return nil
}
