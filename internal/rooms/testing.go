package rooms

import (
	"time"

	"github.com/roomforge/server/internal/authz"
)

// FakeTransport is an in-memory Transport for tests, recording every
// frame written to it instead of touching a real socket.
type FakeTransport struct {
	Written [][]byte
	Closed  bool
}

func NewFakeTransport() *FakeTransport { return &FakeTransport{} }

func (f *FakeTransport) WriteMessage(messageType int, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.Written = append(f.Written, cp)
	return nil
}

func (f *FakeTransport) ReadMessage() (int, []byte, error) {
	select {}
}

func (f *FakeTransport) Close() error                           { f.Closed = true; return nil }
func (f *FakeTransport) SetReadLimit(limit int64)               {}
func (f *FakeTransport) SetReadDeadline(t time.Time) error      { return nil }
func (f *FakeTransport) SetWriteDeadline(t time.Time) error     { return nil }
func (f *FakeTransport) SetPongHandler(h func(string) error)    {}

// NewTestConn builds a Conn over a FakeTransport for use in unit tests
// outside the rooms package.
func NewTestConn(identity authz.Identity) (*Conn, *FakeTransport) {
	ft := NewFakeTransport()
	return NewConn(ft, identity), ft
}
