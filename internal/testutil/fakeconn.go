package testutil

import (
	"sync"

	"github.com/npratt/onboard/internal/wsconn"
)

// FakeOpener records every Open call and hands back a FakeConn that the
// test drives by hand.
type FakeOpener struct {
	mu    sync.Mutex
	conns []*FakeConn
}

// NewFakeOpener creates an empty FakeOpener.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{}
}

// Open implements wsconn.Opener.
func (o *FakeOpener) Open(address string, deliver func(wsconn.Event)) wsconn.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := &FakeConn{Address: address, deliver: deliver}
	o.conns = append(o.conns, c)
	return c
}

// Conns returns every connection opened so far.
func (o *FakeOpener) Conns() []*FakeConn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*FakeConn(nil), o.conns...)
}

// Count returns the number of Open calls.
func (o *FakeOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.conns)
}

// Last returns the most recent connection, or nil.
func (o *FakeOpener) Last() *FakeConn {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.conns) == 0 {
		return nil
	}
	return o.conns[len(o.conns)-1]
}

// FakeConn is a hand-driven connection. Unlike the real dialer it keeps
// delivering after Close, so tests can play a transport that races its
// own shutdown.
type FakeConn struct {
	Address string

	mu      sync.Mutex
	deliver func(wsconn.Event)
	closes  int
}

// Close implements wsconn.Handle and counts calls.
func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

// CloseCalls returns how many times Close was called.
func (c *FakeConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Send delivers ev as if the transport produced it.
func (c *FakeConn) Send(ev wsconn.Event) {
	c.mu.Lock()
	deliver := c.deliver
	c.mu.Unlock()
	deliver(ev)
}

// Open delivers an Opened event.
func (c *FakeConn) Open() {
	c.Send(wsconn.Event{Kind: wsconn.Opened})
}

// Message delivers one text frame.
func (c *FakeConn) Message(data string) {
	c.Send(wsconn.Event{Kind: wsconn.Message, Data: []byte(data)})
}

// Closed delivers a Closed event with the given code and reason.
func (c *FakeConn) Closed(code int, reason string) {
	c.Send(wsconn.Event{Kind: wsconn.Closed, Code: code, Reason: reason})
}
