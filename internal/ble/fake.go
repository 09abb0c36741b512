package ble

import (
	"context"
	"sync"
)

// Fake is an in-memory Peripheral used by internal/session's tests, in
// the same spirit as the teacher's TestLink fake transport
// (npi_test.go): it records every outbound Write and lets a test push
// inbound notifications on demand via Notify.
type Fake struct {
	mu         sync.Mutex
	connected  bool
	onNotify   NotifyFunc
	Written    []FakeWrite
	ConnectErr error
}

// FakeWrite records one Write call for test assertions.
type FakeWrite struct {
	Char Characteristic
	Data []byte
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Connect(ctx context.Context, addr string) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) Subscribe(ctx context.Context, onNotify NotifyFunc) error {
	f.mu.Lock()
	f.onNotify = onNotify
	f.mu.Unlock()
	return nil
}

func (f *Fake) Write(ctx context.Context, char Characteristic, data []byte) error {
	f.mu.Lock()
	f.Written = append(f.Written, FakeWrite{Char: char, Data: append([]byte(nil), data...)})
	f.mu.Unlock()
	return nil
}

// Notify delivers one inbound notification to whatever callback was
// passed to Subscribe, as if the device had sent it.
func (f *Fake) Notify(char Characteristic, data []byte) {
	f.mu.Lock()
	cb := f.onNotify
	f.mu.Unlock()
	if cb != nil {
		cb(char, data)
	}
}
