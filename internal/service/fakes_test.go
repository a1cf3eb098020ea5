package service

import (
	"context"
	"sync"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/model"
)

type fakeBridge struct {
	mu sync.Mutex

	healthErr     error
	createFunc    func(tenantID string) (*bridge.SessionState, error)
	statusFunc    func(tenantID string) (*bridge.SessionState, error)
	disconnectErr error
	metricsFunc   func(tenantID string) (*model.BridgeMetrics, error)

	healthCalls     int
	createCalls     int
	statusCalls     int
	disconnectCalls int
}

func (f *fakeBridge) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCalls++
	return f.healthErr
}

func (f *fakeBridge) CreateSession(ctx context.Context, tenantID string) (*bridge.SessionState, error) {
	f.mu.Lock()
	f.createCalls++
	fn := f.createFunc
	f.mu.Unlock()

	if fn == nil {
		return &bridge.SessionState{Status: bridge.RemoteConnecting}, nil
	}
	return fn(tenantID)
}

func (f *fakeBridge) Status(ctx context.Context, tenantID string) (*bridge.SessionState, error) {
	f.mu.Lock()
	f.statusCalls++
	fn := f.statusFunc
	f.mu.Unlock()

	if fn == nil {
		return &bridge.SessionState{Status: bridge.RemotePending}, nil
	}
	return fn(tenantID)
}

func (f *fakeBridge) Disconnect(ctx context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	return f.disconnectErr
}

func (f *fakeBridge) Metrics(ctx context.Context, tenantID string) (*model.BridgeMetrics, error) {
	f.mu.Lock()
	fn := f.metricsFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, context.DeadlineExceeded
	}
	return fn(tenantID)
}

func (f *fakeBridge) setStatus(fn func(tenantID string) (*bridge.SessionState, error)) {
	f.mu.Lock()
	f.statusFunc = fn
	f.mu.Unlock()
}

func (f *fakeBridge) calls() (create, status, disconnect int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.statusCalls, f.disconnectCalls
}

type transition struct {
	prev model.Session
	next model.Session
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []transition
}

func (o *recordingObserver) SessionChanged(prev, next model.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{prev: prev, next: next})
}

func (o *recordingObserver) statuses() []model.SessionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]model.SessionStatus, len(o.transitions))
	for i, tr := range o.transitions {
		out[i] = tr.next.Status
	}
	return out
}

func (o *recordingObserver) all() []transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transition(nil), o.transitions...)
}

func pendingWithCode(code string) func(string) (*bridge.SessionState, error) {
	return func(string) (*bridge.SessionState, error) {
		return &bridge.SessionState{Status: bridge.RemotePending, PairingCode: code}, nil
	}
}

func connectedAs(phone string) func(string) (*bridge.SessionState, error) {
	return func(string) (*bridge.SessionState, error) {
		return &bridge.SessionState{Status: bridge.RemoteConnected, PhoneNumber: phone}, nil
	}
}
