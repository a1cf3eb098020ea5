package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/whalix/dashboard-server/internal/model"
)

const DemoPhoneNumber = "+2250700000001"

type demoSession struct {
	code      string
	createdAt time.Time
}

// DemoClient simulates a bridge: a fresh session shows a pairing code and
// reports itself paired once pairingDelay has elapsed.
type DemoClient struct {
	mu           sync.Mutex
	sessions     map[string]demoSession
	pairingDelay time.Duration
	now          func() time.Time
}

func NewDemoClient(pairingDelay time.Duration) *DemoClient {
	return &DemoClient{
		sessions:     make(map[string]demoSession),
		pairingDelay: pairingDelay,
		now:          time.Now,
	}
}

func (c *DemoClient) Health(ctx context.Context) error {
	return nil
}

func (c *DemoClient) CreateSession(ctx context.Context, tenantID string) (*SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	session := demoSession{
		code:      fmt.Sprintf("whalix-demo-%d", now.UnixMilli()),
		createdAt: now,
	}
	c.sessions[tenantID] = session

	return &SessionState{
		Status:      RemotePending,
		RawStatus:   "qr_generated",
		PairingCode: session.code,
	}, nil
}

func (c *DemoClient) Status(ctx context.Context, tenantID string) (*SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[tenantID]
	if !ok {
		return &SessionState{Status: RemoteDisconnected, RawStatus: "disconnected"}, nil
	}

	if c.now().Sub(session.createdAt) >= c.pairingDelay {
		count := 0
		return &SessionState{
			Status:       RemoteConnected,
			RawStatus:    "connected",
			PhoneNumber:  DemoPhoneNumber,
			MessageCount: &count,
		}, nil
	}

	return &SessionState{
		Status:      RemotePending,
		RawStatus:   "qr_pending",
		PairingCode: session.code,
	}, nil
}

func (c *DemoClient) Disconnect(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, tenantID)
	return nil
}

func (c *DemoClient) Metrics(ctx context.Context, tenantID string) (*model.BridgeMetrics, error) {
	metrics := &model.BridgeMetrics{
		TotalMessages:       1247,
		MessagesToday:       47,
		MessagesWaiting:     3,
		AvgResponseTime:     2.1,
		AISuccessRate:       94.5,
		OrdersToday:         23,
		RevenueToday:        285000,
		NewCustomers:        8,
		ConversionRate:      3.2,
		ActiveConversations: 12,
		CurrentLoad:         25,
	}
	metrics.VsYesterday.Messages = 12
	metrics.VsYesterday.Orders = 28
	metrics.VsYesterday.Revenue = 46
	return metrics, nil
}
