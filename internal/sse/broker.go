package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/whalix/dashboard-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	clientBufferSize = 16
)

// Event is one session transition as streamed to dashboards. Data is the
// session snapshot JSON.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is one open dashboard stream. Done is closed on unsubscribe and on
// broker shutdown.
type Client struct {
	TenantID string
	Events   chan Event
	Done     chan struct{}
}

// Publisher is the write side of the broker.
type Publisher interface {
	Publish(ctx context.Context, tenantID string, event Event) error
}

type tenantSubscription struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans session events out to dashboard streams. Events travel over
// Redis pub/sub so every server instance sees every tenant's transitions.
type Broker struct {
	redis   *redisclient.Client
	tenants map[string]*tenantSubscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		tenants: make(map[string]*tenantSubscription),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(tenantID string) *Client {
	client := &Client{
		TenantID: tenantID,
		Events:   make(chan Event, clientBufferSize),
		Done:     make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.tenants[tenantID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		sub = &tenantSubscription{
			clients: make(map[*Client]bool),
			cancel:  cancel,
		}
		b.tenants[tenantID] = sub
		go b.subscribeToRedis(ctx, tenantID)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Str("tenantId", tenantID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.tenants[client.TenantID]
	if !ok || !sub.clients[client] {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.tenants, client.TenantID)
	}

	log.Info().
		Str("tenantId", client.TenantID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, tenantID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(tenantID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, tenantID string) {
	channel := redisclient.SessionChannel(tenantID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("tenantId", tenantID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(tenantID, event)
		}
	}
}

// broadcast delivers to every local stream of the tenant. A stream that
// fell behind loses its oldest queued event so it still ends on the newest
// session state.
func (b *Broker) broadcast(tenantID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, ok := b.tenants[tenantID]
	if !ok {
		return
	}

	for client := range sub.clients {
		select {
		case client.Events <- event:
			continue
		default:
		}

		select {
		case <-client.Events:
		default:
		}
		select {
		case client.Events <- event:
		default:
		}

		log.Warn().
			Str("tenantId", tenantID).
			Str("eventType", event.Type).
			Msg("sse client lagging, dropped oldest event")
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.tenants {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.tenants = make(map[string]*tenantSubscription)
}
