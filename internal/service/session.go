package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whalix/dashboard-server/internal/bridge"
	"github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/model"
	"github.com/whalix/dashboard-server/internal/util"
)

const (
	defaultPollInterval    = 3 * time.Second
	defaultPollMaxAttempts = 40

	MsgBackendUnavailable = "Serveur backend indisponible"
	MsgBridgeUnavailable  = "Connexion au serveur WhatsApp indisponible"
	MsgUnexpectedResponse = "Réponse inattendue du serveur"
	MsgAccountBlocked     = "Compte WhatsApp bloqué ou invalide"
	MsgPairingExpired     = "QR code expiré (pairing code expired). Veuillez réessayer."
)

// SessionObserver receives every session transition of every tenant.
type SessionObserver interface {
	SessionChanged(prev, next model.Session)
}

// SessionListener is the per-tenant change callback. Changes of one tenant
// are delivered in transition order, outside the connector lock.
type SessionListener func(model.Session)

type ConnectorOptions struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

type listenerSlot struct {
	fn SessionListener
}

type sessionChange struct {
	prev     model.Session
	next     model.Session
	listener SessionListener
}

type tenantEntry struct {
	session    model.Session
	generation uint64
	cancel     context.CancelFunc
	listener   *listenerSlot

	// pending is delivered in order by whichever caller sets draining.
	pending  []sessionChange
	draining bool
}

// SessionConnector owns the WhatsApp pairing lifecycle of every tenant
// served by this process. Each pairing attempt is stamped with a generation;
// results from a superseded attempt are dropped.
type SessionConnector struct {
	bridge       bridge.Client
	observer     SessionObserver
	pollInterval time.Duration
	maxAttempts  int
	now          func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantEntry
	// nextGen is connector-wide so a released tenant never reuses a
	// generation still held by an attempt in flight.
	nextGen uint64

	baseCtx   context.Context
	cancelAll context.CancelFunc
	loops     sync.WaitGroup
}

func NewSessionConnector(client bridge.Client, observer SessionObserver, opts ConnectorOptions) *SessionConnector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = defaultPollMaxAttempts
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &SessionConnector{
		bridge:       client,
		observer:     observer,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.PollMaxAttempts,
		now:          time.Now,
		tenants:      make(map[string]*tenantEntry),
		baseCtx:      baseCtx,
		cancelAll:    cancel,
	}
}

// Connect starts a new pairing attempt, superseding any attempt in flight.
// Bridge failures end in the error state; the only returned error is a
// missing tenant id.
func (c *SessionConnector) Connect(ctx context.Context, tenantID string) (model.Session, error) {
	if tenantID == "" {
		return model.Session{}, errors.MissingRequired("tenantId")
	}

	c.mu.Lock()
	e := c.entryLocked(tenantID)
	c.stopPollLocked(e)
	gen := c.advanceLocked(e)
	c.mu.Unlock()

	c.apply(tenantID, gen, func(s *model.Session) {
		s.Status = model.SessionStatusConnecting
		s.PairingCode = ""
		s.PairingImage = ""
		s.PhoneNumber = ""
		s.LastError = ""
		s.PollAttempts = 0
	})

	log.Info().Str("tenantId", tenantID).Msg("whatsapp connect requested")

	if err := c.bridge.Health(ctx); err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Msg("bridge health probe failed")
		snapshot, _ := c.apply(tenantID, gen, toError(MsgBackendUnavailable))
		return snapshot, nil
	}

	state, err := c.bridge.CreateSession(ctx, tenantID)
	if err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Msg("bridge session create failed")
		snapshot, _ := c.apply(tenantID, gen, toError(failureMessage(err)))
		return snapshot, nil
	}

	return c.applyCreated(tenantID, gen, state), nil
}

func (c *SessionConnector) applyCreated(tenantID string, gen uint64, state *bridge.SessionState) model.Session {
	switch state.Status {
	case bridge.RemoteConnected:
		snapshot, _ := c.apply(tenantID, gen, toConnected(state, c.now()))
		return snapshot
	case bridge.RemoteBlocked:
		snapshot, _ := c.apply(tenantID, gen, toError(MsgAccountBlocked))
		return snapshot
	case bridge.RemoteFailed:
		snapshot, _ := c.apply(tenantID, gen, toError(remoteFailureMessage(state)))
		return snapshot
	}

	if state.PairingCode != "" {
		image := renderImage(tenantID, state.PairingCode)
		snapshot, applied := c.apply(tenantID, gen, toQRPending(state, image))
		if applied {
			c.startPoll(tenantID, gen)
		}
		return snapshot
	}

	// Accepted without a code yet: keep connecting and let the poll loop
	// pick up the code.
	snapshot, applied := c.apply(tenantID, gen, func(s *model.Session) {
		if state.MessageCount != nil {
			s.MessageCount = state.MessageCount
		}
	})
	if applied {
		c.startPoll(tenantID, gen)
	}
	return snapshot
}

// Disconnect stops polling and tears the bridge session down. The local
// state ends disconnected whatever the bridge answers.
func (c *SessionConnector) Disconnect(ctx context.Context, tenantID string) model.Session {
	c.mu.Lock()
	e := c.entryLocked(tenantID)
	c.stopPollLocked(e)
	gen := c.advanceLocked(e)
	c.mu.Unlock()

	if err := c.bridge.Disconnect(ctx, tenantID); err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Msg("bridge disconnect failed, forcing local state")
	}

	snapshot, _ := c.apply(tenantID, gen, func(s *model.Session) {
		s.Status = model.SessionStatusDisconnected
		s.PairingCode = ""
		s.PairingImage = ""
		s.PhoneNumber = ""
		s.LastError = ""
		s.PollAttempts = 0
	})

	log.Info().Str("tenantId", tenantID).Msg("whatsapp disconnected")

	return snapshot
}

// PollStatus performs one status read for the current pairing attempt and
// reports whether polling should stop.
func (c *SessionConnector) PollStatus(ctx context.Context, tenantID string) (model.Session, bool) {
	c.mu.Lock()
	e, ok := c.tenants[tenantID]
	if !ok {
		c.mu.Unlock()
		return model.NewSession(tenantID), true
	}
	gen := e.generation
	c.mu.Unlock()

	return c.poll(ctx, tenantID, gen)
}

func (c *SessionConnector) poll(ctx context.Context, tenantID string, gen uint64) (model.Session, bool) {
	c.mu.Lock()
	e, ok := c.tenants[tenantID]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		return c.Get(tenantID), true
	}
	if e.session.Status != model.SessionStatusConnecting && e.session.Status != model.SessionStatusQRPending {
		snapshot := e.session
		c.mu.Unlock()
		return snapshot, true
	}
	e.session.PollAttempts++
	attempt := e.session.PollAttempts
	c.mu.Unlock()

	state, err := c.bridge.Status(ctx, tenantID)
	if ctx.Err() != nil {
		return c.Get(tenantID), true
	}
	if err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Int("attempt", attempt).Msg("bridge status poll failed")
		return c.finish(tenantID, gen, toError(failureMessage(err)))
	}

	switch state.Status {
	case bridge.RemoteConnected:
		log.Info().Str("tenantId", tenantID).Int("attempt", attempt).Msg("whatsapp paired")
		return c.finish(tenantID, gen, toConnected(state, c.now()))
	case bridge.RemoteBlocked:
		return c.finish(tenantID, gen, toError(MsgAccountBlocked))
	case bridge.RemoteFailed:
		return c.finish(tenantID, gen, toError(remoteFailureMessage(state)))
	}

	if attempt >= c.maxAttempts {
		log.Info().Str("tenantId", tenantID).Int("attempt", attempt).Msg("pairing code expired")
		return c.finish(tenantID, gen, toError(MsgPairingExpired))
	}

	if state.PairingCode != "" {
		current := c.Get(tenantID)
		image := current.PairingImage
		if state.PairingCode != current.PairingCode {
			image = renderImage(tenantID, state.PairingCode)
		}
		snapshot, applied := c.apply(tenantID, gen, toQRPending(state, image))
		return snapshot, !applied
	}

	snapshot, applied := c.apply(tenantID, gen, func(s *model.Session) {
		if state.MessageCount != nil {
			s.MessageCount = state.MessageCount
		}
	})
	return snapshot, !applied
}

// finish applies a terminal transition and releases the poll loop.
func (c *SessionConnector) finish(tenantID string, gen uint64, mutate func(*model.Session)) (model.Session, bool) {
	snapshot, applied := c.apply(tenantID, gen, mutate)
	if applied {
		c.mu.Lock()
		if e, ok := c.tenants[tenantID]; ok && e.generation == gen {
			c.stopPollLocked(e)
		}
		c.mu.Unlock()
	}
	return snapshot, true
}

func (c *SessionConnector) startPoll(tenantID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.tenants[tenantID]
	if !ok || e.generation != gen || e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	e.cancel = cancel

	c.loops.Add(1)
	go c.pollLoop(ctx, tenantID, gen)
}

func (c *SessionConnector) pollLoop(ctx context.Context, tenantID string, gen uint64) {
	defer c.loops.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, stop := c.poll(ctx, tenantID, gen); stop {
			return
		}
	}
}

// Get returns a snapshot of the tenant's session; unknown tenants are idle.
func (c *SessionConnector) Get(tenantID string) model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.tenants[tenantID]; ok {
		return e.session
	}
	return model.NewSession(tenantID)
}

// Listen registers the tenant's listener, replacing any previous one. The
// returned func unregisters it if it is still the current listener.
func (c *SessionConnector) Listen(tenantID string, fn SessionListener) func() {
	slot := &listenerSlot{fn: fn}

	c.mu.Lock()
	e := c.entryLocked(tenantID)
	e.listener = slot
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.tenants[tenantID]; ok && e.listener == slot {
			e.listener = nil
		}
	}
}

// Restore seeds a tenant with a previously persisted connected session. It
// never overrides live state.
func (c *SessionConnector) Restore(session model.Session) bool {
	if session.TenantID == "" || session.Status != model.SessionStatusConnected {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tenants[session.TenantID]; ok {
		return false
	}
	session.PairingCode = ""
	session.PairingImage = ""
	session.LastError = ""
	e := &tenantEntry{session: session}
	c.advanceLocked(e)
	c.tenants[session.TenantID] = e
	return true
}

// Release forgets the tenant: polling stops, the listener is dropped and the
// session returns to idle.
func (c *SessionConnector) Release(tenantID string) {
	c.mu.Lock()
	e, ok := c.tenants[tenantID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.stopPollLocked(e)
	delete(c.tenants, tenantID)
	e.pending = append(e.pending, sessionChange{prev: e.session, next: model.NewSession(tenantID)})
	c.mu.Unlock()

	c.deliver(e)

	log.Debug().Str("tenantId", tenantID).Msg("session released")
}

// Close stops every poll loop and waits for them to exit.
func (c *SessionConnector) Close() {
	c.mu.Lock()
	c.cancelAll()
	for _, e := range c.tenants {
		c.stopPollLocked(e)
	}
	c.mu.Unlock()

	c.loops.Wait()
}

// ActivePolls returns the number of tenants with a running poll loop.
func (c *SessionConnector) ActivePolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.tenants {
		if e.cancel != nil {
			n++
		}
	}
	return n
}

func (c *SessionConnector) entryLocked(tenantID string) *tenantEntry {
	e, ok := c.tenants[tenantID]
	if !ok {
		e = &tenantEntry{session: model.NewSession(tenantID)}
		c.tenants[tenantID] = e
	}
	return e
}

func (c *SessionConnector) advanceLocked(e *tenantEntry) uint64 {
	c.nextGen++
	e.generation = c.nextGen
	return e.generation
}

func (c *SessionConnector) stopPollLocked(e *tenantEntry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// apply mutates the tenant's session if gen is still current and notifies
// the observer and listener outside the connector lock.
func (c *SessionConnector) apply(tenantID string, gen uint64, mutate func(*model.Session)) (model.Session, bool) {
	c.mu.Lock()
	e, ok := c.tenants[tenantID]
	if !ok || e.generation != gen {
		snapshot := model.NewSession(tenantID)
		if ok {
			snapshot = e.session
		}
		c.mu.Unlock()
		return snapshot, false
	}

	prev := e.session
	next := prev
	mutate(&next)
	next.UpdatedAt = c.now()
	e.session = next

	change := sessionChange{prev: prev, next: next}
	if e.listener != nil {
		change.listener = e.listener.fn
	}
	e.pending = append(e.pending, change)
	c.mu.Unlock()

	c.deliver(e)

	return next, true
}

// deliver drains the tenant's pending changes unless another goroutine is
// already doing so.
func (c *SessionConnector) deliver(e *tenantEntry) {
	c.mu.Lock()
	if e.draining {
		c.mu.Unlock()
		return
	}
	e.draining = true

	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		c.mu.Unlock()

		for _, change := range batch {
			if c.observer != nil {
				c.observer.SessionChanged(change.prev, change.next)
			}
			if change.listener != nil {
				change.listener(change.next)
			}
		}

		c.mu.Lock()
	}

	e.draining = false
	c.mu.Unlock()
}

func toQRPending(state *bridge.SessionState, image string) func(*model.Session) {
	return func(s *model.Session) {
		s.Status = model.SessionStatusQRPending
		s.PairingCode = state.PairingCode
		s.PairingImage = image
		s.PhoneNumber = ""
		s.LastError = ""
		if state.MessageCount != nil {
			s.MessageCount = state.MessageCount
		}
	}
}

func toConnected(state *bridge.SessionState, now time.Time) func(*model.Session) {
	return func(s *model.Session) {
		s.Status = model.SessionStatusConnected
		s.PairingCode = ""
		s.PairingImage = ""
		s.PhoneNumber = state.PhoneNumber
		s.LastError = ""
		s.LastConnectedAt = &now
		if state.MessageCount != nil {
			s.MessageCount = state.MessageCount
		}
	}
}

func toError(message string) func(*model.Session) {
	return func(s *model.Session) {
		s.Status = model.SessionStatusError
		s.PairingCode = ""
		s.PairingImage = ""
		s.PhoneNumber = ""
		s.LastError = message
	}
}

func renderImage(tenantID, code string) string {
	image, err := bridge.RenderPairingImage(code)
	if err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Str("code", util.MaskCode(code)).Msg("failed to render pairing image")
		return ""
	}
	return image
}

func failureMessage(err error) string {
	appErr, ok := errors.As(err)
	if !ok {
		return MsgBridgeUnavailable
	}

	switch appErr.Code {
	case errors.ErrCodeBridgeProtocol:
		return appErr.Message
	case errors.ErrCodeSessionBlocked:
		return MsgAccountBlocked
	case errors.ErrCodePairingExpired:
		return MsgPairingExpired
	default:
		return MsgBridgeUnavailable
	}
}

func remoteFailureMessage(state *bridge.SessionState) string {
	if state.Error != "" {
		return state.Error
	}
	return MsgUnexpectedResponse
}
