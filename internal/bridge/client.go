package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/whalix/dashboard-server/internal/config"
	"github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/model"
)

const (
	maxResponseBytes = 1 << 20
	rateBurst        = 5

	msgUnexpectedResponse = "Réponse inattendue du serveur"
)

// Client is the WhatsApp bridge as seen by the dashboard server. Every
// method returns *errors.AppError values: BRIDGE_UNAVAILABLE for transport
// failures and BRIDGE_PROTOCOL for unexpected answers.
type Client interface {
	Health(ctx context.Context) error
	CreateSession(ctx context.Context, tenantID string) (*SessionState, error)
	Status(ctx context.Context, tenantID string) (*SessionState, error)
	Disconnect(ctx context.Context, tenantID string) error
	Metrics(ctx context.Context, tenantID string) (*model.BridgeMetrics, error)
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	health  singleflight.Group
}

func NewHTTPClient(baseURL string, timeout time.Duration, ratePerSecond float64) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), rateBurst),
	}
}

// Health probes the bridge. Concurrent probes share one request.
func (c *HTTPClient) Health(ctx context.Context) error {
	ch := c.health.DoChan("health", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.BridgeHealthTimeout)
		defer cancel()

		body, err := c.do(probeCtx, http.MethodGet, "/health", nil)
		if err != nil {
			return nil, err
		}
		if !parseHealth(body) {
			return nil, errors.BridgeProtocol("Serveur backend indisponible")
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return errors.BridgeUnavailable(ctx.Err())
	}
}

func (c *HTTPClient) CreateSession(ctx context.Context, tenantID string) (*SessionState, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/session/create", map[string]string{"tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	return decodeState(body)
}

func (c *HTTPClient) Status(ctx context.Context, tenantID string) (*SessionState, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(tenantID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	return decodeState(body)
}

func (c *HTTPClient) Disconnect(ctx context.Context, tenantID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/session/"+url.PathEscape(tenantID)+"/disconnect", nil)
	return err
}

func (c *HTTPClient) Metrics(ctx context.Context, tenantID string) (*model.BridgeMetrics, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/metrics/"+url.PathEscape(tenantID), nil)
	if err != nil {
		return nil, err
	}

	var metrics model.BridgeMetrics
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, errors.BridgeProtocol(msgUnexpectedResponse).WithCause(err)
	}
	return &metrics, nil
}

func decodeState(body []byte) (*SessionState, error) {
	state, ok := parseSessionState(body)
	if !ok {
		return nil, errors.BridgeProtocol(msgUnexpectedResponse)
	}
	return state, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.BridgeUnavailable(err)
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Internal("failed to encode bridge request").WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.BridgeUnavailable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("bridge request failed")
		return nil, errors.BridgeUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.BridgeUnavailable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("bridge returned error status")
		return nil, errors.BridgeProtocol(fmt.Sprintf("Erreur serveur: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))).
			WithDetails(map[string]int{"status": resp.StatusCode})
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("bridge request completed")

	return body, nil
}
