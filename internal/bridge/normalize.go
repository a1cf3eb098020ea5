package bridge

import (
	"encoding/json"
	"strings"
)

// RemoteStatus is the bridge-reported session state, reduced to the handful
// of outcomes the connector acts on.
type RemoteStatus string

const (
	RemoteConnecting   RemoteStatus = "connecting"
	RemotePending      RemoteStatus = "pending"
	RemoteConnected    RemoteStatus = "connected"
	RemoteBlocked      RemoteStatus = "blocked"
	RemoteFailed       RemoteStatus = "failed"
	RemoteDisconnected RemoteStatus = "disconnected"
)

var statusAliases = map[string]RemoteStatus{
	"qr_pending":    RemotePending,
	"qr_generated":  RemotePending,
	"qr":            RemotePending,
	"pending":       RemotePending,
	"scan_qr":       RemotePending,
	"connected":     RemoteConnected,
	"authorized":    RemoteConnected,
	"authenticated": RemoteConnected,
	"open":          RemoteConnected,
	"paired":        RemoteConnected,
	"ready":         RemoteConnected,
	"blocked":       RemoteBlocked,
	"banned":        RemoteBlocked,
	"invalid":       RemoteBlocked,
	"error":         RemoteFailed,
	"failed":        RemoteFailed,
	"disconnected":  RemoteDisconnected,
	"closed":        RemoteDisconnected,
	"logged_out":    RemoteDisconnected,
}

// SessionState is one normalised bridge answer for create or status calls.
type SessionState struct {
	Status       RemoteStatus
	RawStatus    string
	PairingCode  string
	PhoneNumber  string
	MessageCount *int
	Error        string
}

func normalizeStatus(raw string) RemoteStatus {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return RemoteConnecting
}

// parseSessionState accepts the response shapes observed across bridge
// versions: flat {status, qr}, nested {status: {status}}, {data: {...}}, and
// the pairing code under qr, qrCode, qr_code, pairingCode or, for pending
// sessions only, message.
func parseSessionState(body []byte) (*SessionState, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}

	if data, ok := payload["data"].(map[string]any); ok {
		if _, hasStatus := payload["status"]; !hasStatus || isSuccessFlag(payload["status"]) {
			payload = data
		}
	}

	rawStatus, ok := extractStatus(payload["status"])
	if !ok {
		if connected, isBool := payload["connected"].(bool); isBool {
			rawStatus = "disconnected"
			if connected {
				rawStatus = "connected"
			}
		} else {
			return nil, false
		}
	}

	state := &SessionState{
		Status:      normalizeStatus(rawStatus),
		RawStatus:   rawStatus,
		PairingCode: firstString(payload, "qr", "qrCode", "qr_code", "pairingCode", "code"),
		PhoneNumber: firstString(payload, "phoneNumber", "phone_number", "phone"),
		Error:       firstString(payload, "error", "reason"),
	}

	if state.PairingCode == "" && state.Status == RemotePending {
		state.PairingCode = firstString(payload, "message")
	}
	if state.PairingCode != "" && state.Status == RemoteConnecting {
		state.Status = RemotePending
	}

	for _, key := range []string{"messageCount", "message_count"} {
		if n, ok := payload[key].(float64); ok {
			count := int(n)
			state.MessageCount = &count
			break
		}
	}

	return state, true
}

func extractStatus(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case map[string]any:
		return extractStatus(s["status"])
	default:
		return "", false
	}
}

// isSuccessFlag reports envelope statuses like {"status": "success", "data": {...}}.
func isSuccessFlag(v any) bool {
	switch s := v.(type) {
	case bool:
		return s
	case string:
		lower := strings.ToLower(s)
		return lower == "success" || lower == "ok"
	default:
		return false
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func parseHealth(body []byte) bool {
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return true
	}

	if ok, isBool := payload["ok"].(bool); isBool {
		return ok
	}
	if status, isString := payload["status"].(string); isString {
		switch strings.ToLower(status) {
		case "ok", "healthy", "up":
			return true
		default:
			return false
		}
	}
	return true
}
