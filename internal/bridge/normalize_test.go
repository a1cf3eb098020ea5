package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected RemoteStatus
	}{
		{"qr_pending", RemotePending},
		{"qr_generated", RemotePending},
		{"QR", RemotePending},
		{"pending", RemotePending},
		{"connected", RemoteConnected},
		{"authorized", RemoteConnected},
		{"open", RemoteConnected},
		{"paired", RemoteConnected},
		{"blocked", RemoteBlocked},
		{"banned", RemoteBlocked},
		{"invalid", RemoteBlocked},
		{"error", RemoteFailed},
		{"failed", RemoteFailed},
		{"disconnected", RemoteDisconnected},
		{"closed", RemoteDisconnected},
		{"logged_out", RemoteDisconnected},
		{"initializing", RemoteConnecting},
		{"", RemoteConnecting},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizeStatus(tc.raw))
		})
	}
}

func TestParseSessionState(t *testing.T) {
	t.Run("flat pending with qr", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"qr_generated","qr":"2@abc"}`))
		require.True(t, ok)
		assert.Equal(t, RemotePending, state.Status)
		assert.Equal(t, "2@abc", state.PairingCode)
		assert.Equal(t, "qr_generated", state.RawStatus)
	})

	t.Run("qrCode key", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"qr_pending","qrCode":"data:image/png;base64,AAA"}`))
		require.True(t, ok)
		assert.Equal(t, "data:image/png;base64,AAA", state.PairingCode)
	})

	t.Run("message holds code only when pending", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"qr_pending","message":"2@xyz"}`))
		require.True(t, ok)
		assert.Equal(t, "2@xyz", state.PairingCode)

		state, ok = parseSessionState([]byte(`{"status":"connected","message":"welcome back"}`))
		require.True(t, ok)
		assert.Empty(t, state.PairingCode)
	})

	t.Run("nested status object", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":{"status":"authorized"},"phoneNumber":"+22507000000"}`))
		require.True(t, ok)
		assert.Equal(t, RemoteConnected, state.Status)
		assert.Equal(t, "+22507000000", state.PhoneNumber)
	})

	t.Run("data envelope", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"success","data":{"status":"paired","phone_number":"+2250101","message_count":12}}`))
		require.True(t, ok)
		assert.Equal(t, RemoteConnected, state.Status)
		assert.Equal(t, "+2250101", state.PhoneNumber)
		require.NotNil(t, state.MessageCount)
		assert.Equal(t, 12, *state.MessageCount)
	})

	t.Run("boolean envelope", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":true,"data":{"status":"qr_generated","qr":"2@abc"}}`))
		require.True(t, ok)
		assert.Equal(t, RemotePending, state.Status)
		assert.Equal(t, "2@abc", state.PairingCode)

		_, ok = parseSessionState([]byte(`{"status":false,"data":{"status":"connected"}}`))
		assert.False(t, ok)
	})

	t.Run("unknown status with code is pending", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"starting","qr":"2@abc"}`))
		require.True(t, ok)
		assert.Equal(t, RemotePending, state.Status)
	})

	t.Run("unknown status without code is connecting", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"starting"}`))
		require.True(t, ok)
		assert.Equal(t, RemoteConnecting, state.Status)
		assert.Empty(t, state.PairingCode)
	})

	t.Run("boolean connected flag", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"connected":true}`))
		require.True(t, ok)
		assert.Equal(t, RemoteConnected, state.Status)
	})

	t.Run("blocked carries reason", func(t *testing.T) {
		state, ok := parseSessionState([]byte(`{"status":"banned","reason":"spam"}`))
		require.True(t, ok)
		assert.Equal(t, RemoteBlocked, state.Status)
		assert.Equal(t, "spam", state.Error)
	})

	t.Run("rejects payload without status", func(t *testing.T) {
		_, ok := parseSessionState([]byte(`{"foo":"bar"}`))
		assert.False(t, ok)
	})

	t.Run("rejects non-json", func(t *testing.T) {
		_, ok := parseSessionState([]byte(`<html>bad gateway</html>`))
		assert.False(t, ok)
	})
}

func TestParseHealth(t *testing.T) {
	assert.True(t, parseHealth(nil))
	assert.True(t, parseHealth([]byte(`{"ok":true}`)))
	assert.False(t, parseHealth([]byte(`{"ok":false}`)))
	assert.True(t, parseHealth([]byte(`{"status":"ok"}`)))
	assert.False(t, parseHealth([]byte(`{"status":"degraded"}`)))
	assert.True(t, parseHealth([]byte(`pong`)))
}

func TestRenderPairingImage(t *testing.T) {
	t.Run("renders raw code as png data uri", func(t *testing.T) {
		img, err := RenderPairingImage("2@abcdef")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
		assert.Greater(t, len(img), len("data:image/png;base64,"))
	})

	t.Run("passes data uri through", func(t *testing.T) {
		img, err := RenderPairingImage("data:image/png;base64,AAA")
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,AAA", img)
	})

	t.Run("empty code renders nothing", func(t *testing.T) {
		img, err := RenderPairingImage("")
		require.NoError(t, err)
		assert.Empty(t, img)
	})
}
