package util

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, TokenPrefix))
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("wlx_abc")

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken("wlx_abc"))
	assert.Equal(t, hash, HashToken(" wlx_abc\n"))
	assert.NotEqual(t, hash, HashToken("wlx_abd"))
}

func TestConstantTimeEqual(t *testing.T) {
	t.Run("returns true for equal strings", func(t *testing.T) {
		assert.True(t, ConstantTimeEqual("abc", "abc"))
	})

	t.Run("returns false for different strings", func(t *testing.T) {
		assert.False(t, ConstantTimeEqual("abc", "def"))
	})

	t.Run("returns false for different lengths", func(t *testing.T) {
		assert.False(t, ConstantTimeEqual("abc", "abcd"))
	})

	t.Run("returns true for empty strings", func(t *testing.T) {
		assert.True(t, ConstantTimeEqual("", ""))
	})
}

func TestMaskCode(t *testing.T) {
	t.Run("masks long codes", func(t *testing.T) {
		assert.Equal(t, "ABCD-****", MaskCode("ABCD-EFGH"))
	})

	t.Run("fully masks short codes", func(t *testing.T) {
		assert.Equal(t, "****", MaskCode("abc"))
	})
}

func TestMaskPhone(t *testing.T) {
	t.Run("keeps prefix and last digits", func(t *testing.T) {
		assert.Equal(t, "+225****01", MaskPhone("+2250700000001"))
	})

	t.Run("fully masks short numbers", func(t *testing.T) {
		assert.Equal(t, "****", MaskPhone("1234"))
	})
}

func TestIsValidTenantID(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"demo", true},
		{"resto-42", true},
		{"tenant_1.eu", true},
		{"", false},
		{"-leading", false},
		{"with space", false},
		{"../etc", false},
		{"a/b", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsValidTenantID(tc.input))
		})
	}
}
