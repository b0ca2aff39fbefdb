package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "16-bit UUID", input: "2902", expected: "2902"},
		{name: "16-bit UUID with 0x prefix", input: "0x2902", expected: "2902"},
		{name: "16-bit UUID with 0X prefix", input: "0X180D", expected: "180d"},
		{name: "SIG base UUID with dashes", input: "0000180d-0000-1000-8000-00805f9b34fb", expected: "180d"},
		{name: "SIG base UUID uppercase", input: "00002902-0000-1000-8000-00805F9B34FB", expected: "2902"},
		{name: "Nordic UART service", input: "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", expected: "6e400001b5a3f393e0a9e50e24dcca9e"},
		{name: "custom UUID with SIG suffix but wrong prefix", input: "AA002902-0000-1000-8000-00805f9b34fb", expected: "aa00290200001000800000805f9b34fb"},
		{name: "empty string", input: "", expected: ""},
		{name: "not hex", input: "zzzz", expected: ""},
		{name: "odd length", input: "123", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestValidateUUID(t *testing.T) {
	t.Run("normalizes every UUID", func(t *testing.T) {
		got, err := ValidateUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e", "0x2A19")
		require.NoError(t, err)
		assert.Equal(t, []string{"6e400002b5a3f393e0a9e50e24dcca9e", "2a19"}, got)
	})

	t.Run("rejects empty input list", func(t *testing.T) {
		_, err := ValidateUUID()
		assert.EqualError(t, err, "at least one UUID is required")
	})

	t.Run("rejects empty UUID", func(t *testing.T) {
		_, err := ValidateUUID("180d", "")
		assert.EqualError(t, err, "UUID at index 1 cannot be empty")
	})

	t.Run("rejects malformed UUID", func(t *testing.T) {
		_, err := ValidateUUID("nope")
		assert.EqualError(t, err, "invalid UUID format at index 0: nope")
	})
}

func TestSameUUID(t *testing.T) {
	assert.True(t, SameUUID("6E400003-B5A3-F393-E0A9-E50E24DCCA9E", "6e400003b5a3f393e0a9e50e24dcca9e"))
	assert.True(t, SameUUID("180d", "0000180D-0000-1000-8000-00805f9b34fb"))
	assert.False(t, SameUUID("180d", "180f"))
	assert.False(t, SameUUID("", ""))
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "6e400001", ShortenUUID("6e400001b5a3f393e0a9e50e24dcca9e"))
	assert.Equal(t, "2a19", ShortenUUID("2a19"))
}
