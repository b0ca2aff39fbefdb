package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestJSONAsserter_Diff(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		match    bool
	}{
		{
			name:     "extra keys ignored by default",
			actual:   `{"active": true, "flash_index": 1, "pattern": [1000]}`,
			expected: `{"active": true}`,
			match:    true,
		},
		{
			name:     "extra keys reported when strict",
			opts:     []Option{WithIgnoreExtraKeys(false)},
			actual:   `{"active": true, "flash_index": 1}`,
			expected: `{"active": true}`,
		},
		{
			name:     "null equals empty array",
			actual:   `{"pattern": null}`,
			expected: `{"pattern": []}`,
			match:    true,
		},
		{
			name:     "null differs from empty array when disabled",
			opts:     []Option{WithNilToEmptyArray(false)},
			actual:   `{"pattern": null}`,
			expected: `{"pattern": []}`,
		},
		{
			name:     "presence placeholder",
			actual:   `{"id": "AA:BB", "rssi": -60}`,
			expected: `{"id": "AA:BB", "rssi": "<<PRESENCE>>"}`,
			match:    true,
		},
		{
			name:     "presence placeholder requires the key",
			actual:   `{"id": "AA:BB"}`,
			expected: `{"id": "AA:BB", "rssi": "<<PRESENCE>>"}`,
		},
		{
			name:     "ignored fields at every depth",
			opts:     []Option{WithIgnoredFields("rssi"), WithIgnoreExtraKeys(false)},
			actual:   `[{"id": "A", "rssi": -1}, {"id": "B", "rssi": -2}]`,
			expected: `[{"id": "A", "rssi": -9}, {"id": "B"}]`,
			match:    true,
		},
		{
			name:     "root arrays keep order",
			actual:   `[{"id": "B"}, {"id": "A"}]`,
			expected: `[{"id": "A"}, {"id": "B"}]`,
		},
		{
			name:     "value mismatch",
			actual:   `{"flash_index": 2}`,
			expected: `{"flash_index": 3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewJSONAsserter(t).WithOptions(tt.opts...).diff(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestJSONAsserter_InvalidJSON(t *testing.T) {
	ja := NewJSONAsserter(t)
	assert.Contains(t, ja.diff(`{`, `{}`), "invalid actual JSON")
	assert.Contains(t, ja.diff(`{}`, `{`), "invalid expected JSON")
}

func TestTextAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		match    bool
	}{
		{name: "identical", actual: "a\nb", expected: "a\nb", match: true},
		{name: "surrounding space trimmed", actual: "\n a\nb \n", expected: "a\nb", match: true},
		{name: "trailing whitespace per line", actual: "a   \nb", expected: "a\nb", match: true},
		{name: "empty lines kept by default", actual: "a\n\nb", expected: "a\nb"},
		{name: "empty lines ignored", opts: []TextOption{WithIgnoreEmptyLines(true)}, actual: "a\n\nb", expected: "a\nb", match: true},
		{name: "no trim", opts: []TextOption{WithTrimSpace(false)}, actual: "\na", expected: "a"},
		{name: "content differs", actual: "ON index=1", expected: "ON index=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			NewTextAsserter(rec).WithOptions(tt.opts...).Assert(tt.actual, tt.expected)
			if tt.match {
				assert.Empty(t, rec.errors)
			} else {
				assert.Len(t, rec.errors, 1)
			}
		})
	}
}

func TestTextAsserter_DiffIsUnified(t *testing.T) {
	diff := NewTextAsserter(t).Diff("ON index=1\n", "ON index=2\n")
	assert.True(t, strings.Contains(diff, "-ON index=2") && strings.Contains(diff, "+ON index=1"), diff)
}
