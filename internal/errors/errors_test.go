package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		err      error
		expected string
	}{
		{
			name:     "simple error",
			op:       "download",
			err:      errors.New("connection refused"),
			expected: `operation "download" failed: connection refused`,
		},
		{
			name:     "operation with spaces",
			op:       "write autorun",
			err:      errors.New("permission denied"),
			expected: `operation "write autorun" failed: permission denied`,
		},
		{
			name:     "nil inner error",
			op:       "confirm",
			err:      nil,
			expected: `operation "confirm" failed`,
		},
		{
			name:     "nested error",
			op:       "outer",
			err:      E("inner", errors.New("base error")),
			expected: `operation "outer" failed: operation "inner" failed: base error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Error{Op: tt.op, Err: tt.err}
			if got := e.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestE_InheritsKindAndKey(t *testing.T) {
	base := New(KindCapability, "download", "download.no_tool", nil, "curl, wget")
	wrapped := E("acquire", base)

	assert.Equal(t, KindCapability, KindOf(wrapped))

	var e *Error
	if assert.True(t, As(wrapped, &e)) {
		assert.Equal(t, "acquire", e.Op)
		assert.Equal(t, "download.no_tool", e.Key)
		assert.Equal(t, []any{"curl, wget"}, e.Args)
	}
}

func TestE_PlainError(t *testing.T) {
	err := E("probe", errors.New("boom"))
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, Is(err, KindConfig))
}

func TestKindOf_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("stage: %w", New(KindDegradable, "mount", "staging.mount_failed", errors.New("busy")))
	assert.True(t, Is(err, KindDegradable))
	assert.False(t, Is(nil, KindDegradable))
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := New(KindTransient, "extract", "extract.failed", sentinel)
	assert.ErrorIs(t, err, sentinel)
}

func TestKind_String(t *testing.T) {
	kinds := map[Kind]string{
		KindUnknown:    "unknown",
		KindConfig:     "config",
		KindCapability: "capability",
		KindTransient:  "transient",
		KindDegradable: "degradable",
		KindAborted:    "aborted",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}
