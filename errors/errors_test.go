package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "code and message",
			err:  New(CodeNotFound, "release not found"),
			want: "NOT_FOUND: release not found",
		},
		{
			name: "with cause",
			err:  Wrap(stderrors.New("boom"), CodeBuildFailed, "build failed"),
			want: "BUILD_FAILED: build failed: boom",
		},
		{
			name: "with sorted context",
			err: WrapWithContext(stderrors.New("exists"), CodeConflict, "tag rejected", map[string]interface{}{
				"tag":    "V1.4.0",
				"remote": "origin",
			}),
			want: "CONFLICT: tag rejected (remote=origin, tag=V1.4.0): exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "x"))
	assert.NoError(t, Wrapf(nil, CodeInternal, "x %d", 1))
	assert.NoError(t, WrapWithContext(nil, CodeInternal, "x", nil))
}

func TestCodeOf(t *testing.T) {
	base := stderrors.New("dial tcp: refused")
	wrapped := fmt.Errorf("publish: %w", Wrap(base, CodeNetwork, "upload failed"))

	assert.Equal(t, CodeNetwork, CodeOf(wrapped))
	assert.Equal(t, CodeUnknown, CodeOf(base))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := New(CodeAlreadyExists, "tag exists")
	outer := Wrap(inner, CodeConflict, "create release")

	assert.True(t, HasCode(outer, CodeConflict))
	assert.True(t, HasCode(outer, CodeAlreadyExists))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("step failed: %w", New(CodeConflict, "stale lease"))

	assert.True(t, Is(err, &PlatformError{Code: CodeConflict}))
	assert.False(t, Is(err, &PlatformError{Code: CodeNotFound}))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeNetwork, "reset")))
	assert.True(t, IsRetryable(fmt.Errorf("x: %w", New(CodeRateLimit, "slow down"))))
	assert.False(t, IsRetryable(New(CodeConflict, "duplicate")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestWrapWithContextCopiesMap(t *testing.T) {
	ctx := map[string]interface{}{"step": "build"}
	err := WrapWithContext(stderrors.New("x"), CodeBuildFailed, "failed", ctx)
	ctx["step"] = "mutated"

	var pe *PlatformError
	require.True(t, As(err, &pe))
	assert.Equal(t, "build", pe.Context["step"])
}
