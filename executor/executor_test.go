package executor_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-release/executor"
)

func TestExecute(t *testing.T) {
	ctx := context.Background()
	exec := executor.New()

	t.Run("captures stdout", func(t *testing.T) {
		result, err := exec.Execute(ctx, "echo", []string{"hello", "world"})
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", result.Stdout)
		assert.Equal(t, 0, result.ExitCode)
		assert.Equal(t, 1, result.Attempts)
	})

	t.Run("combined output", func(t *testing.T) {
		result, err := exec.Execute(ctx, "sh", []string{"-c", "echo out; echo err >&2"}, executor.WithCombinedOutput())
		require.NoError(t, err)
		assert.Contains(t, result.Combined, "out")
		assert.Contains(t, result.Combined, "err")
		assert.Empty(t, result.Stdout)
	})

	t.Run("streams output", func(t *testing.T) {
		var live bytes.Buffer
		_, err := exec.Execute(ctx, "echo", []string{"streamed"}, executor.WithOutput(&live, &live))
		require.NoError(t, err)
		assert.Equal(t, "streamed\n", live.String())
	})

	t.Run("stdin", func(t *testing.T) {
		result, err := exec.Execute(ctx, "cat", nil, executor.WithInput("piped"))
		require.NoError(t, err)
		assert.Equal(t, "piped", result.Stdout)
	})

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		result, err := exec.Execute(ctx, "pwd", nil, executor.WithWorkingDir(dir))
		require.NoError(t, err)
		assert.Contains(t, strings.TrimSpace(result.Stdout), dir)
	})

	t.Run("environment", func(t *testing.T) {
		result, err := exec.Execute(ctx, "sh", []string{"-c", "echo $A-$B"},
			executor.WithEnv(map[string]string{"A": "1"}),
			executor.WithEnvVar("B", "2"))
		require.NoError(t, err)
		assert.Equal(t, "1-2\n", result.Stdout)
	})

	t.Run("exit code", func(t *testing.T) {
		result, err := exec.Execute(ctx, "sh", []string{"-c", "echo broken >&2; exit 3"})
		require.Error(t, err)
		var exitErr *executor.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.ExitCode)
		assert.Contains(t, exitErr.Output, "broken")
		assert.Equal(t, 3, result.ExitCode)
	})

	t.Run("empty program", func(t *testing.T) {
		_, err := exec.Execute(ctx, "", nil)
		assert.Error(t, err)
	})
}

func TestExecuteRetry(t *testing.T) {
	ctx := context.Background()
	marker := t.TempDir() + "/attempted"

	// Fails the first time, succeeds once the marker exists.
	script := "if [ -f " + marker + " ]; then echo ok; else touch " + marker + "; exit 1; fi"
	result, err := executor.New().Execute(ctx, "sh", []string{"-c", script},
		executor.WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "ok\n", result.Stdout)

	calls := 0
	result, err = executor.New().Execute(ctx, "false", nil,
		executor.WithRetry(3, time.Millisecond),
		executor.WithRetryCondition(func(error) bool {
			calls++
			return false
		}))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.Attempts)
}

func TestExecuteDefaults(t *testing.T) {
	exec := executor.New(executor.WithDefaults(executor.WithEnvVar("FROM_DEFAULTS", "yes")))

	result, err := exec.Execute(context.Background(), "sh", []string{"-c", "echo $FROM_DEFAULTS"})
	require.NoError(t, err)
	assert.Equal(t, "yes\n", result.Stdout)

	// Per-call options do not leak into the defaults.
	_, err = exec.Execute(context.Background(), "true", nil, executor.WithEnvVar("LEAK", "1"))
	require.NoError(t, err)
	result, err = exec.Execute(context.Background(), "sh", []string{"-c", "echo ${LEAK:-none}"})
	require.NoError(t, err)
	assert.Equal(t, "none\n", result.Stdout)
}

func TestExecuteContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := executor.New().Execute(ctx, "sleep", []string{"5"})
	assert.Error(t, err)
}

func TestResultTail(t *testing.T) {
	r := &executor.Result{Combined: "a\nb\nc\nd\n"}
	assert.Equal(t, "c\nd", r.Tail(2))
	assert.Equal(t, "a\nb\nc\nd", r.Tail(10))

	r = &executor.Result{Stderr: "only stderr\n"}
	assert.Equal(t, "only stderr", r.Tail(1))
}
