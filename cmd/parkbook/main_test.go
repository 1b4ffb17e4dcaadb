// File: cmd/parkbook/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/parkbook/cmd"
	"github.com/xkilldash9x/parkbook/internal/runner"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", fmt.Errorf("run: %w", context.Canceled), 0},
		{"budget exhausted", fmt.Errorf("%w after 3 sessions", runner.ErrTimeBudgetExceeded), 1},
		{"other failure", errors.New("invalid configuration"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestEntrypoint_ExitsWithCommandStatus(t *testing.T) {
	defer resetMocks()

	var code = -1
	osExit = func(c int) { code = c }
	execute = func(ctx context.Context) error {
		require.NotNil(t, ctx)
		return errors.New("boom")
	}

	main()
	assert.Equal(t, 1, code)
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes panic log", func(t *testing.T) {
		var written string
		var code = -1
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			assert.Equal(t, panicLogFile, name)
			written = string(data)
			return nil
		}
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("renderer crashed")
		}()

		assert.Equal(t, 2, code)
		assert.Contains(t, written, "panic: renderer crashed")
		assert.Contains(t, written, "goroutine")
	})

	t.Run("log write fails", func(t *testing.T) {
		var code = -1
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()

		assert.Equal(t, 2, code)
	})
}
