package openclaw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionclaw/visionclaw/gemini"
)

type fakeExecutor struct {
	gotTask string
	result  string
	err     error
	calls   int
}

func (f *fakeExecutor) ExecuteTask(_ context.Context, task string) (string, error) {
	f.calls++
	f.gotTask = task
	return f.result, f.err
}

type fakeResponder struct {
	responses []struct {
		id     string
		result string
	}
}

func (f *fakeResponder) SendToolResponse(callID, result string) {
	f.responses = append(f.responses, struct {
		id     string
		result string
	}{callID, result})
}

func TestHandleToolCall(t *testing.T) {
	tests := []struct {
		name       string
		call       gemini.FunctionCall
		execResult string
		execErr    error
		wantResult string
		wantExec   int
	}{
		{
			name:       "successful execution",
			call:       gemini.FunctionCall{ID: "1", Name: "execute", Args: map[string]string{"task": "add milk to list"}},
			execResult: "Added milk to the shopping list.",
			wantResult: "Added milk to the shopping list.",
			wantExec:   1,
		},
		{
			name:       "unknown tool",
			call:       gemini.FunctionCall{ID: "2", Name: "teleport", Args: map[string]string{"task": "x"}},
			wantResult: "Error: Unknown tool teleport",
		},
		{
			name:       "missing task argument",
			call:       gemini.FunctionCall{ID: "1", Name: "execute", Args: map[string]string{}},
			wantResult: "Error: Missing task argument",
		},
		{
			name:       "blank task argument",
			call:       gemini.FunctionCall{ID: "3", Name: "execute", Args: map[string]string{"task": "   "}},
			wantResult: "Error: Missing task argument",
		},
		{
			name:       "gateway failure",
			call:       gemini.FunctionCall{ID: "4", Name: "execute", Args: map[string]string{"task": "call mom"}},
			execErr:    errors.New("OpenClaw API error: 502 Bad Gateway"),
			wantResult: "Error: OpenClaw API error: 502 Bad Gateway",
			wantExec:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{result: tt.execResult, err: tt.execErr}
			responder := &fakeResponder{}
			router := NewRouter(executor, responder)

			router.HandleToolCall(context.Background(), tt.call)

			require.Len(t, responder.responses, 1, "every call gets exactly one response")
			assert.Equal(t, tt.call.ID, responder.responses[0].id)
			assert.Equal(t, tt.wantResult, responder.responses[0].result)
			assert.Equal(t, tt.wantExec, executor.calls, "executor must not run for rejected calls")
		})
	}
}

func TestHandleToolCallTrimsTask(t *testing.T) {
	executor := &fakeExecutor{result: "ok"}
	responder := &fakeResponder{}
	router := NewRouter(executor, responder)

	router.HandleToolCall(context.Background(), gemini.FunctionCall{
		ID: "5", Name: "execute", Args: map[string]string{"task": "  check the weather  "},
	})

	assert.Equal(t, "check the weather", executor.gotTask)
}
