package openclaw

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/visionclaw/visionclaw/gemini"
)

// TaskExecutor runs one task on the external gateway.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, task string) (string, error)
}

// ToolResponder sends a tool result back through the live connection.
type ToolResponder interface {
	SendToolResponse(callID, result string)
}

// Router bridges one tool call to exactly one tool response. Every call is
// answered: unknown tool, missing argument, and gateway failures all produce
// an error response so the model never stalls awaiting a result.
type Router struct {
	executor  TaskExecutor
	responder ToolResponder
}

// NewRouter creates a tool-call router.
func NewRouter(executor TaskExecutor, responder ToolResponder) *Router {
	return &Router{
		executor:  executor,
		responder: responder,
	}
}

// HandleToolCall resolves a single call and sends its response. One attempt,
// no retries, always exactly one response for the call id.
func (r *Router) HandleToolCall(ctx context.Context, call gemini.FunctionCall) {
	if call.Name != "execute" {
		log.Printf("⚠️ Unknown tool called: %s", call.Name)
		r.responder.SendToolResponse(call.ID, fmt.Sprintf("Error: Unknown tool %s", call.Name))
		return
	}

	task := strings.TrimSpace(call.Args["task"])
	if task == "" {
		log.Printf("⚠️ Tool call %s missing task argument", call.ID)
		r.responder.SendToolResponse(call.ID, "Error: Missing task argument")
		return
	}

	result, err := r.executor.ExecuteTask(ctx, task)
	if err != nil {
		log.Printf("❌ Task execution failed: %v", err)
		r.responder.SendToolResponse(call.ID, fmt.Sprintf("Error: %v", err))
		return
	}

	log.Printf("✅ Task executed, sending result (%d chars)", len(result))
	r.responder.SendToolResponse(call.ID, result)
}
