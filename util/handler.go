package util

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ErrorGuard wraps a tool handler so a panic surfaces as a tool error result
// instead of tearing down the server.
func ErrorGuard(handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = mcp.NewToolResultError(fmt.Sprintf("tool panicked: %v\n%s", r, debug.Stack()))
				err = nil
			}
		}()
		return handler(ctx, request)
	}
}

// StringArg extracts a string argument, returning its zero value when absent
// or of the wrong type.
func StringArg(arguments map[string]interface{}, key string) string {
	value, _ := arguments[key].(string)
	return value
}
