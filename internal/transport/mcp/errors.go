package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode classifies tool errors for clients.
type ErrorCode string

const (
	ErrValidation ErrorCode = "validation"
	ErrInternal   ErrorCode = "internal"
)

// ToolError is the JSON body of a failed tool call.
type ToolError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ToResult renders the error as an MCP error result.
func (e ToolError) ToResult() *mcp.CallToolResult {
	data, _ := json.Marshal(e)
	return mcp.NewToolResultError(string(data))
}

func validationError(msg string) *mcp.CallToolResult {
	return ToolError{Code: ErrValidation, Message: msg}.ToResult()
}

func internalError(msg string) *mcp.CallToolResult {
	return ToolError{Code: ErrInternal, Message: msg}.ToResult()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return internalError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
