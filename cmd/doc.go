// Package cmd implements the command-line interface for agentcal.
//
// This package provides the following commands:
//   - serve: Run the assistant over MCP (stdio or streamable HTTP), the HTTP API and Matrix
//   - chat: Talk to the assistant from the terminal
//   - auth: Authorize Google Calendar access and store the token
//   - version: Display version information
package cmd
