// Package mcp exposes the assistant as Model Context Protocol tools so an
// AI client can relay user messages and search the calendar.
//
// Tools:
//   - assistant_send_message: hand one user message to the assistant and
//     return its reply
//   - assistant_session_status: show the user's pending negotiation, if any
//   - calendar_search_events: keyword search over upcoming events
//
// The server runs over stdio or the streamable HTTP transport at /mcp.
package mcp
