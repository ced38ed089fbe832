// Package instrumentation provides OpenTelemetry metrics, tracing, and the
// calendar write audit trail for agentcal.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds
//   - calendar_operations_total, calendar_operation_duration_seconds (operation, status)
//   - nlu_requests_total, nlu_request_duration_seconds (provider, status)
//   - messages_total, message_duration_seconds (transport, intent)
//   - negotiation_transitions_total (from, to)
//   - negotiation_outcomes_total (outcome, failure)
//   - active_negotiations
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created for calendar store calls (calendar.<operation>), intent
// parsing (nlu.parse), message handling, and MCP tool invocations
// (tool.<name>).
//
// # Configuration
//
// DefaultConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG,
// OTEL_SERVICE_NAME, METRICS_DETAILED_LABELS and AUDIT_LOGGING_*.
package instrumentation
