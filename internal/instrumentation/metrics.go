package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrCalendar  = "calendar"
	attrProvider  = "provider"
	attrTransport = "transport"
	attrIntent    = "intent"
	attrFrom      = "from"
	attrTo        = "to"
	attrOutcome   = "outcome"
	attrFailure   = "failure"
	attrTool      = "tool"
)

// Metrics records the service's counters and histograms. A zero Metrics
// and a nil *Metrics are valid no-op recorders.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	nluRequestsTotal   metric.Int64Counter
	nluRequestDuration metric.Float64Histogram

	messagesTotal   metric.Int64Counter
	messageDuration metric.Float64Histogram

	negotiationTransitionsTotal metric.Int64Counter
	negotiationOutcomesTotal    metric.Int64Counter
	activeNegotiations          metric.Int64UpDownCounter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

var latencyBuckets = metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		latencyBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_operations_total",
		metric.WithDescription("Total number of calendar store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_operation_duration_seconds",
		metric.WithDescription("Calendar store operation duration in seconds"),
		metric.WithUnit("s"),
		latencyBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_operation_duration_seconds histogram: %w", err)
	}

	m.nluRequestsTotal, err = meter.Int64Counter(
		"nlu_requests_total",
		metric.WithDescription("Total number of intent parsing requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nlu_requests_total counter: %w", err)
	}

	m.nluRequestDuration, err = meter.Float64Histogram(
		"nlu_request_duration_seconds",
		metric.WithDescription("Intent parsing duration in seconds"),
		metric.WithUnit("s"),
		latencyBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create nlu_request_duration_seconds histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"messages_total",
		metric.WithDescription("Total number of user messages handled"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_total counter: %w", err)
	}

	m.messageDuration, err = meter.Float64Histogram(
		"message_duration_seconds",
		metric.WithDescription("Time from receiving a message to producing its reply"),
		metric.WithUnit("s"),
		latencyBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message_duration_seconds histogram: %w", err)
	}

	m.negotiationTransitionsTotal, err = meter.Int64Counter(
		"negotiation_transitions_total",
		metric.WithDescription("Negotiation state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create negotiation_transitions_total counter: %w", err)
	}

	m.negotiationOutcomesTotal, err = meter.Int64Counter(
		"negotiation_outcomes_total",
		metric.WithDescription("Negotiations that reached a terminal state"),
		metric.WithUnit("{negotiation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create negotiation_outcomes_total counter: %w", err)
	}

	m.activeNegotiations, err = meter.Int64UpDownCounter(
		"active_negotiations",
		metric.WithDescription("Negotiation sessions currently waiting on a user"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_negotiations gauge: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		latencyBuckets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, and status code.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCalendarOperation records a calendar store call. calendarID is
// only attached when detailed labels are enabled.
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, calendarID, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil {
		return // Instrumentation not initialized
	}

	kv := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && calendarID != "" {
		kv = append(kv, attribute.String(attrCalendar, calendarID))
	}
	attrs := metric.WithAttributes(kv...)
	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordNLURequest records one call to an intent oracle.
func (m *Metrics) RecordNLURequest(ctx context.Context, provider, status string, duration time.Duration) {
	if m == nil || m.nluRequestsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrStatus, status),
	)
	m.nluRequestsTotal.Add(ctx, 1, attrs)
	m.nluRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMessage records a handled user message and the intent it carried.
func (m *Metrics) RecordMessage(ctx context.Context, transport, intent string, duration time.Duration) {
	if m == nil || m.messagesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTransport, transport),
		attribute.String(attrIntent, intent),
	)
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordNegotiationTransition counts a move between negotiation states.
func (m *Metrics) RecordNegotiationTransition(ctx context.Context, from, to string) {
	if m == nil || m.negotiationTransitionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.negotiationTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrFrom, from),
		attribute.String(attrTo, to),
	))
}

// RecordNegotiationOutcome counts a terminal negotiation state and the
// failure class that led to it.
func (m *Metrics) RecordNegotiationOutcome(ctx context.Context, outcome, failure string) {
	if m == nil || m.negotiationOutcomesTotal == nil {
		return // Instrumentation not initialized
	}

	m.negotiationOutcomesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOutcome, outcome),
		attribute.String(attrFailure, failure),
	))
}

// IncrementActiveNegotiations increments the waiting-session gauge.
func (m *Metrics) IncrementActiveNegotiations(ctx context.Context) {
	if m == nil || m.activeNegotiations == nil {
		return // Instrumentation not initialized
	}
	m.activeNegotiations.Add(ctx, 1)
}

// DecrementActiveNegotiations decrements the waiting-session gauge.
func (m *Metrics) DecrementActiveNegotiations(ctx context.Context) {
	if m == nil || m.activeNegotiations == nil {
		return // Instrumentation not initialized
	}
	m.activeNegotiations.Add(ctx, -1)
}

// RecordToolInvocation records an MCP tool invocation.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
