package intent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/agentcal/internal/instrumentation"
)

// Parser wraps an Oracle with per-user rate limiting, tracing and metrics.
type Parser struct {
	oracle   Oracle
	provider string
	limiter  *RateLimiter
	metrics  *instrumentation.Metrics
}

// NewParser creates a Parser. provider names the oracle in spans and
// metrics. A nil limiter disables rate limiting.
func NewParser(oracle Oracle, provider string, limiter *RateLimiter, metrics *instrumentation.Metrics) *Parser {
	return &Parser{oracle: oracle, provider: provider, limiter: limiter, metrics: metrics}
}

// Parse classifies message on behalf of user.
func (p *Parser) Parse(ctx context.Context, user, message string) (in Intent, err error) {
	if p.limiter != nil && !p.limiter.Allow(user) {
		p.metrics.RecordNLURequest(ctx, p.provider, "rate_limited", 0)
		return Intent{}, ErrRateLimited
	}

	start := time.Now()
	ctx, span := instrumentation.StartNLUSpan(ctx, p.provider)
	defer func() {
		if err == nil {
			span.SetAttributes(attribute.String(instrumentation.SpanAttrIntent, in.Kind.String()))
		}
		instrumentation.EndSpan(span, err)
		p.metrics.RecordNLURequest(ctx, p.provider, instrumentation.StatusOf(err), time.Since(start))
	}()

	return p.oracle.Parse(ctx, message)
}
