package generation

import (
	"context"
	"time"

	"resonance/internal/metrics"
)

// UsageRecorder accounts token usage against a spending budget. Implementations
// return a budget sentinel once the recorded spend passes the limit.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, model string, usage Usage) error
}

// Ensure MeteredProvider implements Provider
var _ Provider = (*MeteredProvider)(nil)

// MeteredProvider decorates a provider with cost accounting and call metrics.
// Usage is recorded after each successful completion; a tripped budget fails
// the call that crossed the line, which stops the synthesizer before the next
// completion is issued.
type MeteredProvider struct {
	inner Provider
	meter UsageRecorder
}

// NewMeteredProvider wraps a provider with usage metering.
func NewMeteredProvider(inner Provider, meter UsageRecorder) *MeteredProvider {
	return &MeteredProvider{inner: inner, meter: meter}
}

// Name returns the wrapped provider's name.
func (m *MeteredProvider) Name() ProviderName {
	return m.inner.Name()
}

// Complete delegates to the wrapped provider and records the spend.
func (m *MeteredProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	resp, err := m.inner.Complete(ctx, req)
	if err != nil {
		metrics.RecordGenerationCall(string(m.Name()), req.Model, time.Since(started), 0, 0, err)
		return nil, err
	}

	metrics.RecordGenerationCall(string(m.Name()), resp.Model, time.Since(started),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)

	if err := m.meter.RecordUsage(ctx, resp.Model, resp.Usage); err != nil {
		return nil, err
	}

	return resp, nil
}
