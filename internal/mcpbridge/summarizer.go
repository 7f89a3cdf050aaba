package mcpbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/chibi-cli/chibi/internal/gateway"
	"github.com/chibi-cli/chibi/internal/logx"
	"github.com/chibi-cli/chibi/internal/model"
)

// RetryAfterError carries a server-specified backoff duration (the gateway
// client surfaces this when the upstream LLM responds 429 with Retry-After).
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.After)
}

// AuthError marks a failure the summarizer should not retry at all.
type AuthError struct{ Cause error }

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

// SummarizeJob periodically sweeps a SummaryCache for missing entries and
// fills them via gw, rate-limited and backing off on transient failures
// (spec §4.12). One call to Run blocks until ctx is done.
type SummarizeJob struct {
	Cache      *SummaryCache
	Gateway    gateway.Client
	Model      string
	Limiter    *rate.Limiter
	SweepEvery time.Duration
	Fetch      func() []ToolDescriptor // returns current known tool descriptors
}

// NewSummarizeJob wires sensible defaults: one request per second, a sweep
// every 30 seconds.
func NewSummarizeJob(cache *SummaryCache, gw gateway.Client, modelName string, fetch func() []ToolDescriptor) *SummarizeJob {
	return &SummarizeJob{
		Cache:      cache,
		Gateway:    gw,
		Model:      modelName,
		Limiter:    rate.NewLimiter(rate.Limit(1), 1),
		SweepEvery: 30 * time.Second,
		Fetch:      fetch,
	}
}

// Run loops sweeping for missing summaries until ctx is cancelled.
func (j *SummarizeJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.sweepInterval())
	defer ticker.Stop()

	j.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepOnce(ctx)
		}
	}
}

func (j *SummarizeJob) sweepInterval() time.Duration {
	if j.SweepEvery <= 0 {
		return 30 * time.Second
	}
	return j.SweepEvery
}

func (j *SummarizeJob) sweepOnce(ctx context.Context) {
	if j.Fetch == nil {
		return
	}
	for _, desc := range j.Cache.Missing(j.Fetch()) {
		if ctx.Err() != nil {
			return
		}
		if err := j.summarizeWithBackoff(ctx, desc); err != nil {
			logx.WarnCF("mcpbridge", "summary generation gave up", map[string]any{
				"server": desc.Server, "tool": desc.Tool, "error": err.Error(),
			})
		}
	}
}

const maxSummarizeAttempts = 5

func (j *SummarizeJob) summarizeWithBackoff(ctx context.Context, desc ToolDescriptor) error {
	backoff := time.Second
	for attempt := 1; attempt <= maxSummarizeAttempts; attempt++ {
		if err := j.Limiter.Wait(ctx); err != nil {
			return err
		}

		summary, err := j.summarizeOnce(ctx, desc)
		if err == nil {
			key := SchemaKey(desc.Server, desc.Tool, desc.Parameters)
			return j.Cache.Put(key, desc.Server, desc.Tool, summary)
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}

		var retryErr *RetryAfterError
		wait := backoff
		if errors.As(err, &retryErr) {
			wait = retryErr.After
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return fmt.Errorf("mcpbridge: exhausted %d attempts summarizing %s:%s", maxSummarizeAttempts, desc.Server, desc.Tool)
}

func (j *SummarizeJob) summarizeOnce(ctx context.Context, desc ToolDescriptor) (string, error) {
	prompt := fmt.Sprintf(
		"In one sentence, describe what the tool %q on MCP server %q does, given this JSON schema:\n%v",
		desc.Tool, desc.Server, desc.Parameters,
	)
	events, err := j.Gateway.StreamChat(ctx, gateway.Request{
		Model:    j.Model,
		Messages: []model.Message{{Role: model.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	var text string
	for ev := range events {
		switch ev.Kind {
		case gateway.EventTextDelta:
			text += ev.TextDelta
		case gateway.EventError:
			return "", ev.Err
		}
	}
	if text == "" {
		return "", fmt.Errorf("mcpbridge: empty summary for %s:%s", desc.Server, desc.Tool)
	}
	return text, nil
}
