// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Default LLM oracle tuning values.
const (
	// DefaultMaxAttempts is how many times a query is retried when the
	// model's answer fails the response grammar.
	DefaultMaxAttempts = 3

	// DefaultCallTimeout bounds one LLM round trip.
	DefaultCallTimeout = 120 * time.Second

	// DefaultTemperature keeps slicing answers near-deterministic.
	DefaultTemperature float32 = 0.5
)

// systemPrompt frames every oracle conversation.
const systemPrompt = "You are a program slicing engine. Answer strictly in the requested format with no extra commentary."

// LLMOracleOption configures an LLMOracle.
type LLMOracleOption func(*LLMOracle)

// WithMaxAttempts sets the retry limit for unparseable answers.
func WithMaxAttempts(n int) LLMOracleOption {
	return func(o *LLMOracle) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) LLMOracleOption {
	return func(o *LLMOracle) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) LLMOracleOption {
	return func(o *LLMOracle) {
		o.temperature = t
	}
}

// WithQueryBudget attaches a query-count budget. Nil means unlimited.
func WithQueryBudget(b *QueryBudget) LLMOracleOption {
	return func(o *LLMOracle) {
		o.budget = b
	}
}

// WithRateLimit caps queries per minute. 0 disables limiting.
func WithRateLimit(perMinute int) LLMOracleOption {
	return func(o *LLMOracle) {
		if perMinute > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
		}
	}
}

// WithLogger sets the logger. Nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) LLMOracleOption {
	return func(o *LLMOracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// LLMOracle implements Oracle on top of a chat Client.
//
// Description:
//
//	Each Slice call builds a direction-specific prompt around the
//	numbered function body, sends it through the client under a per-call
//	timeout, and parses the answer against the response grammar. An
//	unparseable answer is retried (the retry appends a terse format
//	reminder) up to maxAttempts; transport failures are not retried,
//	since the caller treats them as coverage gaps either way.
//
//	A shared QueryBudget, checked atomically before every attempt, caps
//	the total number of model calls across one slicing run. A rate
//	limiter smooths the call pattern for rate-limited providers.
//
// Thread Safety: Safe for concurrent use.
type LLMOracle struct {
	client      Client
	budget      *QueryBudget
	limiter     *rate.Limiter
	maxAttempts int
	callTimeout time.Duration
	temperature float32
	logger      *slog.Logger
}

// NewLLMOracle creates an LLMOracle over the given client.
//
// Inputs:
//   - client: The chat transport. Must not be nil.
//   - opts: Optional tuning (budget, rate limit, timeout, retries).
//
// Outputs:
//   - *LLMOracle: The configured oracle.
//   - error: Non-nil if client is nil.
func NewLLMOracle(client Client, opts ...LLMOracleOption) (*LLMOracle, error) {
	if client == nil {
		return nil, fmt.Errorf("NewLLMOracle: client must not be nil")
	}

	o := &LLMOracle{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		callTimeout: DefaultCallTimeout,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Slice implements Oracle.
//
// Outputs:
//   - *DependencyFact: The parsed answer. Nil exactly when error is non-nil.
//   - error: *BudgetExhaustedError, *MalformedResponseError,
//     *CallFailedError, or a context error.
func (o *LLMOracle) Slice(ctx context.Context, q *Query) (*DependencyFact, error) {
	if q == nil {
		return nil, fmt.Errorf("Slice: query must not be nil")
	}

	ctx, span := otel.Tracer(oracleTracerName).Start(ctx, "oracle.Slice",
		trace.WithAttributes(
			attribute.String("function", q.FunctionID),
			attribute.String("direction", q.Direction.String()),
			attribute.Int("seed_line", q.SeedLine),
		),
	)
	defer span.End()

	provider := o.client.Name()
	oracleActiveQueries.WithLabelValues(provider).Inc()
	defer oracleActiveQueries.WithLabelValues(provider).Dec()

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(q)},
	}

	var lastResponse string
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if o.budget != nil && !o.budget.TrySpend() {
			err := &BudgetExhaustedError{Limit: o.budget.Limit()}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		response, duration, err := o.callOnce(ctx, messages)
		recordOracleMetrics(provider, duration, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &CallFailedError{FunctionID: q.FunctionID, Duration: duration, Err: err}
		}

		fact, perr := parseResponse(response, q)
		if perr == nil {
			span.SetAttributes(
				attribute.Int("attempts", attempt),
				attribute.Int("lines", len(fact.Lines)),
				attribute.Int("bindings", len(fact.Bindings)),
			)
			return fact, nil
		}

		lastResponse = response
		o.logger.Warn("oracle answer failed response grammar, retrying",
			slog.String("function", q.FunctionID),
			slog.Int("attempt", attempt),
			slog.String("reason", perr.Error()),
		)
		messages = append(messages,
			Message{Role: "assistant", Content: response},
			Message{Role: "user", Content: "Your answer did not follow the required format (" + perr.Error() + "). Answer again in exactly the requested format."},
		)
	}

	err := &MalformedResponseError{
		FunctionID:   q.FunctionID,
		Attempts:     o.maxAttempts,
		LastResponse: truncateForLog(lastResponse, 1024),
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// callOnce performs one chat round trip under the per-call timeout.
func (o *LLMOracle) callOnce(ctx context.Context, messages []Message) (string, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	temp := o.temperature
	start := time.Now()
	response, err := o.client.Chat(callCtx, messages, GenerationParams{Temperature: &temp})
	return response, time.Since(start), err
}
