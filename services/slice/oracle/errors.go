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
	"errors"
	"fmt"
	"time"
)

// MalformedResponseError reports an oracle answer that could not be parsed
// against the response grammar, after exhausting retries. Recoverable: the
// orchestrator records a coverage gap and continues.
type MalformedResponseError struct {
	// FunctionID is the function the query targeted.
	FunctionID string

	// Attempts is how many parse attempts were made.
	Attempts int

	// LastResponse is a truncated copy of the final unparseable response.
	LastResponse string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("oracle returned unparseable response for %s after %d attempt(s)", e.FunctionID, e.Attempts)
}

// BudgetExhaustedError reports that the query-count budget ran out before
// this query could be issued. Recoverable: the run degrades to partial
// coverage.
type BudgetExhaustedError struct {
	// Limit is the configured query budget.
	Limit int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("oracle query budget of %d exhausted", e.Limit)
}

// CallFailedError wraps a transport-level failure (timeout, connection,
// HTTP error) from the underlying LLM client. Recoverable.
type CallFailedError struct {
	// FunctionID is the function the query targeted.
	FunctionID string

	// Duration is how long the call ran before failing.
	Duration time.Duration

	// Err is the underlying failure.
	Err error
}

func (e *CallFailedError) Error() string {
	return fmt.Sprintf("oracle call for %s failed after %s: %v", e.FunctionID, e.Duration, e.Err)
}

func (e *CallFailedError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether an oracle error degrades to a coverage gap
// rather than aborting the slicing request. Context cancellation is not
// recoverable: the whole run is being torn down.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var malformed *MalformedResponseError
	var budget *BudgetExhaustedError
	var call *CallFailedError
	return errors.As(err, &malformed) || errors.As(err, &budget) || errors.As(err, &call)
}
