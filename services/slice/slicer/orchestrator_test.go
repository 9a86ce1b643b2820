// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slicer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/AleutianAI/SliceFOSS/services/slice/callgraph"
	"github.com/AleutianAI/SliceFOSS/services/slice/oracle"
)

// fakeOracle answers queries from a scripted table keyed on the criterion
// identity. Unscripted queries fail with a fatal error so a wrong expansion
// surfaces as a test failure rather than a silent pass.
type fakeOracle struct {
	mu    sync.Mutex
	facts map[string]*oracle.DependencyFact
	errs  map[string]error
	calls map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		facts: make(map[string]*oracle.DependencyFact),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func queryKey(function string, line int, variable string, d oracle.Direction) string {
	return fmt.Sprintf("%s|%d|%s|%s", function, line, variable, d)
}

func (f *fakeOracle) answer(function string, line int, variable string, d oracle.Direction, lines []int, bindings ...oracle.BoundaryBinding) {
	f.facts[queryKey(function, line, variable, d)] = &oracle.DependencyFact{
		FunctionID: function,
		Lines:      lines,
		Bindings:   bindings,
	}
}

func (f *fakeOracle) fail(function string, line int, variable string, d oracle.Direction, err error) {
	f.errs[queryKey(function, line, variable, d)] = err
}

func (f *fakeOracle) Slice(_ context.Context, q *oracle.Query) (*oracle.DependencyFact, error) {
	key := queryKey(q.FunctionID, q.SeedLine, q.SeedVariable, q.Direction)

	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()

	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if fact, ok := f.facts[key]; ok {
		return fact, nil
	}
	return nil, fmt.Errorf("unscripted oracle query %s", key)
}

func (f *fakeOracle) callCount(function string, line int, variable string, d oracle.Direction) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[queryKey(function, line, variable, d)]
}

func (f *fakeOracle) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// condGraph models caller (lines 1-6, v = callee() @4) and callee
// (lines 10-14, returns w on line 13).
func condGraph(t *testing.T) *callgraph.Graph {
	t.Helper()

	callee := makeFunction("callee", "util.c", 10, 14)
	callee.ReturnLine = 13
	callee.ReturnExpr = "w"
	caller := makeFunction("caller", "main.c", 1, 6)

	return freezeGraph(t,
		[]*callgraph.Function{callee, caller},
		[]siteSpec{{caller: "caller", line: 4, callee: "callee", result: "v"}})
}

func newOrchestrator(t *testing.T, g *callgraph.Graph, orc oracle.Oracle, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(g, orc, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRun_SingleFunction(t *testing.T) {
	g := freezeGraph(t, []*callgraph.Function{makeFunction("compute", "main.c", 1, 8)}, nil)
	orc := newFakeOracle()
	orc.answer("compute", 5, "y", oracle.Backward, []int{1, 2, 5})

	o := newOrchestrator(t, g, orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "compute", Line: 5, Variable: "y", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string][]int{"compute": {1, 2, 5}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
	if result.Incomplete() {
		t.Error("complete run must not be marked incomplete")
	}
	if result.Queries() != 1 {
		t.Errorf("queries = %d, want 1", result.Queries())
	}
}

func TestRun_BackwardAcrossParameterAndOutput(t *testing.T) {
	g := bindingTestGraph(t)
	orc := newFakeOracle()
	// main's slice of out reaches a call result.
	orc.answer("main", 5, "out", oracle.Backward, []int{3, 5},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "helper", Line: 3, Index: -1})
	// helper's return slice reaches its formal parameter.
	orc.answer("helper", 4, "y", oracle.Backward, []int{2, 4},
		oracle.BoundaryBinding{Kind: oracle.BindingParameter, Index: 0})
	// The parameter crossing re-seeds main on the actual argument.
	orc.answer("main", 3, "r1", oracle.Backward, []int{1, 3})

	o := newOrchestrator(t, g, orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "main", Line: 5, Variable: "out", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// main:7 is the literal-argument call site to helper; the call line
	// joins because the dependency enters helper's parameter there.
	want := map[string][]int{
		"main":   {1, 3, 5, 7},
		"helper": {2, 4},
	}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
	if result.Queries() != 3 {
		t.Errorf("queries = %d, want 3", result.Queries())
	}
}

func TestRun_ConditionalCallLine(t *testing.T) {
	t.Run("included when callee slice is non-empty", func(t *testing.T) {
		orc := newFakeOracle()
		orc.answer("caller", 5, "v", oracle.Backward, []int{5},
			oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "callee", Line: 4, Index: -1})
		orc.answer("callee", 13, "w", oracle.Backward, []int{12, 13})

		o := newOrchestrator(t, condGraph(t), orc)
		result, err := o.Run(context.Background(), SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		want := map[string][]int{"caller": {4, 5}, "callee": {12, 13}}
		if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
			t.Errorf("lines = %v, want %v", got, want)
		}
	})

	t.Run("excluded when callee slice is empty", func(t *testing.T) {
		orc := newFakeOracle()
		orc.answer("caller", 5, "v", oracle.Backward, []int{5},
			oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "callee", Line: 4, Index: -1})
		orc.answer("callee", 13, "w", oracle.Backward, nil)

		o := newOrchestrator(t, condGraph(t), orc)
		result, err := o.Run(context.Background(), SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		want := map[string][]int{"caller": {5}}
		if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
			t.Errorf("lines = %v, want %v (call line must stay out)", got, want)
		}
	})
}

func TestRun_ForwardTwoLevels(t *testing.T) {
	trans := makeFunction("trans", "util.c", 10, 15, "x")
	trans.ReturnLine = 14
	trans.ReturnExpr = "t"
	source := makeFunction("source", "main.c", 1, 5)
	g := freezeGraph(t,
		[]*callgraph.Function{trans, source},
		[]siteSpec{{caller: "source", line: 3, callee: "trans", args: []string{"s"}, result: "m"}})

	orc := newFakeOracle()
	orc.answer("source", 2, "s", oracle.Forward, []int{2, 3},
		oracle.BoundaryBinding{Kind: oracle.BindingArgument, Callee: "trans", Index: 0, Line: 3})
	orc.answer("trans", 10, "x", oracle.Forward, []int{11, 14},
		oracle.BoundaryBinding{Kind: oracle.BindingReturnValue, Index: -1})
	orc.answer("source", 3, "m", oracle.Forward, []int{3, 4})

	o := newOrchestrator(t, g, orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "source", Line: 2, Variable: "s", Direction: oracle.Forward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string][]int{"source": {2, 3, 4}, "trans": {11, 14}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestRun_DepthBound(t *testing.T) {
	orc := newFakeOracle()
	orc.answer("caller", 5, "v", oracle.Backward, []int{5},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "callee", Line: 4, Index: -1})

	o := newOrchestrator(t, condGraph(t), orc, WithMaxDepth(0))
	result, err := o.Run(context.Background(), SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if orc.totalCalls() != 1 {
		t.Errorf("oracle calls = %d, want 1 (callee truncated)", orc.totalCalls())
	}
	truncs := result.Truncations()
	if len(truncs) != 1 {
		t.Fatalf("truncations = %+v, want 1", truncs)
	}
	if truncs[0].Function != "callee" || truncs[0].Line != 13 || truncs[0].Depth != 1 {
		t.Errorf("truncation = %+v, want callee:13 at depth 1", truncs[0])
	}
	// The call line waited on the truncated criterion and is never applied.
	want := map[string][]int{"caller": {5}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestRun_RecoverableFailureDegradesToGap(t *testing.T) {
	orc := newFakeOracle()
	orc.answer("caller", 5, "v", oracle.Backward, []int{5},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "callee", Line: 4, Index: -1})
	orc.fail("callee", 13, "w", oracle.Backward,
		&oracle.MalformedResponseError{FunctionID: "callee", Attempts: 3})

	o := newOrchestrator(t, condGraph(t), orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Incomplete() {
		t.Error("a coverage gap must mark the result incomplete")
	}
	gaps := result.Gaps()
	if len(gaps) != 1 {
		t.Fatalf("gaps = %+v, want 1", gaps)
	}
	if gaps[0].Function != "callee" || gaps[0].Reason != "malformed" {
		t.Errorf("gap = %+v, want callee/malformed", gaps[0])
	}
	// The failed criterion settles empty, so its waiting call line drops.
	want := map[string][]int{"caller": {5}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestRun_PartialCoverageKeepsOtherBranches(t *testing.T) {
	// root calls left and right; the left query fails, the right succeeds.
	left := makeFunction("left", "util.c", 10, 14, "a")
	left.ReturnLine = 13
	left.ReturnExpr = "la"
	right := makeFunction("right", "util.c", 20, 24, "b")
	right.ReturnLine = 23
	right.ReturnExpr = "rb"
	root := makeFunction("root", "main.c", 1, 8)
	g := freezeGraph(t,
		[]*callgraph.Function{left, right, root},
		[]siteSpec{
			{caller: "root", line: 3, callee: "left", args: []string{"u"}, result: "x"},
			{caller: "root", line: 4, callee: "right", args: []string{"u"}, result: "y"},
		})

	orc := newFakeOracle()
	orc.answer("root", 6, "z", oracle.Backward, []int{3, 4, 6},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "left", Line: 3, Index: -1},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "right", Line: 4, Index: -1})
	orc.fail("left", 13, "la", oracle.Backward,
		&oracle.CallFailedError{FunctionID: "left", Err: fmt.Errorf("connection reset")})
	orc.answer("right", 23, "rb", oracle.Backward, []int{21, 23})

	o := newOrchestrator(t, g, orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "root", Line: 6, Variable: "z", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Incomplete() {
		t.Error("result must be incomplete")
	}
	if gaps := result.Gaps(); len(gaps) != 1 || gaps[0].Reason != "transport" {
		t.Errorf("gaps = %+v, want single transport gap", result.Gaps())
	}
	want := map[string][]int{"root": {3, 4, 6}, "right": {21, 23}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestRun_UnknownCalleeIsFatal(t *testing.T) {
	orc := newFakeOracle()
	orc.answer("caller", 5, "v", oracle.Backward, []int{5},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "missing", Line: 4, Index: -1})

	o := newOrchestrator(t, condGraph(t), orc)
	_, err := o.Run(context.Background(), SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
	var unknown *callgraph.UnknownFunctionError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownFunctionError", err)
	}
	if unknown.ID != "missing" {
		t.Errorf("unknown ID = %q, want missing", unknown.ID)
	}
}

func TestRun_ArityMismatchIsFatal(t *testing.T) {
	helper := makeFunction("helper", "util.c", 1, 5, "x")
	helper.ReturnLine = 4
	helper.ReturnExpr = "y"
	main := makeFunction("main", "main.c", 1, 10)
	g := freezeGraph(t,
		[]*callgraph.Function{helper, main},
		[]siteSpec{{caller: "main", line: 4, callee: "helper", args: []string{"a", "b"}, result: "r"}})

	orc := newFakeOracle()
	orc.answer("helper", 4, "y", oracle.Backward, []int{2, 4},
		oracle.BoundaryBinding{Kind: oracle.BindingParameter, Index: 0})

	o := newOrchestrator(t, g, orc)
	_, err := o.Run(context.Background(), SeedCriterion{Function: "helper", Line: 4, Variable: "y", Direction: oracle.Backward})
	var mismatch *callgraph.ArityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want ArityMismatchError", err)
	}
}

func TestRun_CriterionProcessedOnce(t *testing.T) {
	// Both call sites re-discover the same callee criterion; the visited
	// set must collapse them into one oracle query.
	shared := makeFunction("shared", "util.c", 10, 14)
	shared.ReturnLine = 13
	shared.ReturnExpr = "s"
	top := makeFunction("top", "main.c", 1, 10)
	g := freezeGraph(t,
		[]*callgraph.Function{shared, top},
		[]siteSpec{
			{caller: "top", line: 3, callee: "shared", result: "p"},
			{caller: "top", line: 5, callee: "shared", result: "q"},
		})

	orc := newFakeOracle()
	orc.answer("top", 7, "r", oracle.Backward, []int{7},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "shared", Line: 3, Index: -1},
		oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "shared", Line: 5, Index: -1})
	orc.answer("shared", 13, "s", oracle.Backward, []int{12, 13})

	o := newOrchestrator(t, g, orc)
	result, err := o.Run(context.Background(), SeedCriterion{Function: "top", Line: 7, Variable: "r", Direction: oracle.Backward})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := orc.callCount("shared", 13, "s", oracle.Backward); n != 1 {
		t.Errorf("shared queried %d times, want 1", n)
	}
	// Both call lines settle against the same non-empty criterion.
	want := map[string][]int{"top": {3, 5, 7}, "shared": {12, 13}}
	if got := result.LinesByFunction(); !reflect.DeepEqual(got, want) {
		t.Errorf("lines = %v, want %v", got, want)
	}
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	g := bindingTestGraph(t)
	script := func() *fakeOracle {
		orc := newFakeOracle()
		orc.answer("main", 5, "out", oracle.Backward, []int{3, 5},
			oracle.BoundaryBinding{Kind: oracle.BindingOutputValue, Callee: "helper", Line: 3, Index: -1})
		orc.answer("helper", 4, "y", oracle.Backward, []int{2, 4},
			oracle.BoundaryBinding{Kind: oracle.BindingParameter, Index: 0})
		orc.answer("main", 3, "r1", oracle.Backward, []int{1, 3})
		return orc
	}

	seed := SeedCriterion{Function: "main", Line: 5, Variable: "out", Direction: oracle.Backward}
	var baseline map[string][]int
	for _, workers := range []int{1, 2, 8} {
		o := newOrchestrator(t, g, script(), WithWorkers(workers))
		result, err := o.Run(context.Background(), seed)
		if err != nil {
			t.Fatalf("Run with %d workers: %v", workers, err)
		}
		got := result.LinesByFunction()
		if baseline == nil {
			baseline = got
			continue
		}
		if !reflect.DeepEqual(got, baseline) {
			t.Errorf("workers=%d produced %v, baseline %v", workers, got, baseline)
		}
	}
}

func TestRun_CanceledContext(t *testing.T) {
	orc := newFakeOracle()
	orc.fail("caller", 5, "v", oracle.Backward, context.Canceled)

	o := newOrchestrator(t, condGraph(t), orc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx, SeedCriterion{Function: "caller", Line: 5, Variable: "v", Direction: oracle.Backward})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGapReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&oracle.BudgetExhaustedError{Limit: 10}, "budget"},
		{&oracle.MalformedResponseError{FunctionID: "f", Attempts: 2}, "malformed"},
		{&oracle.CallFailedError{FunctionID: "f", Err: fmt.Errorf("timeout")}, "transport"},
	}
	for _, tc := range cases {
		if got := gapReason(tc.err); got != tc.want {
			t.Errorf("gapReason(%T) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	g := condGraph(t)
	if _, err := New(g, nil); err == nil {
		t.Error("expected error for nil oracle")
	}
	if _, err := New(nil, newFakeOracle()); err == nil {
		t.Error("expected error for nil graph")
	}
	if _, err := New(callgraph.New(), newFakeOracle()); err == nil {
		t.Error("expected error for unfrozen graph")
	}
}
