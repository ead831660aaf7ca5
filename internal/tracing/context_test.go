package tracing

import (
	"context"
	"strings"
	"testing"
)

func TestNewIDs(t *testing.T) {
	if NewTraceID() == NewTraceID() {
		t.Error("NewTraceID returned duplicate IDs")
	}
	if NewRunID() == "" {
		t.Error("NewRunID returned empty string")
	}

	forkID := NewForkID()
	if !strings.HasPrefix(forkID, "fork-") || len(forkID) != len("fork-")+10 {
		t.Errorf("unexpected fork ID %q", forkID)
	}
	if forkID == NewForkID() {
		t.Error("NewForkID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace")
	ctx = WithRunID(ctx, "run")
	ctx = WithAgentID(ctx, "agent")
	ctx = WithParentRunID(ctx, "parent")

	tc := FromContext(ctx)
	if tc.TraceID != "trace" || tc.RunID != "run" || tc.AgentID != "agent" || tc.ParentRunID != "parent" {
		t.Errorf("unexpected trace context %+v", tc)
	}
}

func TestEmptyContext(t *testing.T) {
	tc := FromContext(context.Background())
	if tc.TraceID != "" || tc.RunID != "" || tc.AgentID != "" || tc.ParentRunID != "" {
		t.Errorf("expected empty trace context, got %+v", tc)
	}
}

func TestNewRunContext(t *testing.T) {
	ctx := NewRunContext(context.Background(), "main")
	if GetTraceID(ctx) == "" {
		t.Error("trace ID not generated")
	}
	if GetRunID(ctx) == "" {
		t.Error("run ID not generated")
	}
	if GetAgentID(ctx) != "main" {
		t.Errorf("expected agent ID main, got %s", GetAgentID(ctx))
	}

	again := NewRunContext(ctx, "")
	if GetTraceID(again) != GetTraceID(ctx) {
		t.Error("existing trace ID should be kept")
	}
	if GetRunID(again) == GetRunID(ctx) {
		t.Error("each run should get a new run ID")
	}
	if GetAgentID(again) != "main" {
		t.Error("agent ID should be inherited when none is given")
	}
}

func TestNewRunContextKeepsForkRunID(t *testing.T) {
	parent := NewRunContext(context.Background(), "main")
	fork := PropagateToFork(parent, "fork-1")

	run := NewRunContext(fork, "fork-1")

	if GetRunID(run) != GetRunID(fork) {
		t.Errorf("expected fork run ID %s, got %s", GetRunID(fork), GetRunID(run))
	}
	if GetParentRunID(run) != GetRunID(parent) {
		t.Error("parent run ID should be kept")
	}
	if GetTraceID(run) != GetTraceID(parent) {
		t.Error("trace ID should be kept")
	}
}

func TestNewRunContextWithoutParent(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-old")

	run := NewRunContext(ctx, "main")

	if GetRunID(run) == "run-old" {
		t.Error("a run without a parent should get a fresh run ID")
	}
}
