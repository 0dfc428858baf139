// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// --- Test: context propagation ---

func TestContextCarriers(t *testing.T) {
	ctx := context.Background()

	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q, want empty", got)
	}

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	ctx = ContextWithUserID(ctx, "user-1")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q, want req-1", got)
	}
	if got := SessionIDFromContext(ctx); got != "sess-1" {
		t.Errorf("SessionIDFromContext = %q, want sess-1", got)
	}
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("UserIDFromContext = %q, want user-1", got)
	}
}

func TestCtxEnrichesLogOutput(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	ctx := ContextWithSessionID(context.Background(), "sess-9")
	ctx = ContextWithUserID(ctx, "user-9")

	Ctx(ctx).Info().Msg("turn complete")

	out := buf.String()
	for _, want := range []string{`"session_id":"sess-9"`, `"user_id":"user-9"`, `"turn complete"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()
	if a == "" || a == b {
		t.Errorf("GenerateRequestID() produced %q and %q, want distinct non-empty", a, b)
	}
}
