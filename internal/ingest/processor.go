// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package ingest

import (
	"context"

	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/session"
)

// TurnProcessor is the slice of the session controller the consumer
// drives. The returned turn is discarded on the broker path; results
// reach watchers through the controller's own notifier.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, sig *prefs.Signal, opts session.TurnOptions) (*session.Turn, error)
}

var _ TurnProcessor = (*session.Controller)(nil)
