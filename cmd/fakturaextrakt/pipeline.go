package main

import (
	"context"

	"github.com/kvitto/fakturaextrakt"
)

// extractionCore runs fakturaextrakt.Extract with the optional AI
// provider wired from the environment and a progress callback that logs
// each stage at debug level, shared by both the extract and validate
// subcommands so they never drift in how they invoke the core.
func extractionCore(ctx context.Context, raw []byte, profile fakturaextrakt.Profile) ([]fakturaextrakt.InvoiceResult, error) {
	ai := maybeAIProvider()
	onProgress := func(ev fakturaextrakt.ProgressEvent) {
		logger.Debug().
			Str("run_id", ev.RunID.String()).
			Str("stage", ev.Stage).
			Int("page", ev.PageIndex).
			Int("total_pages", ev.TotalPages).
			Msg("pipeline stage complete")
	}
	return fakturaextrakt.Extract(ctx, raw, profile, ai, onProgress)
}
