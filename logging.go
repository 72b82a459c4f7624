package fakturaextrakt

import "github.com/rs/zerolog"

// stageLogger returns a child logger pre-bound with the run and stage
// identity fields every structured log line carries, so one extraction
// run's lines correlate across stages. The logger is threaded down from
// the Profile; nothing here touches the global zerolog logger.
func stageLogger(base zerolog.Logger, runID, stage string) zerolog.Logger {
	return base.With().Str("run_id", runID).Str("stage", stage).Logger()
}
