// Package services defines shared utilities consumed by the pipeline stages and
// the external engine integration.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, page indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so page failures and
//     conversion failures can be told apart with errors.Is.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
