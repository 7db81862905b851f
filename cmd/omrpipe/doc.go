// Package main hosts the omrpipe CLI entrypoint and command graph.
//
// The Cobra-based command tree exposes each pipeline stage on its own (clean,
// convert) as well as the whole pipeline (process, batch), the conversion
// ledger (history), readiness checks (status), and configuration scaffolding.
// It centralizes configuration resolution and logger setup so subcommands can
// focus on presenting results.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
