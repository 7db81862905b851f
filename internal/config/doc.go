// Package config loads, normalizes, and validates omrpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the OMRPIPE_AUDIVERIS environment
// fallback for the engine executable. Engine presets are versioned with the
// file (config_version) and the selected preset is checked at load time, so a
// typo in a preset name fails before any page is processed.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
