// Package config loads, normalizes, and validates fieldreport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FIELDREPORT_UPLOAD_TOKEN, optionally seeded from a .env file placed next to
// the config file. Host capabilities (persistent storage, camera) are declared
// here and injected into the queue and capture layers instead of being probed
// from the runtime environment.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
