// Package config defines the daemon settings and the per-instance executor
// configuration, with helpers to load, validate and save them as YAML.
//
// Validation fills defaults in place: listen address, scripts directory,
// call timeout, event buffer and per-executor command timeout.
package config
