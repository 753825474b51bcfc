// Package logger wraps zap for the shellexec daemon:
//   - a global sugared logger writing console-encoded lines to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV) so every
//     component logs under its own scope,
//   - level parsing and a per-logger level override option.
//
// Callers pass a context around and extract the logger from it instead of
// holding logger references in their structs.
package logger
