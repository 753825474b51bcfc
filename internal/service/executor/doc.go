// Package executor dispatches alarm lifecycle callbacks to shell commands.
//
// Each Executor owns a filter, a delay queue of pending triggers and a single consumer
// goroutine. New triggers wait for the hold-down delay so that an acknowledge, resolve or
// delete arriving in the meantime cancels them; everything else runs synchronously.
// Run wires the configured executors behind the lifecycle gRPC service.
package executor
