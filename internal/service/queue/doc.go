// Package queue implements the delay queue holding deferred trigger tasks.
//
// Tasks are keyed by reduction key: a task can be cancelled by key until a
// consumer takes it, and scheduling the same key again refreshes the queued
// task instead of adding a second one.
package queue
