// Package alarms persists alarm snapshots as JSON files, used to evaluate filter
// expressions offline.
package alarms
