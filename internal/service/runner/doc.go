// Package runner executes alarm commands with an isolated environment, combined output
// capture and a timeout that kills the whole process tree.
package runner
