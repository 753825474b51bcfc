// Package alarm contains the read-only alarm model consumed from the host
// platform, the action classification derived from it, and the outbound
// event emitted after every command execution.
package alarm
