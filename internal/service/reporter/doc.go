// Package reporter builds execution outcome events and delivers them through sinks.
package reporter
