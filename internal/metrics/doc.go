// Package metrics defines the Prometheus metrics exported by the executor daemon.
package metrics
