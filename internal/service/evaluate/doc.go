// Package evaluate runs a filter expression against an alarm snapshot file and prints
// which alarms match, for trying out executor filters before deploying them.
package evaluate
