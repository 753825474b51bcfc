// Package environment turns alarm snapshots into the ordered environment a
// command is started with.
//
// Derived keys are written first and event parameters last; the first write of
// a key wins, so an event parameter named like a derived key never replaces it.
package environment
