// Package events forwards execution events to a remote receiver over gRPC
// (shellexec.v1.EventSink) and provides the matching receiving side.
package events
