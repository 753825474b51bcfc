// Package lifecycle exposes the alarm lifecycle callbacks over gRPC.
//
// The service is shellexec.v1.AlarmLifecycle. Requests are google.protobuf.Struct documents
// carrying an optional "executor" field that routes the call to one configured instance;
// without it the call is delivered to every instance. Alarms travel as JSON-shaped objects
// using the same field names as alarm files.
package lifecycle
