package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestClassify covers the resolve > acknowledge > trigger precedence.
func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		alarm Alarm
		want  Action
	}{
		{"new major", Alarm{Severity: SeverityMajor}, ActionTrigger},
		{"acknowledged", Alarm{Severity: SeverityMajor, Acknowledged: true}, ActionAcknowledge},
		{"cleared", Alarm{Severity: SeverityCleared}, ActionResolve},
		{"cleared and acknowledged", Alarm{Severity: SeverityCleared, Acknowledged: true}, ActionResolve},
		{"resolution type", Alarm{Severity: SeverityNormal, Type: TypeResolution, Acknowledged: true}, ActionResolve},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(&tc.alarm), tc.name)
	}
}

// TestParseSeverity checks labels are case-insensitive and unknown labels fail.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	s, err := ParseSeverity(" major ")
	require.NoError(t, err)
	require.Equal(t, SeverityMajor, s)
	require.Equal(t, "MAJOR", s.String())

	_, err = ParseSeverity("catastrophic")
	require.ErrorIs(t, err, ErrUnknownSeverity)
}

// TestDecodeJSON verifies the document shape, including optional node and event parameters.
func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	a, err := DecodeJSON([]byte(`{
		"id": 42,
		"reductionKey": "uei.opennms.org/nodes/nodeDown::1",
		"severity": "MAJOR",
		"type": "PROBLEM",
		"logMessage": " Node is down ",
		"node": {"label": "router-1", "categories": ["Routers"], "ipAddresses": ["10.0.0.1"]},
		"lastEvent": {"uei": "uei.opennms.org/nodes/nodeDown", "parameters": [{"name": "reason", "value": "timeout"}]}
	}`))
	require.NoError(t, err)
	require.Equal(t, 42, a.ID)
	require.Equal(t, SeverityMajor, a.Severity)
	require.Equal(t, TypeProblem, a.Type)
	require.Equal(t, "router-1", a.Node.Label)
	require.Equal(t, []Parameter{{Name: "reason", Value: "timeout"}}, a.LastEvent.Parameters)

	_, err = DecodeJSON([]byte(`{"id": 1}`))
	require.ErrorIs(t, err, ErrMissingReductionKey)

	_, err = DecodeJSON([]byte(`{"id": 1, "reductionKey": "k", "type": "bogus"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}

// TestEncodeJSON ensures an encoded alarm decodes back to the same snapshot.
func TestEncodeJSON(t *testing.T) {
	t.Parallel()

	want := &Alarm{
		ID:           7,
		ReductionKey: "K1",
		Severity:     SeverityCleared,
		Acknowledged: true,
		Type:         TypeResolution,
		Node:         &Node{Label: "n1"},
		LastEvent:    &LastEvent{UEI: "u", Parameters: []Parameter{{Name: "a", Value: "b"}}},
	}

	data, err := EncodeJSON(want)
	require.NoError(t, err)

	got, err := DecodeJSON(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestEventParam returns the first matching parameter.
func TestEventParam(t *testing.T) {
	t.Parallel()

	e := &Event{Parameters: []Parameter{{Name: "pid", Value: "a"}, {Name: "pid", Value: "b"}}}

	v, ok := e.Param("pid")
	require.True(t, ok)
	require.Equal(t, "a", v)

	_, ok = e.Param("missing")
	require.False(t, ok)
}
