package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

func majorAlarm() *domain.Alarm {
	return &domain.Alarm{
		ID:           9,
		ReductionKey: "uei.opennms.org/nodes/nodeDown::9",
		Severity:     domain.SeverityMajor,
		Type:         domain.TypeProblem,
		Node: &domain.Node{
			Label:       "router-9",
			Categories:  []string{"Routers"},
			IPAddresses: []string{"10.0.0.9"},
		},
		LastEvent: &domain.LastEvent{
			UEI:        "uei.opennms.org/nodes/nodeDown",
			Parameters: []domain.Parameter{{Name: "reason", Value: "timeout"}},
		},
	}
}

// TestAlarmFilter_NoExpressionRejectsEverything documents the "no filter forwards nothing" policy.
func TestAlarmFilter_NoExpressionRejectsEverything(t *testing.T) {
	t.Parallel()

	f, err := New("   ")
	require.NoError(t, err)
	require.False(t, f.HasExpression())

	ok, err := f.Match(majorAlarm())
	require.NoError(t, err)
	require.False(t, ok)
}

// TestAlarmFilter_SelfPrefixAlwaysRejected holds even for an always-true expression.
func TestAlarmFilter_SelfPrefixAlwaysRejected(t *testing.T) {
	t.Parallel()

	f, err := New("true")
	require.NoError(t, err)

	for _, key := range []string{
		SelfEventPrefix + "/executionFailed",
		SelfEventPrefix + "/executionSuccessful::pager",
		SelfEventPrefix,
	} {
		a := majorAlarm()
		a.ReductionKey = key

		ok, err := f.Match(a)
		require.NoError(t, err)
		require.False(t, ok, key)
	}

	ok, err := f.Match(majorAlarm())
	require.NoError(t, err)
	require.True(t, ok)
}

// TestExpression_Fields exercises the view fields available to expressions.
func TestExpression_Fields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		source string
		want   bool
	}{
		{`alarm.severity == "MAJOR"`, true},
		{`alarm.severityLevel >= 7`, false},
		{`alarm.reductionKey startsWith "uei.opennms.org/"`, true},
		{`alarm.nodeLabel == "router-9" && !alarm.acknowledged`, true},
		{`"Routers" in alarm.nodeCategories`, true},
		{`alarm.parameters["reason"] == "timeout"`, true},
		{`alarm.uei endsWith "nodeUp"`, false},
		{`alarm.ipAddress == "10.0.0.9" && alarm.id == 9`, true},
		{`alarm.type == "PROBLEM"`, true},
	}

	for _, tc := range cases {
		source, want := tc.source, tc.want

		e, err := Compile(source)
		require.NoError(t, err, source)
		require.Equal(t, source, e.String())

		got, err := e.Match(majorAlarm())
		require.NoError(t, err, source)
		require.Equal(t, want, got, source)
	}
}

// TestCompile_Errors rejects blank, non-boolean and ill-typed expressions.
func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	_, err := Compile("")
	require.ErrorIs(t, err, ErrEmptyExpression)

	_, err = Compile(`alarm.severity`)
	require.Error(t, err)

	_, err = Compile(`alarm.noSuchField == 1`)
	require.Error(t, err)

	_, err = New(`alarm.severity ==`)
	require.Error(t, err)
}

// TestExpression_RuntimeErrorPropagates ensures evaluation failures are never reported as false.
func TestExpression_RuntimeErrorPropagates(t *testing.T) {
	t.Parallel()

	e, err := Compile(`alarm.nodeCategories[5] == "Servers"`)
	require.NoError(t, err)

	_, err = e.Match(majorAlarm())
	require.ErrorIs(t, err, ErrEvaluate)
}
