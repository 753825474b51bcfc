package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

// SelfEventPrefix prefixes the reduction keys of events this system emits itself.
// Alarms created from those events are never processed.
const SelfEventPrefix = "uei.opennms.org/shellexecutor"

// alarmVariable is the name the alarm is bound to inside expressions.
const alarmVariable = "alarm"

var (
	// ErrEmptyExpression is returned when compiling a blank expression.
	ErrEmptyExpression = errors.New("expression is empty")
	// ErrEvaluate wraps expression runtime failures.
	ErrEvaluate = errors.New("evaluate filter expression")
)

// Predicate decides whether an alarm is eligible for processing.
type Predicate interface {
	Match(a *domain.Alarm) (bool, error)
}

// View is the read-only projection of an alarm visible to expressions as "alarm".
type View struct {
	ID             int               `expr:"id"`
	ReductionKey   string            `expr:"reductionKey"`
	Severity       string            `expr:"severity"`
	SeverityLevel  int               `expr:"severityLevel"`
	Acknowledged   bool              `expr:"acknowledged"`
	Type           string            `expr:"type"`
	LogMessage     string            `expr:"logMessage"`
	UEI            string            `expr:"uei"`
	NodeLabel      string            `expr:"nodeLabel"`
	NodeCategories []string          `expr:"nodeCategories"`
	IPAddress      string            `expr:"ipAddress"`
	Parameters     map[string]string `expr:"parameters"`
}

// NewView projects an alarm into the expression environment.
func NewView(a *domain.Alarm) View {
	view := View{
		ID:            a.ID,
		ReductionKey:  a.ReductionKey,
		Severity:      a.Severity.String(),
		SeverityLevel: int(a.Severity),
		Acknowledged:  a.Acknowledged,
		Type:          a.Type.String(),
		LogMessage:    a.LogMessage,
		Parameters:    map[string]string{},
	}

	if a.Node != nil {
		view.NodeLabel = a.Node.Label
		view.NodeCategories = a.Node.Categories

		if len(a.Node.IPAddresses) > 0 {
			view.IPAddress = a.Node.IPAddresses[0]
		}
	}

	if a.LastEvent != nil {
		view.UEI = a.LastEvent.UEI
		for _, p := range a.LastEvent.Parameters {
			if _, ok := view.Parameters[p.Name]; !ok {
				view.Parameters[p.Name] = p.Value
			}
		}
	}

	return view
}

// Expression is a compiled boolean alarm expression.
type Expression struct {
	source  string
	program *vm.Program
}

// Compile type-checks source against the alarm view and requires a boolean result.
func Compile(source string) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptyExpression
	}

	program, err := expr.Compile(source,
		expr.Env(map[string]any{alarmVariable: View{}}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter expression: %w", err)
	}

	return &Expression{
		source:  source,
		program: program,
	}, nil
}

// String returns the expression source.
func (e *Expression) String() string {
	return e.source
}

// Match evaluates the expression with the alarm bound as "alarm".
func (e *Expression) Match(a *domain.Alarm) (bool, error) {
	out, err := expr.Run(e.program, map[string]any{alarmVariable: NewView(a)})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}

	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: result is %T, not bool", ErrEvaluate, out)
	}

	return matched, nil
}

// AlarmFilter is the executor predicate: alarms raised by this system are always rejected,
// and without an expression nothing is forwarded.
type AlarmFilter struct {
	expression *Expression
}

// New returns the filter for an optional expression source.
// An empty source yields a filter that rejects every alarm.
func New(source string) (*AlarmFilter, error) {
	if strings.TrimSpace(source) == "" {
		return new(AlarmFilter), nil
	}

	expression, err := Compile(source)
	if err != nil {
		return nil, err
	}

	return &AlarmFilter{expression: expression}, nil
}

// HasExpression reports whether an expression is configured.
func (f *AlarmFilter) HasExpression() bool {
	return f.expression != nil
}

// Match implements Predicate.
func (f *AlarmFilter) Match(a *domain.Alarm) (bool, error) {
	if strings.HasPrefix(a.ReductionKey, SelfEventPrefix) {
		return false, nil
	}

	if f.expression == nil {
		return false, nil
	}

	return f.expression.Match(a)
}
