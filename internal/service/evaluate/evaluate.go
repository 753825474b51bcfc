package evaluate

import (
	"context"
	"fmt"
	"io"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
	repository "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/repository/alarms"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/environment"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/filter"
)

// Options controls an offline expression evaluation.
type Options struct {
	// Expression is the filter expression to evaluate.
	Expression string
	// AlarmsFile is the JSON alarm snapshot to evaluate against.
	AlarmsFile string
	// Payload also prints the environment of every matched alarm.
	Payload bool
	// Count prints only the summary. It wins over Payload.
	Count bool
	// AlarmID, when set, reports how the expression evaluates for that alarm.
	AlarmID *int
}

// Summary is the outcome of an evaluation.
type Summary struct {
	Total        int
	Matched      int
	AlarmIDFound bool
}

// Run loads the alarm file and writes the evaluation report to w.
func Run(ctx context.Context, opts *Options, w io.Writer) error {
	ctx = logger.WithName(ctx, "eval")

	expression, err := filter.Compile(opts.Expression)
	if err != nil {
		return err
	}

	alarms, err := repository.NewFileRepository(opts.AlarmsFile).Load(ctx)
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}

	logger.DebugKV(ctx, "Evaluating expression", "expression", expression.String(), "alarms", len(alarms))

	_, err = Evaluate(ctx, w, expression, alarms, opts)

	return err
}

// Evaluate matches every alarm against expression and writes matches, payloads and a summary line.
func Evaluate(
	ctx context.Context,
	w io.Writer,
	expression *filter.Expression,
	alarms []*domain.Alarm,
	opts *Options,
) (Summary, error) {
	var summary Summary

	if opts.Payload && opts.Count {
		fmt.Fprintln(w, "Options '-p' and '-c' are mutually exclusive, ignoring '-p'")
	}

	for _, a := range alarms {
		summary.Total++

		matched, err := expression.Match(a)
		if err != nil {
			return summary, fmt.Errorf("alarm %d: %w", a.ID, err)
		}

		selected := opts.AlarmID != nil && a.ID == *opts.AlarmID
		if selected {
			summary.AlarmIDFound = true

			fmt.Fprintf(w, "Alarm with ID '%d' has reduction key: '%s'\n", a.ID, a.ReductionKey)
			fmt.Fprintf(w, "Expression evaluates: %t\n", matched)
		}

		if !matched {
			continue
		}

		summary.Matched++

		if !opts.Count && opts.AlarmID == nil {
			if err = printAlarm(w, a); err != nil {
				return summary, err
			}
		}

		if opts.Payload && !opts.Count && (opts.AlarmID == nil || selected) {
			printPayload(ctx, w, a)
		}
	}

	printSummary(w, summary, opts.AlarmID)

	return summary, nil
}

func printAlarm(w io.Writer, a *domain.Alarm) error {
	data, err := domain.EncodeJSON(a)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "MATCHED: %s\n\n", data)

	return nil
}

func printPayload(ctx context.Context, w io.Writer, a *domain.Alarm) {
	_, env := environment.Payload(ctx, a)

	fmt.Fprintln(w, "Environment payload:")

	for _, key := range env.Keys() {
		fmt.Fprintf(w, "    %s = %q\n", key, env.Value(key))
	}

	fmt.Fprintln(w)
}

func printSummary(w io.Writer, summary Summary, alarmID *int) {
	switch {
	case summary.Total == 0:
		fmt.Fprint(w, "\nNo alarms present.\n")
	case summary.Matched == 0:
		fmt.Fprintf(w, "\nNo alarms matched (out of %d alarms.)\n", summary.Total)
	case alarmID != nil && !summary.AlarmIDFound:
		fmt.Fprintf(w, "\nNo alarm with ID %d was found!\n", *alarmID)
	default:
		fmt.Fprintf(w, "\nExpression matched %d alarms (out of %d alarms.)\n", summary.Matched, summary.Total)
	}
}
