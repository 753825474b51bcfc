package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/evaluate"
)

// defaultAlarmsFile is the snapshot evaluated when --alarms is not given.
const defaultAlarmsFile = "alarms.json"

// newEvalCommand builds the `eval` subcommand.
func newEvalCommand() *cobra.Command {
	var (
		opts    evaluate.Options
		alarmID int
	)

	command := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a filter expression against an alarm snapshot.",
		Long: `Evaluates a filter expression against every alarm in a JSON snapshot file and prints
the matching alarms followed by a summary. The alarm is available as "alarm", for example:

  shellexec eval 'alarm.severity == "MAJOR" && "Routers" in alarm.nodeCategories'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Expression = args[0]

			if cmd.Flags().Changed("alarm-id") {
				opts.AlarmID = &alarmID
			}

			return evaluate.Run(context.Background(), &opts, cmd.OutOrStdout())
		},
	}

	flags := command.Flags()
	flags.StringVarP(&opts.AlarmsFile, "alarms", "f", defaultAlarmsFile, "path to the alarm snapshot JSON file")
	flags.BoolVarP(&opts.Payload, "payload", "p", false, "also display matched alarms as shell environment payload")
	flags.BoolVarP(&opts.Count, "count", "c", false, "only show the number of matching alarms")
	flags.IntVarP(&alarmID, "alarm-id", "a", 0, "evaluate the expression against the alarm with this id")

	return command
}
