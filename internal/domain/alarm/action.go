package alarm

// Action is the classification that decides how an alarm is handled.
type Action string

// Known actions.
const (
	// ActionTrigger is a new or unacknowledged, non-cleared alarm.
	ActionTrigger Action = "TRIGGER"
	// ActionAcknowledge is an acknowledged, non-cleared alarm.
	ActionAcknowledge Action = "ACKNOWLEDGE"
	// ActionResolve is a cleared alarm or a resolution.
	ActionResolve Action = "RESOLVE"
	// ActionDeleted is produced only by a delete callback.
	ActionDeleted Action = "DELETED"
)

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}

// Classify derives the action for an alarm snapshot.
// Cleared alarms resolve even when acknowledged.
func Classify(a *Alarm) Action {
	switch {
	case a.IsCleared():
		return ActionResolve
	case a.Acknowledged:
		return ActionAcknowledge
	default:
		return ActionTrigger
	}
}
