package alarm

import "time"

// Event is a notification sent back to the host platform.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string
	// UEI is the event identifier understood by the host platform.
	UEI string
	// Source names the emitter.
	Source string
	// Time is when the event was created.
	Time time.Time
	// Parameters are ordered name/value pairs.
	Parameters []Parameter
}

// Param returns the value of the first parameter with the given name.
func (e *Event) Param(name string) (string, bool) {
	for _, p := range e.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}

	return "", false
}
