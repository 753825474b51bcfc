package events

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

// ErrUEIMissing is returned when an event document has no UEI.
var ErrUEIMissing = errors.New("event uei is required")

// ToStruct converts an event into its wire representation.
func ToStruct(event *domain.Event) (*structpb.Struct, error) {
	params := make([]any, 0, len(event.Parameters))
	for _, p := range event.Parameters {
		params = append(params, map[string]any{"name": p.Name, "value": p.Value})
	}

	fields := map[string]any{
		"id":         event.ID,
		"uei":        event.UEI,
		"source":     event.Source,
		"parameters": params,
	}

	if !event.Time.IsZero() {
		fields["time"] = event.Time.UTC().Format(time.RFC3339Nano)
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("convert event %s: %w", event.ID, err)
	}

	return out, nil
}

// FromStruct converts the wire representation into an event. Parameter order is preserved.
func FromStruct(in *structpb.Struct) (*domain.Event, error) {
	fields := in.GetFields()

	event := &domain.Event{
		ID:     fields["id"].GetStringValue(),
		UEI:    fields["uei"].GetStringValue(),
		Source: fields["source"].GetStringValue(),
	}

	if event.UEI == "" {
		return nil, ErrUEIMissing
	}

	if raw := fields["time"].GetStringValue(); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("event %s time: %w", event.ID, err)
		}

		event.Time = parsed
	}

	for _, value := range fields["parameters"].GetListValue().GetValues() {
		param := value.GetStructValue().GetFields()
		event.Parameters = append(event.Parameters, domain.Parameter{
			Name:  param["name"].GetStringValue(),
			Value: param["value"].GetStringValue(),
		})
	}

	return event, nil
}
