package lifecycle

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

// Request field names.
const (
	FieldExecutor     = "executor"
	FieldAlarm        = "alarm"
	FieldAlarms       = "alarms"
	FieldID           = "id"
	FieldReductionKey = "reductionKey"
)

var (
	// ErrAlarmMissing is returned when a request carries no alarm object.
	ErrAlarmMissing = errors.New("alarm is required")
	// ErrReductionKeyMissing is returned when a delete request has no reduction key.
	ErrReductionKeyMissing = errors.New("reduction key is required")
	// ErrIDInvalid is returned when a delete request has no integral alarm id.
	ErrIDInvalid = errors.New("alarm id must be an integer")
)

// AlarmToStruct converts an alarm into its wire representation.
func AlarmToStruct(a *domain.Alarm) (*structpb.Struct, error) {
	data, err := domain.EncodeJSON(a)
	if err != nil {
		return nil, err
	}

	var out structpb.Struct
	if err = protojson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("convert alarm %d: %w", a.ID, err)
	}

	return &out, nil
}

// AlarmFromStruct converts the wire representation into an alarm.
func AlarmFromStruct(in *structpb.Struct) (*domain.Alarm, error) {
	if in == nil {
		return nil, ErrAlarmMissing
	}

	data, err := protojson.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("convert alarm: %w", err)
	}

	return domain.DecodeJSON(data)
}

// alarmID reads an integral alarm id from v.
func alarmID(v *structpb.Value) (int, error) {
	number, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, ErrIDInvalid
	}

	id := number.NumberValue
	if id != math.Trunc(id) || id < math.MinInt32 || id > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrIDInvalid, id)
	}

	return int(id), nil
}

// AlarmsFromList converts a list of alarm objects.
func AlarmsFromList(in *structpb.ListValue) ([]*domain.Alarm, error) {
	alarms := make([]*domain.Alarm, 0, len(in.GetValues()))

	for i, value := range in.GetValues() {
		a, err := AlarmFromStruct(value.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("alarm #%d: %w", i, err)
		}

		alarms = append(alarms, a)
	}

	return alarms, nil
}

// newOrUpdatedRequest builds the NewOrUpdated request payload.
func newOrUpdatedRequest(executor string, a *domain.Alarm) (*structpb.Struct, error) {
	alarm, err := AlarmToStruct(a)
	if err != nil {
		return nil, err
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarm: structpb.NewStructValue(alarm),
	}}
	setExecutor(req, executor)

	return req, nil
}

// snapshotRequest builds the Snapshot request payload.
func snapshotRequest(executor string, alarms []*domain.Alarm) (*structpb.Struct, error) {
	values := make([]*structpb.Value, 0, len(alarms))

	for _, a := range alarms {
		alarm, err := AlarmToStruct(a)
		if err != nil {
			return nil, err
		}

		values = append(values, structpb.NewStructValue(alarm))
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarms: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
	setExecutor(req, executor)

	return req, nil
}

// deletedRequest builds the Deleted request payload.
func deletedRequest(executor string, id int, reductionKey string) *structpb.Struct {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:           structpb.NewNumberValue(float64(id)),
		FieldReductionKey: structpb.NewStringValue(reductionKey),
	}}
	setExecutor(req, executor)

	return req
}

func setExecutor(req *structpb.Struct, executor string) {
	if executor != "" {
		req.Fields[FieldExecutor] = structpb.NewStringValue(executor)
	}
}
