package alarms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	domain "github.com/dino2gnt/opennms-shellexecutor-plugin/internal/domain/alarm"
)

// listField is the wrapper key accepted around the alarm list.
const listField = "alarms"

var (
	// ErrNotFound is returned when the alarm file does not exist.
	ErrNotFound = errors.New("alarm file not found")
	// ErrUnexpectedShape is returned when the document is neither a list nor an object with "alarms".
	ErrUnexpectedShape = errors.New(`alarm file must hold a list or an object with an "alarms" list`)
)

// Repository loads and stores alarm snapshots.
type Repository interface {
	Load(ctx context.Context) ([]*domain.Alarm, error)
	Save(ctx context.Context, alarms []*domain.Alarm) error
}

// FileRepository keeps an alarm snapshot in a JSON file.
// The document is either a list of alarms or an object with an "alarms" list.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu serializes file access.
	mu sync.Mutex
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads every alarm from disk, in file order.
func (r *FileRepository) Load(_ context.Context) ([]*domain.Alarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read alarm file: %w", err)
	}

	var document structpb.Value
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode alarm file: %w", err)
	}

	list := document.GetListValue()
	if list == nil {
		list = document.GetStructValue().GetFields()[listField].GetListValue()
	}

	if list == nil {
		return nil, ErrUnexpectedShape
	}

	result := make([]*domain.Alarm, 0, len(list.GetValues()))

	for i, value := range list.GetValues() {
		data, err := protojson.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("alarm #%d: %w", i, err)
		}

		a, err := domain.DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("alarm #%d: %w", i, err)
		}

		result = append(result, a)
	}

	return result, nil
}

// Save writes the alarms to disk as an object with an "alarms" list.
func (r *FileRepository) Save(_ context.Context, alarms []*domain.Alarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]*structpb.Value, 0, len(alarms))

	for _, a := range alarms {
		data, err := domain.EncodeJSON(a)
		if err != nil {
			return err
		}

		var value structpb.Value
		if err = protojson.Unmarshal(data, &value); err != nil {
			return fmt.Errorf("encode alarm %d: %w", a.ID, err)
		}

		values = append(values, &value)
	}

	document := &structpb.Struct{Fields: map[string]*structpb.Value{
		listField: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write alarm file: %w", err)
	}

	return nil
}
