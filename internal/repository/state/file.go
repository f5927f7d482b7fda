package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
)

// conditionsKey holds the snapshots in the state document.
const conditionsKey = "conditions"

// Repository defines persistence operations for condition snapshots keyed by condition name.
type Repository interface {
	Load(ctx context.Context) (map[string]*alarm.Snapshot, error)
	Save(ctx context.Context, snapshots map[string]*alarm.Snapshot) error
}

// FileRepository persists condition snapshots to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) so the file
// matches the documents served by the API.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshots from disk.
func (r *FileRepository) Load(_ context.Context) (map[string]*alarm.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	conditions := document.GetFields()[conditionsKey].GetStructValue()
	result := make(map[string]*alarm.Snapshot, len(conditions.GetFields()))

	for name, value := range conditions.GetFields() {
		snapshot, err := codec.DecodeSnapshot(value.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode condition %q: %w", name, err)
		}

		snapshot.Name = name
		result[name] = snapshot
	}

	return result, nil
}

// Save writes the snapshots to disk using JSON representation.
// The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, snapshots map[string]*alarm.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conditions := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(snapshots))}
	for name, snapshot := range snapshots {
		conditions.Fields[name] = structpb.NewStructValue(codec.EncodeSnapshot(snapshot))
	}

	var (
		document = &structpb.Struct{Fields: map[string]*structpb.Value{
			conditionsKey: structpb.NewStructValue(conditions),
		}}
		marshalOptions = protojson.MarshalOptions{
			Multiline: true,
		}
	)

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
