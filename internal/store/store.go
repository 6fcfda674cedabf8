package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// Common errors that can be returned
var (
	ErrNotFound   = errors.New("alert instance does not exist")
	ErrNameExists = errors.New("alert instance name already exists")
)

// Store persists alert instances.
type Store interface {
	// List returns every instance ordered by ascending id.
	List(ctx context.Context) ([]instance.Instance, error)
	Get(ctx context.Context, id int) (instance.Instance, error)
	// Save creates the instance when its id is 0 and replaces it otherwise.
	// ErrNotFound is returned when replacing an id that does not exist.
	Save(ctx context.Context, inst instance.Instance) (instance.Instance, error)
	// Delete removes an instance. ErrNotFound is returned for unknown ids.
	Delete(ctx context.Context, id int) error
	// ToggleEnabled flips the enabled flag and returns the stored result.
	ToggleEnabled(ctx context.Context, id int) (instance.Instance, error)
	Close() error
}

// Open returns a bolt backed store at path, or an in-memory store when path is ":memory:".
func Open(path string) (Store, error) {
	if path == "" || path == MemoryPath {
		return NewMem(), nil
	}
	return OpenBolt(path)
}

const MemoryPath = ":memory:"

// Records are stored wrapped with a version so the layout can evolve.
const instanceVersion1 = 1

type versionWrapper struct {
	Version int              `json:"version"`
	Value   *json.RawMessage `json:"value"`
}

func encodeInstance(inst instance.Instance) ([]byte, error) {
	raw, err := json.Marshal(inst)
	if err != nil {
		return nil, err
	}
	value := json.RawMessage(raw)
	return json.Marshal(versionWrapper{Version: instanceVersion1, Value: &value})
}

func decodeInstance(data []byte) (instance.Instance, error) {
	var w versionWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return instance.Instance{}, err
	}
	if w.Value == nil {
		return instance.Instance{}, errors.New("empty value")
	}
	switch w.Version {
	case instanceVersion1:
		var inst instance.Instance
		err := json.NewDecoder(bytes.NewReader(*w.Value)).Decode(&inst)
		return inst, err
	default:
		return instance.Instance{}, fmt.Errorf("unknown instance version %d: cannot decode", w.Version)
	}
}

// checkName rejects inst when another stored instance already uses its name.
func checkName(existing []instance.Instance, inst instance.Instance) error {
	for _, other := range existing {
		if other.ID != inst.ID && strings.EqualFold(other.Name, inst.Name) {
			return errors.Wrapf(ErrNameExists, "%q", inst.Name)
		}
	}
	return nil
}

// stamp carries over creation time from prev and sets the update time.
func stamp(inst instance.Instance, prev *instance.Instance, now time.Time) instance.Instance {
	if prev != nil {
		inst.CreateTime = prev.CreateTime
	} else {
		inst.CreateTime = now
	}
	inst.UpdateTime = now
	return inst
}
