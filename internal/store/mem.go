package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// Mem is an in memory only implementation of Store.
// Records go through the same encoding as Bolt so both behave alike.
type Mem struct {
	mu     sync.Mutex
	nextID int
	data   map[int][]byte
	now    func() time.Time
}

func NewMem() *Mem {
	return &Mem{
		nextID: 1,
		data:   make(map[int][]byte),
		now:    time.Now,
	}
}

func (m *Mem) Close() error { return nil }

func (m *Mem) list() ([]instance.Instance, error) {
	ids := make([]int, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	list := make([]instance.Instance, 0, len(ids))
	for _, id := range ids {
		inst, err := decodeInstance(m.data[id])
		if err != nil {
			return nil, err
		}
		list = append(list, inst)
	}
	return list, nil
}

func (m *Mem) get(id int) (instance.Instance, error) {
	v, ok := m.data[id]
	if !ok {
		return instance.Instance{}, ErrNotFound
	}
	return decodeInstance(v)
}

func (m *Mem) put(inst instance.Instance) error {
	data, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m.data[inst.ID] = data
	return nil
}

func (m *Mem) List(ctx context.Context) ([]instance.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list()
}

func (m *Mem) Get(ctx context.Context, id int) (instance.Instance, error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *Mem) Save(ctx context.Context, inst instance.Instance) (instance.Instance, error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.list()
	if err != nil {
		return instance.Instance{}, err
	}
	if err := checkName(existing, inst); err != nil {
		return instance.Instance{}, err
	}
	var prev *instance.Instance
	if inst.IsNew() {
		inst.ID = m.nextID
		m.nextID++
	} else {
		old, err := m.get(inst.ID)
		if err != nil {
			return instance.Instance{}, err
		}
		prev = &old
	}
	saved := stamp(inst, prev, m.now())
	return saved, m.put(saved)
}

func (m *Mem) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *Mem) ToggleEnabled(ctx context.Context, id int) (instance.Instance, error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.get(id)
	if err != nil {
		return instance.Instance{}, err
	}
	inst.Enabled = !inst.Enabled
	inst.UpdateTime = m.now()
	return inst, m.put(inst)
}
