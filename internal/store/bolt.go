package store

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/mattmezza/alertdesk/internal/instance"
)

var instancesBucket = []byte("alert_instances")

// Bolt implementation of Store
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBolt opens (creating if needed) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt database %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(instancesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create instances bucket")
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// itob keys records big-endian so cursor order is id order.
func itob(id int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func (b *Bolt) List(ctx context.Context) ([]instance.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var list []instance.Instance
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		list, err = listTx(tx)
		return err
	})
	return list, err
}

func listTx(tx *bolt.Tx) ([]instance.Instance, error) {
	list := []instance.Instance{}
	err := tx.Bucket(instancesBucket).ForEach(func(k, v []byte) error {
		inst, err := decodeInstance(v)
		if err != nil {
			return errors.Wrapf(err, "decode instance %d", binary.BigEndian.Uint64(k))
		}
		list = append(list, inst)
		return nil
	})
	return list, err
}

func getTx(tx *bolt.Tx, id int) (instance.Instance, error) {
	v := tx.Bucket(instancesBucket).Get(itob(id))
	if v == nil {
		return instance.Instance{}, ErrNotFound
	}
	return decodeInstance(v)
}

func putTx(tx *bolt.Tx, inst instance.Instance) error {
	data, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	return tx.Bucket(instancesBucket).Put(itob(inst.ID), data)
}

func (b *Bolt) Get(ctx context.Context, id int) (inst instance.Instance, err error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	err = b.db.View(func(tx *bolt.Tx) error {
		inst, err = getTx(tx, id)
		return err
	})
	return
}

func (b *Bolt) Save(ctx context.Context, inst instance.Instance) (saved instance.Instance, err error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		existing, err := listTx(tx)
		if err != nil {
			return err
		}
		if err := checkName(existing, inst); err != nil {
			return err
		}
		var prev *instance.Instance
		if inst.IsNew() {
			seq, err := tx.Bucket(instancesBucket).NextSequence()
			if err != nil {
				return err
			}
			inst.ID = int(seq)
		} else {
			old, err := getTx(tx, inst.ID)
			if err != nil {
				return err
			}
			prev = &old
		}
		saved = stamp(inst, prev, b.now())
		return putTx(tx, saved)
	})
	return
}

func (b *Bolt) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(instancesBucket)
		if bucket.Get(itob(id)) == nil {
			return ErrNotFound
		}
		return bucket.Delete(itob(id))
	})
}

func (b *Bolt) ToggleEnabled(ctx context.Context, id int) (inst instance.Instance, err error) {
	if err := ctx.Err(); err != nil {
		return instance.Instance{}, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		inst, err = getTx(tx, id)
		if err != nil {
			return err
		}
		inst.Enabled = !inst.Enabled
		inst.UpdateTime = b.now()
		return putTx(tx, inst)
	})
	return
}
