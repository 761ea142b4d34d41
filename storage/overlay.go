package storage

// Overlay stages writes over a backing database so a state transition either
// lands in full or not at all. Reads observe staged writes first and fall
// through to the backing store; nothing reaches the store until Commit. A
// transition that fails simply drops its overlay, discarding every staged
// write.
//
// Overlay is not safe for concurrent use; callers serialise transitions.
type Overlay struct {
	db     Database
	order  []string
	staged map[string][]byte
}

// NewOverlay creates an empty overlay on top of the provided database.
func NewOverlay(db Database) *Overlay {
	return &Overlay{db: db, staged: make(map[string][]byte)}
}

func (o *Overlay) Put(key, value []byte) error {
	k := string(key)
	if _, ok := o.staged[k]; !ok {
		o.order = append(o.order, k)
	}
	o.staged[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if value, ok := o.staged[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.db.Get(key)
}

// Close satisfies the Database interface. The overlay does not own the
// backing store, so nothing is released.
func (o *Overlay) Close() {}

// Pending reports the number of staged writes.
func (o *Overlay) Pending() int {
	return len(o.order)
}

// Commit flushes the staged writes to the backing store in first-write order
// and resets the overlay. Backends implementing BatchWriter receive the whole
// set as one atomic batch; otherwise writes are replayed individually.
func (o *Overlay) Commit() error {
	if len(o.order) == 0 {
		return nil
	}
	if batcher, ok := o.db.(BatchWriter); ok {
		writes := make([]BatchWrite, 0, len(o.order))
		for _, k := range o.order {
			writes = append(writes, BatchWrite{Key: []byte(k), Value: o.staged[k]})
		}
		if err := batcher.WriteBatch(writes); err != nil {
			return err
		}
	} else {
		for _, k := range o.order {
			if err := o.db.Put([]byte(k), o.staged[k]); err != nil {
				return err
			}
		}
	}
	o.order = nil
	o.staged = make(map[string][]byte)
	return nil
}
