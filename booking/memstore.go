package booking

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"robotics_club_services/models"
)

// MemStore implements Store in process memory. Each device gets its own
// weighted semaphore of size one, so operations on different devices never
// wait on each other. Writes made inside WithDeviceLock are staged and only
// applied when fn returns nil.
type MemStore struct {
	mu       sync.RWMutex
	devices  map[string]*models.Device
	requests []*models.BookingRequest // insertion order
	actions  []models.Action          // log order
	seq      int64

	locksMu     sync.Mutex
	locks       map[string]*semaphore.Weighted
	lockTimeout time.Duration
}

// NewMemStore creates an empty store. lockTimeout bounds how long
// WithDeviceLock waits; zero waits for the caller's context only.
func NewMemStore(lockTimeout time.Duration) *MemStore {
	return &MemStore{
		devices:     make(map[string]*models.Device),
		locks:       make(map[string]*semaphore.Weighted),
		lockTimeout: lockTimeout,
	}
}

func (s *MemStore) deviceLock(id string) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[id] = l
	}
	return l
}

func (s *MemStore) WithDeviceLock(ctx context.Context, deviceID string, fn func(tx Tx) error) error {
	s.mu.RLock()
	_, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if !ok {
		return ErrDeviceNotFound
	}

	lctx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	lock := s.deviceLock(deviceID)
	if err := lock.Acquire(lctx, 1); err != nil {
		return Busyf(err)
	}
	defer lock.Release(1)

	// Re-read under the lock; the device may have changed while we waited.
	s.mu.RLock()
	d, ok := s.devices[deviceID]
	var snapshot models.Device
	if ok {
		snapshot = *d
	}
	s.mu.RUnlock()
	if !ok {
		return ErrDeviceNotFound
	}

	tx := &memTx{store: s, device: snapshot, deleted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemStore) CreateDevice(_ context.Context, d *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.devices[d.ID] = &cp
	return nil
}

func (s *MemStore) GetDevice(_ context.Context, id string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemStore) ListDevices(_ context.Context) ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b models.Device) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *MemStore) GetRequest(_ context.Context, id string) (*models.BookingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (s *MemStore) ListRequests(_ context.Context, f RequestFilter) ([]models.BookingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterRequests(f, nil, nil), nil
}

func (s *MemStore) ListActions(_ context.Context, f ActionFilter) ([]models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterActions(f, nil, nil), nil
}

// filterRequests must be called with mu held. staged requests are newer than
// everything committed; deleted hides rows removed in the same tx.
func (s *MemStore) filterRequests(f RequestFilter, staged []models.BookingRequest, deleted map[string]bool) []models.BookingRequest {
	var out []models.BookingRequest
	for i := len(staged) - 1; i >= 0; i-- {
		if matchRequest(staged[i], f) && !deleted[staged[i].ID] {
			out = append(out, staged[i])
		}
	}
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := *s.requests[i]
		if matchRequest(r, f) && !deleted[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemStore) filterActions(f ActionFilter, staged []models.Action, deleted map[string]bool) []models.Action {
	var out []models.Action
	for _, a := range s.actions {
		if matchAction(a, f) && !deleted[a.RequestID] {
			out = append(out, a)
		}
	}
	for _, a := range staged {
		if matchAction(a, f) && !deleted[a.RequestID] {
			out = append(out, a)
		}
	}
	return out
}

func matchRequest(r models.BookingRequest, f RequestFilter) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	if f.DeviceID != "" && r.DeviceID != f.DeviceID {
		return false
	}
	if f.Contact != "" && r.Contact != f.Contact {
		return false
	}
	if f.RollNo != "" && r.RollNo != f.RollNo {
		return false
	}
	if f.OwnerToken != "" && r.OwnerToken != f.OwnerToken {
		return false
	}
	return true
}

func matchAction(a models.Action, f ActionFilter) bool {
	if f.DeviceID != "" && a.DeviceID != f.DeviceID {
		return false
	}
	if len(f.RequestIDs) > 0 && !slices.Contains(f.RequestIDs, a.RequestID) {
		return false
	}
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	return true
}

type memTx struct {
	store    *MemStore
	device   models.Device
	requests []models.BookingRequest
	actions  []models.Action
	deleted  map[string]bool
	total    *int
	counters *Counters
}

func (t *memTx) Device() models.Device { return t.device }

func (t *memTx) ListRequests(f RequestFilter) ([]models.BookingRequest, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.filterRequests(f, t.requests, t.deleted), nil
}

func (t *memTx) ListActions(f ActionFilter) ([]models.Action, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.filterActions(f, t.actions, t.deleted), nil
}

func (t *memTx) CreateRequest(r *models.BookingRequest) error {
	t.requests = append(t.requests, *r)
	return nil
}

func (t *memTx) CreateAction(a *models.Action) error {
	t.store.mu.Lock()
	t.store.seq++
	a.Seq = t.store.seq
	t.store.mu.Unlock()
	t.actions = append(t.actions, *a)
	return nil
}

func (t *memTx) DeleteRequest(id string) error {
	t.deleted[id] = true
	return nil
}

func (t *memTx) SetTotalQuantity(total int) error {
	t.total = &total
	t.device.TotalQuantity = total
	return nil
}

func (t *memTx) SaveCounters(c Counters) error {
	t.counters = &c
	c.Apply(&t.device)
	return nil
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range t.requests {
		r := t.requests[i]
		s.requests = append(s.requests, &r)
	}
	s.actions = append(s.actions, t.actions...)

	if len(t.deleted) > 0 {
		s.requests = slices.DeleteFunc(s.requests, func(r *models.BookingRequest) bool { return t.deleted[r.ID] })
		s.actions = slices.DeleteFunc(s.actions, func(a models.Action) bool { return t.deleted[a.RequestID] })
	}

	d := s.devices[t.device.ID]
	if t.total != nil {
		d.TotalQuantity = *t.total
	}
	if t.counters != nil {
		t.counters.Apply(d)
	}
	if t.total != nil || t.counters != nil {
		d.UpdatedAt = time.Now().UTC()
	}
}
