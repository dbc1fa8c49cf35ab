package booking

import (
	"time"

	"go.uber.org/zap"

	"robotics_club_services/models"
)

// Service is the device booking core: admission of new requests, the admin
// action state machine, and the inventory ledger that ties them together.
// It holds no state between calls; every operation reads fresh rows under
// the device lock.
type Service struct {
	store Store
	log   *zap.Logger
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithLocation sets the timezone whose calendar date counts as "today".
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		loc:   time.UTC,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() time.Time { return DateOf(s.now(), s.loc) }

// refresh recomputes the locked device's counters from its action log and
// persists them when they drifted.
func (s *Service) refresh(tx Tx) (Counters, []models.Action, error) {
	dev := tx.Device()
	actions, err := tx.ListActions(ActionFilter{DeviceID: dev.ID})
	if err != nil {
		return Counters{}, nil, err
	}
	c := Recompute(dev.TotalQuantity, actions)
	if c != CountersOf(dev) {
		if err := tx.SaveCounters(c); err != nil {
			return Counters{}, nil, err
		}
	}
	return c, actions, nil
}
