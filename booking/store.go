package booking

import (
	"context"

	"robotics_club_services/models"
)

// RequestFilter selects booking requests. Zero fields do not filter.
// Results are newest first.
type RequestFilter struct {
	IDs        []string
	DeviceID   string
	Contact    string
	RollNo     string
	OwnerToken string
}

// ActionFilter selects actions. Results are in log order (oldest first).
type ActionFilter struct {
	DeviceID   string
	RequestIDs []string
	Kind       models.ActionKind
}

// Store is the persistence the booking core needs. WithDeviceLock is the
// single serialization point per device: fn runs while the caller holds the
// exclusive lock on that device row, and everything fn writes through tx
// commits or rolls back together.
//
// Implementations return ErrDeviceNotFound / ErrRequestNotFound for missing
// rows, a Busy error when the lock cannot be taken in time, and a storage
// fault for anything else.
type Store interface {
	WithDeviceLock(ctx context.Context, deviceID string, fn func(tx Tx) error) error

	CreateDevice(ctx context.Context, d *models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetRequest(ctx context.Context, id string) (*models.BookingRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.BookingRequest, error)
	ListActions(ctx context.Context, f ActionFilter) ([]models.Action, error)
}

// Tx is the locked view of one device.
type Tx interface {
	Device() models.Device
	ListRequests(f RequestFilter) ([]models.BookingRequest, error)
	ListActions(f ActionFilter) ([]models.Action, error)
	CreateRequest(r *models.BookingRequest) error
	CreateAction(a *models.Action) error
	DeleteRequest(id string) error
	SetTotalQuantity(total int) error
	SaveCounters(c Counters) error
}
