package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"robotics_club_services/booking"
	"robotics_club_services/models"
)

// Repo is the postgres-backed booking.Store. The device row lock taken by
// WithDeviceLock is what serializes admissions and admin actions per device.
type Repo struct {
	DB          *gorm.DB
	LockTimeout time.Duration
}

var _ booking.Store = (*Repo)(nil)

func NewRepo(db *gorm.DB, lockTimeout time.Duration) *Repo {
	return &Repo{DB: db, LockTimeout: lockTimeout}
}

// WithDeviceLock: 锁住设备行 → fn → 提交；fn 出错则整体回滚
func (r *Repo) WithDeviceLock(ctx context.Context, deviceID string, fn func(tx booking.Tx) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.LockTimeout > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", r.LockTimeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		var d models.Device
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&d, "id = ?", deviceID).Error; err != nil {
			return classify("lock device", err, booking.ErrDeviceNotFound)
		}
		return fn(&repoTx{tx: tx, device: d})
	})
	return classify("device transaction", err, booking.ErrDeviceNotFound)
}

func (r *Repo) CreateDevice(ctx context.Context, d *models.Device) error {
	return classify("create device", r.DB.WithContext(ctx).Create(d).Error, nil)
}

func (r *Repo) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	if err := r.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, classify("get device", err, booking.ErrDeviceNotFound)
	}
	return &d, nil
}

func (r *Repo) ListDevices(ctx context.Context) ([]models.Device, error) {
	var ds []models.Device
	if err := r.DB.WithContext(ctx).Order("name ASC").Find(&ds).Error; err != nil {
		return nil, classify("list devices", err, nil)
	}
	return ds, nil
}

func (r *Repo) GetRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	var req models.BookingRequest
	if err := r.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, classify("get request", err, booking.ErrRequestNotFound)
	}
	return &req, nil
}

func (r *Repo) ListRequests(ctx context.Context, f booking.RequestFilter) ([]models.BookingRequest, error) {
	rs, err := findRequests(r.DB.WithContext(ctx), f)
	return rs, classify("list requests", err, nil)
}

func (r *Repo) ListActions(ctx context.Context, f booking.ActionFilter) ([]models.Action, error) {
	as, err := findActions(r.DB.WithContext(ctx), f)
	return as, classify("list actions", err, nil)
}

func findRequests(db *gorm.DB, f booking.RequestFilter) ([]models.BookingRequest, error) {
	q := db.Model(&models.BookingRequest{}).Order("created_at DESC").Order("id DESC")
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Contact != "" {
		q = q.Where("contact = ?", f.Contact)
	}
	if f.RollNo != "" {
		q = q.Where("roll_no = ?", f.RollNo)
	}
	if f.OwnerToken != "" {
		q = q.Where("owner_token = ?", f.OwnerToken)
	}
	var rs []models.BookingRequest
	if err := q.Find(&rs).Error; err != nil {
		return nil, err
	}
	return rs, nil
}

func findActions(db *gorm.DB, f booking.ActionFilter) ([]models.Action, error) {
	q := db.Model(&models.Action{}).Order("seq ASC")
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if len(f.RequestIDs) > 0 {
		q = q.Where("request_id IN ?", f.RequestIDs)
	}
	if f.Kind != "" {
		q = q.Where("action_type = ?", f.Kind)
	}
	var as []models.Action
	if err := q.Find(&as).Error; err != nil {
		return nil, err
	}
	return as, nil
}

// repoTx is only valid inside the WithDeviceLock callback.
type repoTx struct {
	tx     *gorm.DB
	device models.Device
}

func (t *repoTx) Device() models.Device { return t.device }

func (t *repoTx) ListRequests(f booking.RequestFilter) ([]models.BookingRequest, error) {
	return findRequests(t.tx, f)
}

func (t *repoTx) ListActions(f booking.ActionFilter) ([]models.Action, error) {
	return findActions(t.tx, f)
}

func (t *repoTx) CreateRequest(r *models.BookingRequest) error {
	return t.tx.Create(r).Error
}

// Seq is filled from RETURNING.
func (t *repoTx) CreateAction(a *models.Action) error {
	return t.tx.Create(a).Error
}

func (t *repoTx) DeleteRequest(id string) error {
	if err := t.tx.Where("request_id = ?", id).Delete(&models.Action{}).Error; err != nil {
		return err
	}
	res := t.tx.Where("id = ? AND device_id = ?", id, t.device.ID).Delete(&models.BookingRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return booking.ErrRequestNotFound
	}
	return nil
}

func (t *repoTx) SetTotalQuantity(total int) error {
	if err := t.tx.Model(&models.Device{}).
		Where("id = ?", t.device.ID).
		Updates(map[string]any{"total_quantity": total, "updated_at": time.Now().UTC()}).Error; err != nil {
		return err
	}
	t.device.TotalQuantity = total
	return nil
}

// SaveCounters writes through a map so zero values are not skipped.
func (t *repoTx) SaveCounters(c booking.Counters) error {
	if err := t.tx.Model(&models.Device{}).
		Where("id = ?", t.device.ID).
		Updates(map[string]any{
			"total_booked":      c.TotalBooked,
			"current_available": c.CurrentAvailable,
			"is_available":      c.IsAvailable,
			"updated_at":        time.Now().UTC(),
		}).Error; err != nil {
		return err
	}
	c.Apply(&t.device)
	return nil
}
