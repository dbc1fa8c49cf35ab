// models/device.go
package models

import "time"

const (
	DeviceTable  = "rc_devices"
	RequestTable = "rc_device_requests"
	ActionTable  = "rc_admin_actions"
)

// Device is one type of lendable hardware. The counters are derived from the
// action log and are only ever written by a ledger recompute.
type Device struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null;index" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	TotalQuantity    int       `gorm:"not null" json:"total_quantity"`
	CurrentAvailable int       `gorm:"not null" json:"current_available"`
	TotalBooked      int       `gorm:"not null" json:"total_booked"`
	IsAvailable      bool      `gorm:"not null" json:"is_available"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BookingRequest is a user's ask to borrow units of a device. It is never
// updated after insert; its status comes from the attached actions.
type BookingRequest struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID           string     `gorm:"type:uuid;index;not null" json:"device_id"`
	Name               string     `gorm:"size:255;not null" json:"name"`
	RollNo             string     `gorm:"size:50;not null;index" json:"roll_no"`
	Contact            string     `gorm:"size:32;not null;index" json:"contact"`
	OwnerToken         string     `gorm:"size:64;index" json:"-"`
	RequestedQuantity  int        `gorm:"not null" json:"requested_quantity"`
	ExpectedReturnDate *time.Time `gorm:"type:date" json:"expected_return_date,omitempty"`
	Purpose            string     `gorm:"type:text" json:"purpose"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
}

func (Device) TableName() string         { return DeviceTable }
func (BookingRequest) TableName() string { return RequestTable }
