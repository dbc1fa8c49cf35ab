package models

import "time"

type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
	ActionReturn  ActionKind = "return"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionApprove, ActionReject, ActionReturn:
		return true
	}
	return false
}

// ActionStatus only carries meaning for approve/return actions.
type ActionStatus string

const (
	StatusOnService ActionStatus = "on_service"
	StatusReturned  ActionStatus = "returned"
	StatusOverdue   ActionStatus = "overdue"
)

// Action is an append-only admin decision on a request. Seq gives the log a
// total order that does not depend on clock resolution.
type Action struct {
	ID               string       `gorm:"type:uuid;primaryKey" json:"id"`
	Seq              int64        `gorm:"autoIncrement;uniqueIndex" json:"-"`
	RequestID        string       `gorm:"type:uuid;index;not null" json:"request_id"`
	DeviceID         string       `gorm:"type:uuid;index;not null" json:"device_id"`
	Kind             ActionKind   `gorm:"column:action_type;size:20;not null" json:"action_type"`
	ApprovedQuantity int          `gorm:"not null" json:"approved_quantity"`
	Status           ActionStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`
}

func (Action) TableName() string { return ActionTable }
