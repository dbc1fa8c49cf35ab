package booking

import "robotics_club_services/models"

// Counters is the projection of a device's action log.
type Counters struct {
	TotalBooked      int  `json:"total_booked"`
	CurrentAvailable int  `json:"current_available"`
	IsAvailable      bool `json:"is_available"`
}

// Recompute derives a device's counters from its full action history.
// Approvals book units, returns release them; reject actions carry no
// quantity. Both figures clamp at zero.
func Recompute(totalQuantity int, actions []models.Action) Counters {
	var approved, returned int
	for _, a := range actions {
		switch a.Kind {
		case models.ActionApprove:
			approved += a.ApprovedQuantity
		case models.ActionReturn:
			returned += a.ApprovedQuantity
		}
	}

	booked := max(0, approved-returned)
	available := max(0, totalQuantity-booked)
	return Counters{
		TotalBooked:      booked,
		CurrentAvailable: available,
		IsAvailable:      available > 0,
	}
}

// CountersOf reads the persisted counters of d.
func CountersOf(d models.Device) Counters {
	return Counters{
		TotalBooked:      d.TotalBooked,
		CurrentAvailable: d.CurrentAvailable,
		IsAvailable:      d.IsAvailable,
	}
}

// Apply writes c onto d.
func (c Counters) Apply(d *models.Device) {
	d.TotalBooked = c.TotalBooked
	d.CurrentAvailable = c.CurrentAvailable
	d.IsAvailable = c.IsAvailable
}
