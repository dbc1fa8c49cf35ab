package booking

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"robotics_club_services/models"
)

// Availability is what the client sees before submitting.
type Availability struct {
	DeviceID         string `json:"device_id"`
	TotalQuantity    int    `json:"total_quantity"`
	CurrentAvailable int    `json:"current_available"`
	TotalBooked      int    `json:"total_booked"`
	IsAvailable      bool   `json:"is_available"`
}

func availabilityOf(d models.Device, c Counters) *Availability {
	return &Availability{
		DeviceID:         d.ID,
		TotalQuantity:    d.TotalQuantity,
		CurrentAvailable: c.CurrentAvailable,
		TotalBooked:      c.TotalBooked,
		IsAvailable:      c.IsAvailable,
	}
}

// Availability recomputes the device's counters under its lock before
// answering, so a write from another process is never missed.
func (s *Service) Availability(ctx context.Context, deviceID string) (*Availability, error) {
	var out *Availability
	err := s.store.WithDeviceLock(ctx, deviceID, func(tx Tx) error {
		c, _, err := s.refresh(tx)
		if err != nil {
			return err
		}
		out = availabilityOf(tx.Device(), c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDevice registers a new device with its full quantity available.
func (s *Service) CreateDevice(ctx context.Context, name, description string, totalQuantity int) (*models.Device, error) {
	if totalQuantity < 1 {
		return nil, newError(CodeInvalidQuantity, "total quantity must be at least 1")
	}
	now := s.now().UTC()
	d := &models.Device{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(name),
		Description:      description,
		TotalQuantity:    totalQuantity,
		CurrentAvailable: totalQuantity,
		IsAvailable:      true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateDevice(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("device created", zap.String("device_id", d.ID), zap.Int("total_quantity", totalQuantity))
	return d, nil
}

// SetTotalQuantity changes how many units the club owns. Units already out
// stay booked; current_available clamps at zero.
func (s *Service) SetTotalQuantity(ctx context.Context, deviceID string, total int) (*Availability, error) {
	if total < 0 {
		return nil, newError(CodeInvalidQuantity, "total quantity cannot be negative")
	}
	var out *Availability
	err := s.store.WithDeviceLock(ctx, deviceID, func(tx Tx) error {
		if err := tx.SetTotalQuantity(total); err != nil {
			return err
		}
		c, _, err := s.refresh(tx)
		if err != nil {
			return err
		}
		out = availabilityOf(tx.Device(), c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("device quantity changed", zap.String("device_id", deviceID), zap.Int("total_quantity", total))
	return out, nil
}

// DeleteRequest is administrative cleanup: the request and its actions go,
// and the device is recomputed without them.
func (s *Service) DeleteRequest(ctx context.Context, requestID string) error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	err = s.store.WithDeviceLock(ctx, req.DeviceID, func(tx Tx) error {
		if err := tx.DeleteRequest(req.ID); err != nil {
			return err
		}
		_, _, err := s.refresh(tx)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("device request deleted", zap.String("request_id", requestID), zap.String("device_id", req.DeviceID))
	return nil
}
