package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"robotics_club_services/models"
)

const defaultRollNo = "N/A"

type Requester struct {
	Name    string
	Contact string
	RollNo  string
}

type SubmitInput struct {
	DeviceID   string
	Requester  Requester
	Quantity   int
	ReturnDate string // YYYY-MM-DD, optional
	Purpose    string
	OwnerToken string
}

type SubmitResult struct {
	Request models.BookingRequest
	// AvailableAfter is the device's persisted current_available. Pending
	// requests do not change it.
	AvailableAfter int
	// AvailableForRequest is what the next submission could still be admitted.
	AvailableForRequest int
}

// PendingDemand sums the requested quantity of every request that has no
// action yet.
func PendingDemand(requests []models.BookingRequest, actions []models.Action) int {
	acted := make(map[string]bool, len(actions))
	for _, a := range actions {
		acted[a.RequestID] = true
	}
	total := 0
	for _, r := range requests {
		if !acted[r.ID] {
			total += r.RequestedQuantity
		}
	}
	return total
}

// Submit admits a new booking request under the device lock. Approved and
// pending demand both count against total_quantity, so two concurrent
// submissions can never together be admitted past capacity.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	returnDate, err := ParseDate(in.ReturnDate)
	if err != nil {
		return nil, err
	}

	var res *SubmitResult
	err = s.store.WithDeviceLock(ctx, in.DeviceID, func(tx Tx) error {
		dev := tx.Device()
		counters, actions, err := s.refresh(tx)
		if err != nil {
			return err
		}
		requests, err := tx.ListRequests(RequestFilter{DeviceID: dev.ID})
		if err != nil {
			return err
		}

		committed := counters.TotalBooked + PendingDemand(requests, actions)
		if committed+in.Quantity > dev.TotalQuantity {
			left := dev.TotalQuantity - committed
			return insufficient(fmt.Sprintf("Insufficient stock. Only %d items available for new requests", max(0, left)), left)
		}
		if in.Quantity > counters.CurrentAvailable {
			return insufficient(fmt.Sprintf("Only %d items available", counters.CurrentAvailable), counters.CurrentAvailable)
		}

		rollNo := strings.TrimSpace(in.Requester.RollNo)
		if rollNo == "" {
			rollNo = defaultRollNo
		}
		req := models.BookingRequest{
			ID:                 uuid.NewString(),
			DeviceID:           dev.ID,
			Name:               strings.TrimSpace(in.Requester.Name),
			RollNo:             rollNo,
			Contact:            strings.TrimSpace(in.Requester.Contact),
			OwnerToken:         strings.TrimSpace(in.OwnerToken),
			RequestedQuantity:  in.Quantity,
			ExpectedReturnDate: returnDate,
			Purpose:            in.Purpose,
			CreatedAt:          s.now().UTC(),
		}
		if err := tx.CreateRequest(&req); err != nil {
			return err
		}
		res = &SubmitResult{
			Request:             req,
			AvailableAfter:      counters.CurrentAvailable,
			AvailableForRequest: dev.TotalQuantity - committed - in.Quantity,
		}
		return nil
	})
	if err != nil {
		s.log.Info("device request rejected",
			zap.String("device_id", in.DeviceID),
			zap.Int("quantity", in.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("device request created",
		zap.String("device_id", in.DeviceID),
		zap.String("request_id", res.Request.ID),
		zap.Int("quantity", in.Quantity),
		zap.Int("available_after", res.AvailableAfter))
	return res, nil
}
