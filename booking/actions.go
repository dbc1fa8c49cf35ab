package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"robotics_club_services/models"
)

type ActionResult struct {
	Action models.Action
	Status RequestStatus
	Device Counters
}

// RecordAction appends an admin decision to a request's log and recomputes
// the device's counters in the same locked unit of work. quantity is only
// read for approvals.
func (s *Service) RecordAction(ctx context.Context, requestID string, kind models.ActionKind, quantity int) (*ActionResult, error) {
	if !kind.Valid() {
		return nil, newError(CodeIllegalTransition, fmt.Sprintf("unknown action %q", kind))
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var res *ActionResult
	err = s.store.WithDeviceLock(ctx, req.DeviceID, func(tx Tx) error {
		// The request may have been cleaned up while we waited for the lock.
		still, err := tx.ListRequests(RequestFilter{IDs: []string{req.ID}})
		if err != nil {
			return err
		}
		if len(still) == 0 {
			return ErrRequestNotFound
		}

		dev := tx.Device()
		deviceLog, err := tx.ListActions(ActionFilter{DeviceID: dev.ID})
		if err != nil {
			return err
		}
		var history []models.Action
		for _, a := range deviceLog {
			if a.RequestID == req.ID {
				history = append(history, a)
			}
		}
		if err := checkTransition(history, kind); err != nil {
			return err
		}

		today := s.today()
		counters := Recompute(dev.TotalQuantity, deviceLog)
		a := models.Action{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			DeviceID:  dev.ID,
			Kind:      kind,
			CreatedAt: s.now().UTC(),
		}
		switch kind {
		case models.ActionApprove:
			if quantity <= 0 {
				return ErrInvalidQuantity
			}
			if quantity > req.RequestedQuantity {
				return newError(CodeInvalidQuantity, fmt.Sprintf("cannot approve more than the %d requested", req.RequestedQuantity))
			}
			if quantity > counters.CurrentAvailable {
				avail := counters.CurrentAvailable
				return &Error{Code: CodeInvalidQuantity, Message: fmt.Sprintf("Only %d items available", avail), Available: &avail}
			}
			a.ApprovedQuantity = quantity
			a.Status = ApprovalStatus(req.ExpectedReturnDate, today)
		case models.ActionReturn:
			a.ApprovedQuantity = LatestOfKind(history, models.ActionApprove).ApprovedQuantity
			a.Status = models.StatusReturned
		}

		if err := tx.CreateAction(&a); err != nil {
			return err
		}
		counters = Recompute(dev.TotalQuantity, append(deviceLog, a))
		if err := tx.SaveCounters(counters); err != nil {
			return err
		}

		res = &ActionResult{
			Action: a,
			Status: EffectiveStatus(append(history, a), req.ExpectedReturnDate, today),
			Device: counters,
		}
		return nil
	})
	if err != nil {
		s.log.Info("admin action refused",
			zap.String("request_id", requestID),
			zap.String("action", string(kind)),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("admin action recorded",
		zap.String("request_id", requestID),
		zap.String("device_id", req.DeviceID),
		zap.String("action", string(kind)),
		zap.Int("quantity", res.Action.ApprovedQuantity),
		zap.String("status", string(res.Status)),
		zap.Int("available_after", res.Device.CurrentAvailable))
	return res, nil
}
