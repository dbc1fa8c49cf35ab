package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"robotics_club_services/booking"
)

// postgres SQLSTATE codes we react to
const (
	pgLockNotAvailable   = "55P03"
	pgUniqueViolation    = "23505"
	pgInvalidTextRepr    = "22P02"
	pgQueryCanceled      = "57014"
	pgSerializationError = "40001"
)

// classify turns a gorm/pgx error into a booking error. notFound is what a
// missing row means for this call.
func classify(op string, err error, notFound *booking.Error) error {
	if err == nil {
		return nil
	}
	var be *booking.Error
	if errors.As(err, &be) {
		return be
	}
	if errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return booking.Busyf(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled, pgSerializationError:
			return booking.Busyf(err)
		case pgUniqueViolation:
			return booking.ErrIllegalTransition
		case pgInvalidTextRepr:
			// malformed uuid in a lookup
			if notFound != nil {
				return notFound
			}
		}
	}
	return booking.StorageFault(op, err)
}
