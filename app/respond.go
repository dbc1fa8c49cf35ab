package app

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"robotics_club_services/booking"
)

// Fail writes the error envelope every non-2xx response uses.
func Fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, H{"success": false, "error": code, "message": msg})
}

// busyRetryAfter is the Retry-After hint for lock contention.
const busyRetryAfter = 1

func statusOf(code booking.Code) int {
	switch code {
	case booking.CodeInvalidQuantity, booking.CodeInvalidDate:
		return http.StatusBadRequest
	case booking.CodeDeviceNotFound, booking.CodeRequestNotFound:
		return http.StatusNotFound
	case booking.CodeInsufficientStock, booking.CodeIllegalTransition:
		return http.StatusConflict
	case booking.CodeBusy:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// FailBooking maps a booking error onto HTTP. Storage faults are logged and
// their detail is not sent to the client.
func FailBooking(c *gin.Context, err error) {
	be := booking.AsError(err)
	status := statusOf(be.Code)
	body := H{"success": false, "error": string(be.Code), "message": be.Message}
	if be.Available != nil {
		body["available_for_request"] = *be.Available
	}
	switch {
	case be.Code == booking.CodeBusy:
		c.Header("Retry-After", strconv.Itoa(busyRetryAfter))
	case status == http.StatusInternalServerError:
		_ = c.Error(err)
		body["message"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}
