// controllers/srv.go
package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"robotics_club_services/app"
	"robotics_club_services/booking"
)

type Srv struct {
	Booking *booking.Service
	Log     *zap.Logger
	Cfg     app.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Booking: a.Booking,
		Log:     a.Log,
		Cfg:     a.Config,
	}
}

// --- helpers ---

// bindFail answers a request whose body or query did not parse.
func bindFail(c *gin.Context, err error) {
	app.Fail(c, http.StatusBadRequest, "invalid_body", err.Error())
}

// pageParams reads ?page=&page_size=. Missing values fall back to the
// defaults; junk is a 400.
func pageParams(c *gin.Context) (booking.PageParams, bool) {
	var p booking.PageParams
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"page_size", &p.PageSize}} {
		v := c.Query(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			app.Fail(c, http.StatusBadRequest, "invalid_page", f.name+" must be a positive integer")
			return p, false
		}
		*f.dst = n
	}
	return p, true
}

func ok(c *gin.Context, status int, body app.H) {
	body["success"] = true
	c.JSON(status, body)
}
