package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"robotics_club_services/app"
	"robotics_club_services/booking"
)

type RequestController struct{ *Srv }

func NewRequestController(s *Srv) *RequestController { return &RequestController{Srv: s} }

// 按联系方式或学号查申请记录；学号优先（"N/A" 视为没填）
func (rc *RequestController) List(c *gin.Context) {
	contact := strings.TrimSpace(c.Query("contact"))
	rollNo := strings.TrimSpace(c.Query("roll_no"))
	var f booking.RequestFilter
	switch {
	case rollNo != "" && !strings.EqualFold(rollNo, "N/A"):
		f.RollNo = rollNo
	case contact != "":
		f.Contact = contact
	default:
		app.Fail(c, http.StatusBadRequest, "missing_filter", "contact or roll_no is required")
		return
	}
	p, good := pageParams(c)
	if !good {
		return
	}
	page, err := rc.Booking.ListRequests(c.Request.Context(), f, p)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"requests": page})
}

// 购物车：同一个 owner_token 提交的申请
func (rc *RequestController) Owner(c *gin.Context) {
	var in struct {
		OwnerToken string `json:"owner_token" binding:"required,max=64"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFail(c, err)
		return
	}
	p, good := pageParams(c)
	if !good {
		return
	}
	page, err := rc.Booking.ListRequests(c.Request.Context(), booking.RequestFilter{OwnerToken: in.OwnerToken}, p)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"requests": page})
}

func (rc *RequestController) Detail(c *gin.Context) {
	d, err := rc.Booking.RequestDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"request": d.Request, "admin_actions": d.Actions})
}

func (rc *RequestController) Actions(c *gin.Context) {
	d, err := rc.Booking.RequestDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"request_id": d.Request.ID, "admin_actions": d.Actions, "count": len(d.Actions)})
}
