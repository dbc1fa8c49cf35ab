package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"robotics_club_services/app"
	"robotics_club_services/models"
)

type AdminController struct{ *Srv }

func NewAdminController(s *Srv) *AdminController { return &AdminController{Srv: s} }

// 管理员新建设备
func (ac *AdminController) CreateDevice(c *gin.Context) {
	var in struct {
		Name          string `json:"name" binding:"required,max=255"`
		Description   string `json:"description"`
		TotalQuantity int    `json:"total_quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFail(c, err)
		return
	}
	d, err := ac.Booking.CreateDevice(c.Request.Context(), in.Name, in.Description, in.TotalQuantity)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ac.Log.Info("admin created device", zap.String("admin", app.AdminName(c)), zap.String("device_id", d.ID))
	ok(c, http.StatusCreated, app.H{"device": d})
}

func (ac *AdminController) SetQuantity(c *gin.Context) {
	var in struct {
		TotalQuantity *int `json:"total_quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFail(c, err)
		return
	}
	a, err := ac.Booking.SetTotalQuantity(c.Request.Context(), c.Param("id"), *in.TotalQuantity)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"availability": a})
}

// 审批：approve / reject / return
func (ac *AdminController) RecordAction(c *gin.Context) {
	var in struct {
		Action   models.ActionKind `json:"action" binding:"required"`
		Quantity int               `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFail(c, err)
		return
	}
	if !in.Action.Valid() {
		app.Fail(c, http.StatusBadRequest, "invalid_action", "action must be approve, reject or return")
		return
	}
	res, err := ac.Booking.RecordAction(c.Request.Context(), c.Param("id"), in.Action, in.Quantity)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ac.Log.Info("admin action", zap.String("admin", app.AdminName(c)),
		zap.String("request_id", res.Action.RequestID), zap.String("action", string(in.Action)))
	ok(c, http.StatusCreated, app.H{
		"action":            res.Action,
		"new_status":        res.Status,
		"current_available": res.Device.CurrentAvailable,
		"total_booked":      res.Device.TotalBooked,
		"is_available":      res.Device.IsAvailable,
	})
}

func (ac *AdminController) DeleteRequest(c *gin.Context) {
	if err := ac.Booking.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		app.FailBooking(c, err)
		return
	}
	ac.Log.Info("admin deleted request", zap.String("admin", app.AdminName(c)), zap.String("request_id", c.Param("id")))
	ok(c, http.StatusOK, app.H{"message": "Request deleted"})
}

func (ac *AdminController) Pending(c *gin.Context) {
	p, good := pageParams(c)
	if !good {
		return
	}
	page, err := ac.Booking.PendingRequests(c.Request.Context(), p)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"pending_requests": page})
}

func (ac *AdminController) Overdue(c *gin.Context) {
	p, good := pageParams(c)
	if !good {
		return
	}
	page, err := ac.Booking.OverdueItems(c.Request.Context(), p)
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"overdue_items": page})
}
