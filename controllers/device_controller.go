package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"robotics_club_services/app"
	"robotics_club_services/booking"
)

type DeviceController struct{ *Srv }

func NewDeviceController(s *Srv) *DeviceController { return &DeviceController{Srv: s} }

// 设备列表（每个设备都重新计算库存）
func (dc *DeviceController) List(c *gin.Context) {
	devices, err := dc.Booking.ListDevices(c.Request.Context())
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"devices": devices, "count": len(devices)})
}

func (dc *DeviceController) Detail(c *gin.Context) {
	d, err := dc.Booking.DeviceDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"device": d})
}

func (dc *DeviceController) Availability(c *gin.Context) {
	a, err := dc.Booking.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"availability": a})
}

type submitBody struct {
	Name               string `json:"name" binding:"required,max=255"`
	Contact            string `json:"contact" binding:"required,max=32"`
	RollNo             string `json:"roll_no" binding:"max=50"`
	RequestedQuantity  int    `json:"requested_quantity"`
	ExpectedReturnDate string `json:"expected_return_date"`
	Purpose            string `json:"purpose"`
	OwnerToken         string `json:"owner_token" binding:"max=64"`
}

// 提交借用申请：库存不足时返回 409 + available_for_request
func (dc *DeviceController) Submit(c *gin.Context) {
	var in submitBody
	if err := c.ShouldBindJSON(&in); err != nil {
		bindFail(c, err)
		return
	}
	// 没有 owner_token 就发一个，客户端保存后可查自己的申请
	if in.OwnerToken == "" {
		in.OwnerToken = uuid.NewString()
	}

	res, err := dc.Booking.Submit(c.Request.Context(), booking.SubmitInput{
		DeviceID: c.Param("id"),
		Requester: booking.Requester{
			Name:    in.Name,
			Contact: in.Contact,
			RollNo:  in.RollNo,
		},
		Quantity:   in.RequestedQuantity,
		ReturnDate: in.ExpectedReturnDate,
		Purpose:    in.Purpose,
		OwnerToken: in.OwnerToken,
	})
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusCreated, app.H{
		"message":               "Device request submitted successfully",
		"request_id":            res.Request.ID,
		"request":               res.Request,
		"owner_token":           res.Request.OwnerToken,
		"available_after":       res.AvailableAfter,
		"available_for_request": res.AvailableForRequest,
	})
}

func (dc *DeviceController) Stats(c *gin.Context) {
	st, err := dc.Booking.Stats(c.Request.Context())
	if err != nil {
		app.FailBooking(c, err)
		return
	}
	ok(c, http.StatusOK, app.H{"stats": st})
}
