package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"robotics_club_services/app"
	"robotics_club_services/controllers"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	deviceCtl := controllers.NewDeviceController(s)
	requestCtl := controllers.NewRequestController(s)
	adminCtl := controllers.NewAdminController(s)

	// 复用的中间件
	adminMW := app.AdminOnly(a.Config)
	throttleMW := a.SubmitThrottle()
	idemMW := a.Idempotent("submit")

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	api := r.Group("/api")
	api.GET("/stats", deviceCtl.Stats)

	// ------------------------------
	// 设备（公开）
	// ------------------------------
	devices := api.Group("/devices")
	{
		devices.GET("", deviceCtl.List)
		devices.GET("/:id", deviceCtl.Detail)
		devices.GET("/:id/availability", deviceCtl.Availability)
		devices.POST("/:id/requests", throttleMW, idemMW, deviceCtl.Submit)
	}

	// ------------------------------
	// 申请记录（公开）
	// ------------------------------
	requests := api.Group("/requests")
	{
		requests.GET("", requestCtl.List) // ?contact=&roll_no=&page=&page_size=
		requests.GET("/:id", requestCtl.Detail)
		requests.GET("/:id/actions", requestCtl.Actions)
	}
	api.POST("/user/device-requests", requestCtl.Owner)

	// ------------------------------
	// 管理员
	// ------------------------------
	admin := api.Group("/admin", adminMW)
	{
		admin.POST("/devices", adminCtl.CreateDevice)
		admin.PUT("/devices/:id/quantity", adminCtl.SetQuantity)
		admin.POST("/requests/:id/actions", adminCtl.RecordAction)
		admin.DELETE("/requests/:id", adminCtl.DeleteRequest)
		admin.GET("/pending-requests", adminCtl.Pending)
		admin.GET("/overdue-items", adminCtl.Overdue)
	}
}
