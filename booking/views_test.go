package booking

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotics_club_services/models"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	p := paginate(items, PageParams{Page: 2, PageSize: 3})
	assert.Equal(t, []int{4, 5, 6}, p.Results)
	assert.Equal(t, 7, p.Count)
	assert.Equal(t, 3, p.TotalPages)

	p = paginate(items, PageParams{Page: 3, PageSize: 3})
	assert.Equal(t, []int{7}, p.Results)

	p = paginate(items, PageParams{Page: 9, PageSize: 3})
	assert.Empty(t, p.Results)
	assert.NotNil(t, p.Results)

	p = paginate(items, PageParams{})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Len(t, p.Results, 7)

	p = paginate(items, PageParams{PageSize: 1000})
	assert.Equal(t, 100, p.PageSize)

	empty := paginate([]int(nil), PageParams{})
	assert.Equal(t, 0, empty.TotalPages)
	assert.NotNil(t, empty.Results)
}

func TestReadViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kit := f.device(t, 5)
	servo, err := f.svc.CreateDevice(ctx, "Servo", "", 2)
	require.NoError(t, err)

	// created three days before "now"
	f.now = testNow.Add(-72 * time.Hour)
	pending := f.mustSubmit(t, kit.ID, 1, "")
	f.now = testNow

	late := f.mustSubmit(t, kit.ID, 2, "2025-03-05")
	_, err = f.svc.RecordAction(ctx, late.ID, models.ActionApprove, 2)
	require.NoError(t, err)

	onTime := f.mustSubmit(t, servo.ID, 1, "2025-03-20")
	_, err = f.svc.RecordAction(ctx, onTime.ID, models.ActionApprove, 1)
	require.NoError(t, err)

	rejected, err := f.svc.Submit(ctx, SubmitInput{
		DeviceID:  servo.ID,
		Requester: Requester{Name: "Chandra", Contact: "9800000003", RollNo: "R-17"},
		Quantity:  1,
	})
	require.NoError(t, err)
	_, err = f.svc.RecordAction(ctx, rejected.Request.ID, models.ActionReject, 0)
	require.NoError(t, err)

	t.Run("stats", func(t *testing.T) {
		st, err := f.svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &Stats{
			TotalDevices:        2,
			AvailableDevices:    2,
			BookedDevices:       0,
			TotalInventoryItems: 7,
			PendingRequests:     1,
			ApprovedItems:       2,
			OverdueItems:        1,
		}, st)
	})

	t.Run("pending", func(t *testing.T) {
		page, err := f.svc.PendingRequests(ctx, PageParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		p := page.Results[0]
		assert.Equal(t, pending.ID, p.ID)
		assert.Equal(t, 3, p.DaysSinceRequest)
		assert.Equal(t, 3, p.DeviceCurrentAvailable)
		assert.Equal(t, 5, p.DeviceTotalQuantity)
		assert.True(t, p.CanApproveFullQuantity)
		assert.Equal(t, "Pending Review", p.StatusDisplay)
		assert.Equal(t, "Arduino Uno", p.DeviceName)
	})

	t.Run("overdue", func(t *testing.T) {
		page, err := f.svc.OverdueItems(ctx, PageParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		o := page.Results[0]
		assert.Equal(t, late.ID, o.RequestID)
		assert.Equal(t, 5, o.DaysOverdue)
		assert.Equal(t, 2, o.ApprovedQuantity)
		assert.Equal(t, "2025-03-05", o.ExpectedReturnDate)
	})

	t.Run("device detail", func(t *testing.T) {
		d, err := f.svc.DeviceDetail(ctx, kit.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, d.PendingRequestsCount)
		assert.Equal(t, 1, d.ApprovedItemsCount)
		assert.Equal(t, 1, d.OverdueItemsCount)
		assert.Equal(t, 3, d.CurrentAvailable)
		assert.Equal(t, "Available", d.AvailabilityText)
		require.Len(t, d.RecentRequests, 2)
		assert.Equal(t, late.ID, d.RecentRequests[0].ID, "newest first")
	})

	t.Run("list devices", func(t *testing.T) {
		ds, err := f.svc.ListDevices(ctx)
		require.NoError(t, err)
		require.Len(t, ds, 2)
		assert.Equal(t, "Arduino Uno", ds[0].Name)
		assert.Equal(t, 1, ds[1].CurrentAvailable)
	})

	t.Run("requests by contact and roll no", func(t *testing.T) {
		page, err := f.svc.ListRequests(ctx, RequestFilter{Contact: "9800000001"}, PageParams{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Count)

		page, err = f.svc.ListRequests(ctx, RequestFilter{RollNo: "R-17"}, PageParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		v := page.Results[0]
		assert.Equal(t, StatusRejected, v.OverallStatus)
		assert.Equal(t, "Rejected", v.StatusDisplay)
		assert.Nil(t, v.ApprovedQuantity)
		assert.Equal(t, 1, v.AdminActionsCount)

		page, err = f.svc.ListRequests(ctx, RequestFilter{Contact: "nobody"}, PageParams{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Count)
	})

	t.Run("request detail", func(t *testing.T) {
		d, err := f.svc.RequestDetail(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusOverdue, d.Request.OverallStatus)
		assert.Equal(t, "Overdue (2)", d.Request.StatusDisplay)
		assert.True(t, d.Request.IsOverdue)
		require.NotNil(t, d.Request.ApprovedQuantity)
		assert.Equal(t, 2, *d.Request.ApprovedQuantity)
		assert.Equal(t, "2025-03-10", d.Request.RequestDate)
		require.Len(t, d.Actions, 1)
		assert.Equal(t, "Approved", d.Actions[0].ActionDisplay)
		assert.Equal(t, "Overdue", d.Actions[0].StatusDisplay, "approved after the due date")
		assert.True(t, d.Actions[0].IsOverdue)

		_, err = f.svc.RequestDetail(ctx, "missing")
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("request detail lists actions newest first", func(t *testing.T) {
		_, err := f.svc.RecordAction(ctx, onTime.ID, models.ActionReturn, 0)
		require.NoError(t, err)
		d, err := f.svc.RequestDetail(ctx, onTime.ID)
		require.NoError(t, err)
		require.Len(t, d.Actions, 2)
		assert.Equal(t, models.ActionReturn, d.Actions[0].ActionType)
		assert.Equal(t, "Returned", d.Actions[0].StatusDisplay)
		assert.Equal(t, StatusReturned, d.Request.OverallStatus)
	})
}

func TestRequestDate_UsesBookingTimezone(t *testing.T) {
	ktm, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)
	store := NewMemStore(time.Second)
	late := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	svc := NewService(store, WithLocation(ktm), WithClock(func() time.Time { return late }))
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, "Kit", "", 1)
	require.NoError(t, err)
	res, err := svc.Submit(ctx, SubmitInput{DeviceID: d.ID, Requester: Requester{Name: "a", Contact: "b"}, Quantity: 1})
	require.NoError(t, err)

	detail, err := svc.RequestDetail(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", detail.Request.RequestDate)
}
