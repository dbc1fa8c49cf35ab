package booking

import (
	"context"
	"time"

	"robotics_club_services/models"
)

type PageParams struct {
	Page     int
	PageSize int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (p PageParams) normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

type Page[T any] struct {
	Results    []T `json:"results"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func paginate[T any](items []T, p PageParams) Page[T] {
	p = p.normalize()
	out := Page[T]{
		Results:    []T{},
		Count:      len(items),
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: (len(items) + p.PageSize - 1) / p.PageSize,
	}
	start := (p.Page - 1) * p.PageSize
	if start >= len(items) {
		return out
	}
	end := min(start+p.PageSize, len(items))
	out.Results = items[start:end]
	return out
}

type RequestView struct {
	ID                 string        `json:"id"`
	DeviceID           string        `json:"device_id"`
	DeviceName         string        `json:"device_name"`
	Name               string        `json:"name"`
	RollNo             string        `json:"roll_no"`
	Contact            string        `json:"contact"`
	RequestedQuantity  int           `json:"requested_quantity"`
	ApprovedQuantity   *int          `json:"approved_quantity"`
	Purpose            string        `json:"purpose"`
	OverallStatus      RequestStatus `json:"overall_status"`
	StatusDisplay      string        `json:"status_display"`
	RequestDate        string        `json:"request_date"`
	ExpectedReturnDate *string       `json:"expected_return_date"`
	IsOverdue          bool          `json:"is_overdue"`
	AdminActionsCount  int           `json:"admin_actions_count"`
	CreatedAt          time.Time     `json:"created_at"`
}

type ActionView struct {
	ID               string              `json:"id"`
	ActionType       models.ActionKind   `json:"action_type"`
	ActionDisplay    string              `json:"action_display"`
	ApprovedQuantity int                 `json:"approved_quantity"`
	Status           models.ActionStatus `json:"status"`
	StatusDisplay    string              `json:"status_display"`
	CreatedAt        time.Time           `json:"created_at"`
	IsOverdue        bool                `json:"is_overdue"`
}

type RequestDetail struct {
	Request RequestView  `json:"request"`
	Actions []ActionView `json:"admin_actions"`
}

type DeviceSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	TotalQuantity    int    `json:"total_quantity"`
	CurrentAvailable int    `json:"current_available"`
	TotalBooked      int    `json:"total_booked"`
	IsAvailable      bool   `json:"is_available"`
	AvailabilityText string `json:"availability_text"`
}

type DeviceDetail struct {
	DeviceSummary
	PendingRequestsCount int           `json:"pending_requests_count"`
	ApprovedItemsCount   int           `json:"approved_items_count"`
	OverdueItemsCount    int           `json:"overdue_items_count"`
	RecentRequests       []RequestView `json:"recent_requests"`
}

type PendingItem struct {
	RequestView
	DaysSinceRequest       int  `json:"days_since_request"`
	DeviceCurrentAvailable int  `json:"device_current_available"`
	DeviceTotalQuantity    int  `json:"device_total_quantity"`
	CanApproveFullQuantity bool `json:"can_approve_full_quantity"`
}

type OverdueItem struct {
	ActionID           string    `json:"id"`
	RequestID          string    `json:"request_id"`
	DeviceID           string    `json:"device_id"`
	DeviceName         string    `json:"device_name"`
	UserName           string    `json:"user_name"`
	UserContact        string    `json:"user_contact"`
	UserRollNo         string    `json:"user_roll_no"`
	ApprovedQuantity   int       `json:"approved_quantity"`
	ExpectedReturnDate string    `json:"expected_return_date"`
	DaysOverdue        int       `json:"days_overdue"`
	ApprovedAt         time.Time `json:"created_at"`
}

type Stats struct {
	TotalDevices        int `json:"total_devices"`
	AvailableDevices    int `json:"available_devices"`
	BookedDevices       int `json:"booked_devices"`
	TotalInventoryItems int `json:"total_inventory_items"`
	PendingRequests     int `json:"pending_requests"`
	ApprovedItems       int `json:"approved_items"`
	OverdueItems        int `json:"overdue_items"`
}

var actionDisplay = map[models.ActionKind]string{
	models.ActionApprove: "Approved",
	models.ActionReject:  "Rejected",
	models.ActionReturn:  "Returned",
}

var actionStatusDisplay = map[models.ActionStatus]string{
	models.StatusOnService: "On Service",
	models.StatusReturned:  "Returned",
	models.StatusOverdue:   "Overdue",
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

func summarize(d models.Device, c Counters) DeviceSummary {
	text := "Not Available"
	if c.IsAvailable {
		text = "Available"
	}
	return DeviceSummary{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		TotalQuantity:    d.TotalQuantity,
		CurrentAvailable: c.CurrentAvailable,
		TotalBooked:      c.TotalBooked,
		IsAvailable:      c.IsAvailable,
		AvailabilityText: text,
	}
}

func (s *Service) requestView(r models.BookingRequest, deviceName string, actions []models.Action, today time.Time) RequestView {
	status := EffectiveStatus(actions, r.ExpectedReturnDate, today)
	v := RequestView{
		ID:                 r.ID,
		DeviceID:           r.DeviceID,
		DeviceName:         deviceName,
		Name:               r.Name,
		RollNo:             r.RollNo,
		Contact:            r.Contact,
		RequestedQuantity:  r.RequestedQuantity,
		Purpose:            r.Purpose,
		OverallStatus:      status,
		RequestDate:        DateOf(r.CreatedAt, s.loc).Format(DateLayout),
		ExpectedReturnDate: formatDate(r.ExpectedReturnDate),
		AdminActionsCount:  len(actions),
		CreatedAt:          r.CreatedAt,
	}
	approved := 0
	if latest := Latest(actions); latest != nil {
		if latest.Kind == models.ActionApprove {
			q := latest.ApprovedQuantity
			v.ApprovedQuantity = &q
			approved = q
		}
		v.IsOverdue = ActionOverdue(*latest, r.ExpectedReturnDate, today)
	}
	v.StatusDisplay = StatusDisplay(status, approved)
	return v
}

func actionView(a models.Action, expectedReturn *time.Time, today time.Time) ActionView {
	sd, ok := actionStatusDisplay[a.Status]
	if !ok {
		sd = "N/A"
	}
	return ActionView{
		ID:               a.ID,
		ActionType:       a.Kind,
		ActionDisplay:    actionDisplay[a.Kind],
		ApprovedQuantity: a.ApprovedQuantity,
		Status:           a.Status,
		StatusDisplay:    sd,
		CreatedAt:        a.CreatedAt,
		IsOverdue:        ActionOverdue(a, expectedReturn, today),
	}
}

// snapshot is everything the read views need, loaded without locks. Device
// counters are recomputed from the loaded log rather than trusted.
type snapshot struct {
	devices  map[string]models.Device
	counters map[string]Counters
	byReq    map[string][]models.Action
	byDevice map[string][]models.Action
}

func (s *Service) load(ctx context.Context, af ActionFilter) (*snapshot, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.ListActions(ctx, af)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		devices:  make(map[string]models.Device, len(devices)),
		counters: make(map[string]Counters, len(devices)),
		byReq:    make(map[string][]models.Action),
		byDevice: make(map[string][]models.Action),
	}
	for _, a := range actions {
		snap.byReq[a.RequestID] = append(snap.byReq[a.RequestID], a)
		snap.byDevice[a.DeviceID] = append(snap.byDevice[a.DeviceID], a)
	}
	for _, d := range devices {
		snap.devices[d.ID] = d
		snap.counters[d.ID] = Recompute(d.TotalQuantity, snap.byDevice[d.ID])
	}
	return snap, nil
}

func (s *Service) views(snap *snapshot, requests []models.BookingRequest, today time.Time) []RequestView {
	out := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		out = append(out, s.requestView(r, snap.devices[r.DeviceID].Name, snap.byReq[r.ID], today))
	}
	return out
}

// ListDevices returns every device, each recomputed under its own lock.
func (s *Service) ListDevices(ctx context.Context) ([]DeviceSummary, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceSummary, 0, len(devices))
	for _, d := range devices {
		a, err := s.Availability(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.TotalQuantity = a.TotalQuantity
		out = append(out, summarize(d, Counters{
			TotalBooked:      a.TotalBooked,
			CurrentAvailable: a.CurrentAvailable,
			IsAvailable:      a.IsAvailable,
		}))
	}
	return out, nil
}

const recentRequestsLimit = 5

func (s *Service) DeviceDetail(ctx context.Context, deviceID string) (*DeviceDetail, error) {
	avail, err := s.Availability(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.ListRequests(ctx, RequestFilter{DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, ActionFilter{DeviceID: deviceID})
	if err != nil {
		return nil, err
	}

	today := s.today()
	views := s.views(snap, requests, today)
	out := &DeviceDetail{
		DeviceSummary: summarize(*d, Counters{
			TotalBooked:      avail.TotalBooked,
			CurrentAvailable: avail.CurrentAvailable,
			IsAvailable:      avail.IsAvailable,
		}),
		RecentRequests: views[:min(recentRequestsLimit, len(views))],
	}
	for _, v := range views {
		switch v.OverallStatus {
		case StatusPending:
			out.PendingRequestsCount++
		case StatusApproved:
			out.ApprovedItemsCount++
		case StatusOverdue:
			out.ApprovedItemsCount++
			out.OverdueItemsCount++
		}
	}
	return out, nil
}

// ListRequests pages requests matching f, newest first.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter, p PageParams) (Page[RequestView], error) {
	requests, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return Page[RequestView]{}, err
	}
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}
	snap := &snapshot{devices: map[string]models.Device{}, byReq: map[string][]models.Action{}}
	if len(ids) > 0 {
		if snap, err = s.load(ctx, ActionFilter{RequestIDs: ids}); err != nil {
			return Page[RequestView]{}, err
		}
	}
	return paginate(s.views(snap, requests, s.today()), p), nil
}

func (s *Service) RequestDetail(ctx context.Context, requestID string) (*RequestDetail, error) {
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, ActionFilter{RequestIDs: []string{r.ID}})
	if err != nil {
		return nil, err
	}
	today := s.today()
	history := snap.byReq[r.ID]
	out := &RequestDetail{
		Request: s.requestView(*r, snap.devices[r.DeviceID].Name, history, today),
		Actions: make([]ActionView, 0, len(history)),
	}
	for i := len(history) - 1; i >= 0; i-- {
		out.Actions = append(out.Actions, actionView(history[i], r.ExpectedReturnDate, today))
	}
	return out, nil
}

// PendingRequests lists requests still awaiting an admin decision.
func (s *Service) PendingRequests(ctx context.Context, p PageParams) (Page[PendingItem], error) {
	requests, err := s.store.ListRequests(ctx, RequestFilter{})
	if err != nil {
		return Page[PendingItem]{}, err
	}
	snap, err := s.load(ctx, ActionFilter{})
	if err != nil {
		return Page[PendingItem]{}, err
	}
	today := s.today()
	var items []PendingItem
	for _, r := range requests {
		if len(snap.byReq[r.ID]) > 0 {
			continue
		}
		d := snap.devices[r.DeviceID]
		c := snap.counters[r.DeviceID]
		items = append(items, PendingItem{
			RequestView:            s.requestView(r, d.Name, nil, today),
			DaysSinceRequest:       DaysBetween(DateOf(r.CreatedAt, s.loc), today),
			DeviceCurrentAvailable: c.CurrentAvailable,
			DeviceTotalQuantity:    d.TotalQuantity,
			CanApproveFullQuantity: r.RequestedQuantity <= c.CurrentAvailable,
		})
	}
	return paginate(items, p), nil
}

// OverdueItems lists approved, unreturned requests past their return date.
func (s *Service) OverdueItems(ctx context.Context, p PageParams) (Page[OverdueItem], error) {
	requests, err := s.store.ListRequests(ctx, RequestFilter{})
	if err != nil {
		return Page[OverdueItem]{}, err
	}
	snap, err := s.load(ctx, ActionFilter{})
	if err != nil {
		return Page[OverdueItem]{}, err
	}
	today := s.today()
	var items []OverdueItem
	for _, r := range requests {
		history := snap.byReq[r.ID]
		if EffectiveStatus(history, r.ExpectedReturnDate, today) != StatusOverdue {
			continue
		}
		approval := LatestOfKind(history, models.ActionApprove)
		items = append(items, OverdueItem{
			ActionID:           approval.ID,
			RequestID:          r.ID,
			DeviceID:           r.DeviceID,
			DeviceName:         snap.devices[r.DeviceID].Name,
			UserName:           r.Name,
			UserContact:        r.Contact,
			UserRollNo:         r.RollNo,
			ApprovedQuantity:   approval.ApprovedQuantity,
			ExpectedReturnDate: r.ExpectedReturnDate.Format(DateLayout),
			DaysOverdue:        DaysBetween(*r.ExpectedReturnDate, today),
			ApprovedAt:         approval.CreatedAt,
		})
	}
	return paginate(items, p), nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	requests, err := s.store.ListRequests(ctx, RequestFilter{})
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, ActionFilter{})
	if err != nil {
		return nil, err
	}
	today := s.today()
	st := &Stats{TotalDevices: len(snap.devices)}
	for id, d := range snap.devices {
		st.TotalInventoryItems += d.TotalQuantity
		if snap.counters[id].IsAvailable {
			st.AvailableDevices++
		}
	}
	st.BookedDevices = st.TotalDevices - st.AvailableDevices
	for _, r := range requests {
		switch EffectiveStatus(snap.byReq[r.ID], r.ExpectedReturnDate, today) {
		case StatusPending:
			st.PendingRequests++
		case StatusApproved:
			st.ApprovedItems++
		case StatusOverdue:
			st.ApprovedItems++
			st.OverdueItems++
		}
	}
	return st, nil
}
