package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/w-lukawski/gabinet/internal/authz"
	"github.com/w-lukawski/gabinet/internal/storage"
	"github.com/w-lukawski/gabinet/internal/timegrid"
)

// ScheduleHandler administers the constraint sources the availability
// engine reads: clinic hours, per-employee overrides, leaves, treatments
// and employee profiles.
type ScheduleHandler struct {
	schedules *storage.ScheduleRepository
	directory *storage.DirectoryRepository
	authz     authz.Provider
	adminKey  *authz.AdminKey
	logger    *slog.Logger
}

func NewScheduleHandler(schedules *storage.ScheduleRepository, directory *storage.DirectoryRepository, authzProvider authz.Provider, adminKey *authz.AdminKey, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		directory: directory,
		authz:     authzProvider,
		adminKey:  adminKey,
		logger:    logger,
	}
}

// authorize admits either the shared admin key or an org role that may
// administer schedules.
func (h *ScheduleHandler) authorize(w http.ResponseWriter, r *http.Request, action string) (authz.Identity, bool) {
	id := authz.IdentityFromRequest(r)
	if h.adminKey.Verify(r) && id.OrgID != "" {
		return id, true
	}
	if d := h.authz.Check(id, authz.FeatureSchedule, action); d.Allowed {
		return id, true
	}
	http.Error(w, "forbidden", http.StatusForbidden)
	return id, false
}

type clinicHoursRequest struct {
	Weekday    int     `json:"weekday"`
	IsOpen     bool    `json:"is_open"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	BreakStart *string `json:"break_start"`
	BreakEnd   *string `json:"break_end"`
}

type clinicHoursItem struct {
	Weekday    int    `json:"weekday"`
	IsOpen     bool   `json:"is_open"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

func (h *ScheduleHandler) Hours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := h.authorize(w, r, authz.ActionRead)
		if !ok {
			return
		}
		hours, err := h.schedules.ListClinicHours(r.Context(), id.OrgID)
		if err != nil {
			http.Error(w, "failed to list clinic hours", http.StatusInternalServerError)
			return
		}
		items := make([]clinicHoursItem, 0, len(hours))
		for _, ch := range hours {
			item := clinicHoursItem{
				Weekday:   ch.Weekday,
				IsOpen:    ch.IsOpen,
				StartTime: timegrid.Clock(ch.StartMinute),
				EndTime:   timegrid.Clock(ch.EndMinute),
			}
			if ch.BreakStartMinute != nil && ch.BreakEndMinute != nil {
				item.BreakStart = timegrid.Clock(*ch.BreakStartMinute)
				item.BreakEnd = timegrid.Clock(*ch.BreakEndMinute)
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost, http.MethodPut:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		var req clinicHoursRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
			return
		}
		ch := storage.ClinicHours{OrgID: id.OrgID, Weekday: req.Weekday, IsOpen: req.IsOpen}
		var err error
		if ch.StartMinute, ch.EndMinute, err = parseWindow(req.StartTime, req.EndTime); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ch.BreakStartMinute, ch.BreakEndMinute, err = parseOptionalWindow(req.BreakStart, req.BreakEnd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.schedules.UpsertClinicHours(r.Context(), ch); err != nil {
			h.logger.Error("clinic hours upsert failed", "err", err)
			http.Error(w, "failed to save clinic hours", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type overrideRequest struct {
	EmployeeID    string  `json:"employee_id"`
	Weekday       int     `json:"weekday"`
	IsWorking     bool    `json:"is_working"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	BreakStart    *string `json:"break_start"`
	BreakEnd      *string `json:"break_end"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   string  `json:"effective_to"`
}

func (h *ScheduleHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := h.authorize(w, r, authz.ActionRead)
		if !ok {
			return
		}
		employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
		if employeeID == "" {
			http.Error(w, "employee_id required", http.StatusBadRequest)
			return
		}
		overrides, err := h.schedules.ListEmployeeOverrides(r.Context(), id.OrgID, employeeID)
		if err != nil {
			http.Error(w, "failed to list overrides", http.StatusInternalServerError)
			return
		}
		type item struct {
			ID            string `json:"id"`
			Weekday       int    `json:"weekday"`
			IsWorking     bool   `json:"is_working"`
			StartTime     string `json:"start_time"`
			EndTime       string `json:"end_time"`
			BreakStart    string `json:"break_start,omitempty"`
			BreakEnd      string `json:"break_end,omitempty"`
			EffectiveFrom string `json:"effective_from,omitempty"`
			EffectiveTo   string `json:"effective_to,omitempty"`
		}
		items := make([]item, 0, len(overrides))
		for _, o := range overrides {
			it := item{
				ID:        o.ID,
				Weekday:   o.Weekday,
				IsWorking: o.IsWorking,
				StartTime: timegrid.Clock(o.StartMinute),
				EndTime:   timegrid.Clock(o.EndMinute),
			}
			if o.BreakStartMinute != nil && o.BreakEndMinute != nil {
				it.BreakStart = timegrid.Clock(*o.BreakStartMinute)
				it.BreakEnd = timegrid.Clock(*o.BreakEndMinute)
			}
			if o.EffectiveFrom != nil {
				it.EffectiveFrom = timegrid.FormatDate(*o.EffectiveFrom)
			}
			if o.EffectiveTo != nil {
				it.EffectiveTo = timegrid.FormatDate(*o.EffectiveTo)
			}
			items = append(items, it)
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost, http.MethodPut:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.EmployeeID = strings.TrimSpace(req.EmployeeID)
		if req.EmployeeID == "" {
			http.Error(w, "employee_id required", http.StatusBadRequest)
			return
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
			return
		}
		o := storage.EmployeeOverride{
			OrgID:      id.OrgID,
			EmployeeID: req.EmployeeID,
			Weekday:    req.Weekday,
			IsWorking:  req.IsWorking,
		}
		var err error
		if o.StartMinute, o.EndMinute, err = parseWindow(req.StartTime, req.EndTime); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if o.BreakStartMinute, o.BreakEndMinute, err = parseOptionalWindow(req.BreakStart, req.BreakEnd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if raw := strings.TrimSpace(req.EffectiveFrom); raw != "" {
			d, err := timegrid.ParseDate(raw)
			if err != nil {
				http.Error(w, "invalid effective_from", http.StatusBadRequest)
				return
			}
			o.EffectiveFrom = &d
		}
		if raw := strings.TrimSpace(req.EffectiveTo); raw != "" {
			d, err := timegrid.ParseDate(raw)
			if err != nil {
				http.Error(w, "invalid effective_to", http.StatusBadRequest)
				return
			}
			o.EffectiveTo = &d
		}
		overrideID, err := h.schedules.UpsertEmployeeOverride(r.Context(), o)
		if err != nil {
			h.logger.Error("override upsert failed", "err", err)
			http.Error(w, "failed to save override", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": overrideID})

	case http.MethodDelete:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		overrideID := strings.TrimSpace(r.URL.Query().Get("id"))
		if overrideID == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		if err := h.schedules.DeleteEmployeeOverride(r.Context(), id.OrgID, overrideID); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "override not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to delete override", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type leaveRequest struct {
	EmployeeID string  `json:"employee_id"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	StartTime  *string `json:"start_time"`
	EndTime    *string `json:"end_time"`
	Reason     string  `json:"reason"`
}

func (h *ScheduleHandler) Leaves(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := h.authorize(w, r, authz.ActionRead)
		if !ok {
			return
		}
		employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
		limit := 100
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		leaves, err := h.schedules.ListLeaves(r.Context(), id.OrgID, employeeID, limit)
		if err != nil {
			http.Error(w, "failed to list leaves", http.StatusInternalServerError)
			return
		}
		type item struct {
			ID         string `json:"id"`
			EmployeeID string `json:"employee_id"`
			Status     string `json:"status"`
			StartDate  string `json:"start_date"`
			EndDate    string `json:"end_date"`
			StartTime  string `json:"start_time,omitempty"`
			EndTime    string `json:"end_time,omitempty"`
			Reason     string `json:"reason,omitempty"`
		}
		items := make([]item, 0, len(leaves))
		for _, l := range leaves {
			it := item{
				ID:         l.ID,
				EmployeeID: l.EmployeeID,
				Status:     l.Status,
				StartDate:  timegrid.FormatDate(l.StartDate),
				EndDate:    timegrid.FormatDate(l.EndDate),
				Reason:     l.Reason,
			}
			if l.StartMinute != nil && l.EndMinute != nil {
				it.StartTime = timegrid.Clock(*l.StartMinute)
				it.EndTime = timegrid.Clock(*l.EndMinute)
			}
			items = append(items, it)
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		var req leaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.EmployeeID = strings.TrimSpace(req.EmployeeID)
		if req.EmployeeID == "" {
			http.Error(w, "employee_id required", http.StatusBadRequest)
			return
		}
		startDate, err := timegrid.ParseDate(strings.TrimSpace(req.StartDate))
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		endDate, err := timegrid.ParseDate(strings.TrimSpace(req.EndDate))
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		if endDate.Before(startDate) {
			http.Error(w, "end_date must not precede start_date", http.StatusBadRequest)
			return
		}
		l := storage.Leave{
			OrgID:      id.OrgID,
			EmployeeID: req.EmployeeID,
			StartDate:  startDate,
			EndDate:    endDate,
			Reason:     strings.TrimSpace(req.Reason),
		}
		if l.StartMinute, l.EndMinute, err = parseOptionalWindow(req.StartTime, req.EndTime); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		leaveID, err := h.schedules.CreateLeave(r.Context(), l)
		if err != nil {
			h.logger.Error("leave create failed", "err", err)
			http.Error(w, "failed to create leave", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": leaveID, "status": storage.LeaveStatusPending})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type leaveStatusRequest struct {
	LeaveID string `json:"leave_id"`
	Status  string `json:"status"`
}

func (h *ScheduleHandler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := h.authorize(w, r, authz.ActionWrite)
	if !ok {
		return
	}
	var req leaveStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.LeaveID = strings.TrimSpace(req.LeaveID)
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if req.LeaveID == "" || status == "" {
		http.Error(w, "leave_id and status required", http.StatusBadRequest)
		return
	}
	if err := h.schedules.SetLeaveStatus(r.Context(), id.OrgID, req.LeaveID, status); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "leave not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.LeaveID, "status": status})
}

type treatmentRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Active          *bool   `json:"active"`
}

func (h *ScheduleHandler) Treatments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := h.authorize(w, r, authz.ActionRead)
		if !ok {
			return
		}
		treatments, err := h.directory.ListTreatments(r.Context(), id.OrgID)
		if err != nil {
			http.Error(w, "failed to list treatments", http.StatusInternalServerError)
			return
		}
		type item struct {
			ID              string  `json:"id"`
			Name            string  `json:"name"`
			DurationMinutes int     `json:"duration_minutes"`
			Price           float64 `json:"price"`
		}
		items := make([]item, 0, len(treatments))
		for _, t := range treatments {
			items = append(items, item{ID: t.ID, Name: t.Name, DurationMinutes: t.DurationMinutes, Price: t.Price})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost, http.MethodPut:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		var req treatmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.DurationMinutes <= 0 {
			http.Error(w, "name and a positive duration_minutes are required", http.StatusBadRequest)
			return
		}
		if req.Price < 0 {
			http.Error(w, "price must not be negative", http.StatusBadRequest)
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		treatmentID, err := h.directory.UpsertTreatment(r.Context(), storage.Treatment{
			ID:              strings.TrimSpace(req.ID),
			OrgID:           id.OrgID,
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
			Price:           req.Price,
			Active:          active,
		})
		if err != nil {
			h.logger.Error("treatment upsert failed", "err", err)
			http.Error(w, "failed to save treatment", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": treatmentID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type employeeRequest struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Active       *bool    `json:"active"`
	TreatmentIDs []string `json:"treatment_ids"`
}

func (h *ScheduleHandler) Employees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := h.authorize(w, r, authz.ActionRead)
		if !ok {
			return
		}
		employees, err := h.directory.ListEmployees(r.Context(), id.OrgID)
		if err != nil {
			http.Error(w, "failed to list employees", http.StatusInternalServerError)
			return
		}
		type item struct {
			ID           string   `json:"id"`
			DisplayName  string   `json:"display_name"`
			Active       bool     `json:"active"`
			TreatmentIDs []string `json:"treatment_ids"`
		}
		items := make([]item, 0, len(employees))
		for _, e := range employees {
			items = append(items, item{ID: e.ID, DisplayName: e.DisplayName, Active: e.Active, TreatmentIDs: e.TreatmentIDs})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost, http.MethodPut:
		id, ok := h.authorize(w, r, authz.ActionWrite)
		if !ok {
			return
		}
		var req employeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" {
			http.Error(w, "display_name required", http.StatusBadRequest)
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		employeeID, err := h.directory.UpsertEmployee(r.Context(), storage.EmployeeProfile{
			ID:           strings.TrimSpace(req.ID),
			OrgID:        id.OrgID,
			DisplayName:  req.DisplayName,
			Active:       active,
			TreatmentIDs: req.TreatmentIDs,
		})
		if err != nil {
			h.logger.Error("employee upsert failed", "err", err)
			http.Error(w, "failed to save employee", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": employeeID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func parseWindow(startRaw, endRaw string) (int, int, error) {
	start, err := timegrid.MinuteOfDay(strings.TrimSpace(startRaw))
	if err != nil {
		return 0, 0, err
	}
	end, err := timegrid.MinuteOfDay(strings.TrimSpace(endRaw))
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, errWindowOrder
	}
	return start, end, nil
}

func parseOptionalWindow(startRaw, endRaw *string) (*int, *int, error) {
	if startRaw == nil || endRaw == nil || strings.TrimSpace(*startRaw) == "" || strings.TrimSpace(*endRaw) == "" {
		return nil, nil, nil
	}
	start, end, err := parseWindow(*startRaw, *endRaw)
	if err != nil {
		return nil, nil, err
	}
	return &start, &end, nil
}

var errWindowOrder = errors.New("end time must be after start time")
