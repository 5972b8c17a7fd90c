package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/w-lukawski/gabinet/internal/appointment"
	"github.com/w-lukawski/gabinet/internal/authz"
	"github.com/w-lukawski/gabinet/internal/booking"
	"github.com/w-lukawski/gabinet/internal/storage"
	"github.com/w-lukawski/gabinet/internal/timegrid"
)

type AppointmentHandler struct {
	svc    *booking.Service
	authz  authz.Provider
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, authzProvider authz.Provider, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, authz: authzProvider, logger: logger}
}

type createAppointmentRequest struct {
	PatientID   string `json:"patient_id"`
	TreatmentID string `json:"treatment_id"`
	EmployeeID  string `json:"employee_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	Notes       string `json:"notes"`

	Recurrence *recurrenceRequest `json:"recurrence"`

	PrepaymentAmount float64 `json:"prepayment_amount"`
	PrepaymentPaid   bool    `json:"prepayment_paid"`
	PackageUsageID   string  `json:"package_usage_id"`
}

type recurrenceRequest struct {
	Frequency string `json:"frequency"`
	Count     int    `json:"count"`
	Until     string `json:"until"`
}

type appointmentItem struct {
	AppointmentID    string  `json:"appointment_id"`
	PatientID        string  `json:"patient_id"`
	TreatmentID      string  `json:"treatment_id"`
	EmployeeID       string  `json:"employee_id"`
	Date             string  `json:"date"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	Status           string  `json:"status"`
	Notes            string  `json:"notes,omitempty"`
	RecurringGroupID string  `json:"recurring_group_id,omitempty"`
	RecurringIndex   int     `json:"recurring_index"`
	CalendarEntryID  string  `json:"scheduled_activity_id,omitempty"`
	PrepaymentAmount float64 `json:"prepayment_amount,omitempty"`
	PrepaymentPaid   bool    `json:"prepayment_paid,omitempty"`
	PackageUsageID   string  `json:"package_usage_id,omitempty"`
	CancelledAt      string  `json:"cancelled_at,omitempty"`
	CancelReason     string  `json:"cancel_reason,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

func toAppointmentItem(a appointment.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID:    a.ID,
		PatientID:        a.PatientID,
		TreatmentID:      a.TreatmentID,
		EmployeeID:       a.EmployeeID,
		Date:             timegrid.FormatDate(a.Date),
		StartTime:        timegrid.Clock(a.StartMinute),
		EndTime:          timegrid.Clock(a.EndMinute),
		Status:           string(a.Status),
		Notes:            a.Notes,
		RecurringGroupID: a.RecurringGroupID,
		RecurringIndex:   a.RecurringIndex,
		CalendarEntryID:  a.ScheduledActivityID,
		PrepaymentAmount: a.PrepaymentAmount,
		PrepaymentPaid:   a.PrepaymentPaid,
		PackageUsageID:   a.PackageUsageID,
		CancelReason:     a.CancelReason,
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		item.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite)
	if !decision.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.TreatmentID = strings.TrimSpace(req.TreatmentID)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.PatientID == "" || req.TreatmentID == "" || req.EmployeeID == "" {
		http.Error(w, "patient_id, treatment_id, and employee_id are required", http.StatusBadRequest)
		return
	}
	if decision.Scope == authz.ScopeOwn && req.EmployeeID != decision.EmployeeID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	date, err := timegrid.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	startMinute, err := timegrid.MinuteOfDay(strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	createReq := booking.CreateRequest{
		OrgID:            id.OrgID,
		PatientID:        req.PatientID,
		TreatmentID:      req.TreatmentID,
		EmployeeID:       req.EmployeeID,
		Date:             date,
		StartMinute:      startMinute,
		Notes:            strings.TrimSpace(req.Notes),
		PrepaymentAmount: req.PrepaymentAmount,
		PrepaymentPaid:   req.PrepaymentPaid,
		PackageUsageID:   strings.TrimSpace(req.PackageUsageID),
	}
	if req.Recurrence != nil {
		rec := appointment.Recurrence{
			Frequency: appointment.Frequency(strings.ToLower(strings.TrimSpace(req.Recurrence.Frequency))),
			Count:     req.Recurrence.Count,
		}
		if raw := strings.TrimSpace(req.Recurrence.Until); raw != "" {
			until, err := timegrid.ParseDate(raw)
			if err != nil {
				http.Error(w, "invalid recurrence until date", http.StatusBadRequest)
				return
			}
			rec.Until = until
		}
		if err := rec.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		createReq.Recurrence = &rec
	}

	res, err := h.svc.Create(r.Context(), createReq)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	siblings := make([]appointmentItem, 0, len(res.Siblings))
	for _, s := range res.Siblings {
		siblings = append(siblings, toAppointmentItem(s))
	}
	skipped := make([]string, 0, len(res.SkippedDates))
	for _, d := range res.SkippedDates {
		skipped = append(skipped, timegrid.FormatDate(d))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"appointment":   toAppointmentItem(res.Appointment),
		"siblings":      siblings,
		"skipped_dates": skipped,
	})
}

type updateAppointmentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Date          *string `json:"date"`
	StartTime     *string `json:"start_time"`
	EmployeeID    *string `json:"employee_id"`
	Notes         *string `json:"notes"`
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite)
	if !decision.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if decision.Scope == authz.ScopeOwn {
		if !h.ownsAppointment(w, r, id.OrgID, req.AppointmentID, decision.EmployeeID) {
			return
		}
	}

	updateReq := booking.UpdateRequest{OrgID: id.OrgID, AppointmentID: req.AppointmentID}
	if req.Date != nil {
		date, err := timegrid.ParseDate(strings.TrimSpace(*req.Date))
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		updateReq.Date = &date
	}
	if req.StartTime != nil {
		start, err := timegrid.MinuteOfDay(strings.TrimSpace(*req.StartTime))
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		updateReq.StartMinute = &start
	}
	if req.EmployeeID != nil {
		emp := strings.TrimSpace(*req.EmployeeID)
		if decision.Scope == authz.ScopeOwn && emp != decision.EmployeeID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		updateReq.EmployeeID = &emp
	}
	updateReq.Notes = req.Notes

	a, err := h.svc.Update(r.Context(), updateReq)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(a))
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite)
	if !decision.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	target := appointment.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if req.AppointmentID == "" || target == "" {
		http.Error(w, "appointment_id and status required", http.StatusBadRequest)
		return
	}
	if !target.Valid() {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	if decision.Scope == authz.ScopeOwn {
		if !h.ownsAppointment(w, r, id.OrgID, req.AppointmentID, decision.EmployeeID) {
			return
		}
	}

	res, err := h.svc.UpdateStatus(r.Context(), id.OrgID, req.AppointmentID, target, id.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	body := map[string]any{"appointment": toAppointmentItem(res.Appointment)}
	if res.Completion != nil {
		body["completion"] = map[string]any{
			"package_deducted":   res.Completion.PackageDeducted,
			"package_used_count": res.Completion.PackageUsedCount,
			"package_total":      res.Completion.PackageTotal,
			"points_earned":      res.Completion.PointsEarned,
			"balance_after":      res.Completion.BalanceAfter,
			"payment_id":         res.Completion.PaymentID,
			"payment_amount":     res.Completion.PaymentAmount,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite)
	if !decision.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if decision.Scope == authz.ScopeOwn {
		if !h.ownsAppointment(w, r, id.OrgID, req.AppointmentID, decision.EmployeeID) {
			return
		}
	}

	a, err := h.svc.Cancel(r.Context(), id.OrgID, req.AppointmentID, id.UserID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(a))
}

type cancelSeriesRequest struct {
	RecurringGroupID string `json:"recurring_group_id"`
	FromDate         string `json:"from_date"`
	Reason           string `json:"reason"`
}

func (h *AppointmentHandler) CancelSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite)
	if !decision.Allowed || decision.Scope == authz.ScopeOwn {
		// Series cancellation reaches across days; keep it org-wide only.
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req cancelSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RecurringGroupID = strings.TrimSpace(req.RecurringGroupID)
	if req.RecurringGroupID == "" {
		http.Error(w, "recurring_group_id required", http.StatusBadRequest)
		return
	}
	var fromDate time.Time
	if raw := strings.TrimSpace(req.FromDate); raw != "" {
		var err error
		fromDate, err = timegrid.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid from_date", http.StatusBadRequest)
			return
		}
	}

	count, err := h.svc.CancelSeries(r.Context(), id.OrgID, req.RecurringGroupID, fromDate, id.UserID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled_count": count})
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	decision := h.authz.Check(id, authz.FeatureAppointments, authz.ActionRead)
	if !decision.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
	if decision.Scope == authz.ScopeOwn {
		employeeID = decision.EmployeeID
	}

	var date *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := timegrid.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = &d
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.svc.List(r.Context(), id.OrgID, employeeID, date, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		orgID = authz.IdentityFromRequest(r).OrgID
	}
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
	treatmentID := strings.TrimSpace(r.URL.Query().Get("treatment_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if orgID == "" || employeeID == "" || treatmentID == "" || dateStr == "" {
		http.Error(w, "org_id, employee_id, treatment_id, and date are required", http.StatusBadRequest)
		return
	}
	date, err := timegrid.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), orgID, employeeID, treatmentID, date)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{StartTime: timegrid.Clock(s.Start), EndTime: timegrid.Clock(s.End)})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) Conflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		orgID = authz.IdentityFromRequest(r).OrgID
	}
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	startStr := strings.TrimSpace(r.URL.Query().Get("start_time"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end_time"))
	if orgID == "" || employeeID == "" || dateStr == "" || startStr == "" || endStr == "" {
		http.Error(w, "org_id, employee_id, date, start_time, and end_time are required", http.StatusBadRequest)
		return
	}
	date, err := timegrid.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := timegrid.MinuteOfDay(startStr)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := timegrid.MinuteOfDay(endStr)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if end <= start {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}
	exclude := strings.TrimSpace(r.URL.Query().Get("exclude_appointment_id"))

	res, err := h.svc.CheckSlot(r.Context(), orgID, employeeID, date, start, end, exclude)
	if err != nil {
		http.Error(w, "failed to check conflict", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"has_conflict": res.HasConflict,
		"reason":       res.Reason,
	})
}

// ownsAppointment enforces "own" scope by loading the row and comparing its
// employee to the caller.
func (h *AppointmentHandler) ownsAppointment(w http.ResponseWriter, r *http.Request, orgID, appointmentID, employeeID string) bool {
	a, err := h.svc.Get(r.Context(), orgID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return false
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return false
	}
	if a.EmployeeID != employeeID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func (h *AppointmentHandler) writeServiceError(w http.ResponseWriter, err error) {
	var transitionErr *appointment.TransitionError
	var conflictErr *appointment.ConflictError
	var qualErr *appointment.QualificationError
	switch {
	case storage.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, appointment.ErrAlreadyTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusConflict)
	case errors.As(err, &conflictErr):
		http.Error(w, conflictErr.Reason, http.StatusConflict)
	case errors.As(err, &qualErr):
		http.Error(w, qualErr.Reason, http.StatusConflict)
	default:
		h.logger.Error("appointment operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
