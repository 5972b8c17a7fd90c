package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/w-lukawski/gabinet/internal/authz"
	"github.com/w-lukawski/gabinet/internal/storage"
)

// BillingHandler exposes the artifacts the completion processor produces:
// prepaid packages, the loyalty ledger and pending payments.
type BillingHandler struct {
	packages *storage.PackageRepository
	loyalty  *storage.LoyaltyRepository
	payments *storage.PaymentRepository
	authz    authz.Provider
	logger   *slog.Logger
}

func NewBillingHandler(packages *storage.PackageRepository, loyalty *storage.LoyaltyRepository, payments *storage.PaymentRepository, authzProvider authz.Provider, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		packages: packages,
		loyalty:  loyalty,
		payments: payments,
		authz:    authzProvider,
		logger:   logger,
	}
}

type packageEntryRequest struct {
	TreatmentID string `json:"treatment_id"`
	TotalCount  int    `json:"total_count"`
}

type createPackageRequest struct {
	PatientID string                `json:"patient_id"`
	Name      string                `json:"name"`
	Entries   []packageEntryRequest `json:"entries"`
}

type packageEntryItem struct {
	TreatmentID string `json:"treatment_id"`
	UsedCount   int    `json:"used_count"`
	TotalCount  int    `json:"total_count"`
}

type packageItem struct {
	ID      string             `json:"id"`
	Name    string             `json:"name,omitempty"`
	Status  string             `json:"status"`
	Entries []packageEntryItem `json:"entries"`
}

func toPackageItem(u storage.PackageUsage) packageItem {
	item := packageItem{ID: u.ID, Name: u.Name, Status: u.Status, Entries: make([]packageEntryItem, 0, len(u.Entries))}
	for _, e := range u.Entries {
		item.Entries = append(item.Entries, packageEntryItem{TreatmentID: e.TreatmentID, UsedCount: e.UsedCount, TotalCount: e.TotalCount})
	}
	return item
}

func (h *BillingHandler) Packages(w http.ResponseWriter, r *http.Request) {
	id := authz.IdentityFromRequest(r)
	switch r.Method {
	case http.MethodGet:
		if d := h.authz.Check(id, authz.FeatureAppointments, authz.ActionRead); !d.Allowed {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
		if patientID == "" {
			http.Error(w, "patient_id required", http.StatusBadRequest)
			return
		}
		usages, err := h.packages.ListForPatient(r.Context(), id.OrgID, patientID)
		if err != nil {
			http.Error(w, "failed to list packages", http.StatusInternalServerError)
			return
		}
		items := make([]packageItem, 0, len(usages))
		for _, u := range usages {
			items = append(items, toPackageItem(u))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		if d := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite); !d.Allowed || d.Scope != authz.ScopeAll {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req createPackageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.PatientID = strings.TrimSpace(req.PatientID)
		if req.PatientID == "" || len(req.Entries) == 0 {
			http.Error(w, "patient_id and at least one entry are required", http.StatusBadRequest)
			return
		}
		entries := make([]storage.PackageEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			treatmentID := strings.TrimSpace(e.TreatmentID)
			if treatmentID == "" || e.TotalCount <= 0 {
				http.Error(w, "every entry needs a treatment_id and a positive total_count", http.StatusBadRequest)
				return
			}
			entries = append(entries, storage.PackageEntry{TreatmentID: treatmentID, TotalCount: e.TotalCount})
		}
		packageID, err := h.packages.Create(r.Context(), storage.PackageUsage{
			OrgID:     id.OrgID,
			PatientID: req.PatientID,
			Name:      strings.TrimSpace(req.Name),
			Entries:   entries,
		})
		if err != nil {
			h.logger.Error("package create failed", "err", err)
			http.Error(w, "failed to create package", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": packageID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BillingHandler) Loyalty(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	if d := h.authz.Check(id, authz.FeatureAppointments, authz.ActionRead); !d.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		http.Error(w, "patient_id required", http.StatusBadRequest)
		return
	}

	balance, err := h.loyalty.Balance(r.Context(), id.OrgID, patientID)
	if err != nil {
		http.Error(w, "failed to load balance", http.StatusInternalServerError)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	transactions, err := h.loyalty.ListTransactions(r.Context(), id.OrgID, patientID, limit)
	if err != nil {
		http.Error(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}

	type item struct {
		ID            string `json:"id"`
		AppointmentID string `json:"appointment_id,omitempty"`
		Points        int    `json:"points"`
		BalanceAfter  int    `json:"balance_after"`
		CreatedAt     string `json:"created_at"`
	}
	items := make([]item, 0, len(transactions))
	for _, lt := range transactions {
		items = append(items, item{
			ID:            lt.ID,
			AppointmentID: lt.AppointmentID,
			Points:        lt.Points,
			BalanceAfter:  lt.BalanceAfter,
			CreatedAt:     lt.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":         balance.Balance,
		"lifetime_earned": balance.LifetimeEarned,
		"lifetime_spent":  balance.LifetimeSpent,
		"transactions":    items,
	})
}

type markPaidRequest struct {
	PaymentID string `json:"payment_id"`
}

func (h *BillingHandler) Payments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	if d := h.authz.Check(id, authz.FeatureAppointments, authz.ActionRead); !d.Allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		http.Error(w, "patient_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	payments, err := h.payments.ListForPatient(r.Context(), id.OrgID, patientID, limit)
	if err != nil {
		http.Error(w, "failed to list payments", http.StatusInternalServerError)
		return
	}
	type item struct {
		ID               string  `json:"id"`
		AppointmentID    string  `json:"appointment_id"`
		Amount           float64 `json:"amount"`
		Currency         string  `json:"currency"`
		Status           string  `json:"status"`
		ProviderIntentID string  `json:"provider_intent_id,omitempty"`
	}
	items := make([]item, 0, len(payments))
	for _, p := range payments {
		items = append(items, item{
			ID:               p.ID,
			AppointmentID:    p.AppointmentID,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Status:           p.Status,
			ProviderIntentID: p.ProviderIntentID,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BillingHandler) MarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := authz.IdentityFromRequest(r)
	if d := h.authz.Check(id, authz.FeatureAppointments, authz.ActionWrite); !d.Allowed || d.Scope != authz.ScopeAll {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.PaymentID == "" {
		http.Error(w, "payment_id required", http.StatusBadRequest)
		return
	}
	if err := h.payments.MarkPaid(r.Context(), id.OrgID, req.PaymentID); err != nil {
		h.logger.Error("mark paid failed", "err", err)
		http.Error(w, "failed to mark payment paid", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": req.PaymentID, "status": storage.PaymentStatusPaid})
}
