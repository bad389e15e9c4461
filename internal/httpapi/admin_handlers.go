package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/internal/validation"
	"hydro360/models"
	"hydro360/repository"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 365
)

type reportsPage struct {
	Reports    []models.Report   `json:"reports"`
	Pagination models.Pagination `json:"pagination"`
}

type usersPage struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

type adminReportUpdateRequest struct {
	Status                  *string    `json:"status" validate:"omitempty,status"`
	AssignedTo              *string    `json:"assignedTo"`
	Priority                *string    `json:"priority" validate:"omitempty,priority"`
	AdminNote               string     `json:"adminNote" validate:"max=1000"`
	EstimatedResolutionTime *time.Time `json:"estimatedResolutionTime"`
	CostEstimate            *float64   `json:"costEstimate" validate:"omitempty,gte=0"`
	ActualCost              *float64   `json:"actualCost" validate:"omitempty,gte=0"`
	UrgencyLevel            *int       `json:"urgencyLevel" validate:"omitempty,min=1,max=10"`
}

type adminUserUpdateRequest struct {
	Role        *string  `json:"role" validate:"omitempty,role"`
	IsActive    *bool    `json:"isActive"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,permission"`
	Department  *string  `json:"department" validate:"omitempty,max=100"`
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Analytics.DashboardStats(r.Context(), s.now())
	if err != nil {
		serverError(w, r, err, "Failed to fetch dashboard stats")
		return
	}
	publicReports(stats.CriticalReportsDetails)
	writeJSON(w, http.StatusOK, stats)
}

// parseDateParam accepts RFC3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}

func (s *Server) adminListReports(w http.ResponseWriter, r *http.Request) {
	f, ok := reportFilterFromQuery(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f.AssignedTo = q.Get("assignedTo")
	f.Search = strings.TrimSpace(q.Get("search"))
	if v := q.Get("dateFrom"); v != "" {
		t, err := parseDateParam(v, false)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid dateFrom")
			return
		}
		f.DateFrom = t
	}
	if v := q.Get("dateTo"); v != "" {
		t, err := parseDateParam(v, true)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid dateTo")
			return
		}
		f.DateTo = t
	}
	f.Page = repository.Page{
		Number: queryInt(r, "page", 1),
		Size:   queryInt(r, "limit", repository.DefaultPageSize),
	}.Normalize()

	reports, total, err := s.store.Reports.List(r.Context(), f)
	if err != nil {
		serverError(w, r, err, "Failed to fetch reports")
		return
	}
	writeJSON(w, http.StatusOK, reportsPage{
		Reports:    publicReports(reports),
		Pagination: models.NewPagination(f.Page.Number, f.Page.Size, total),
	})
}

func (s *Server) adminUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req adminReportUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.AdminNote = strings.TrimSpace(req.AdminNote)
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	caller := CurrentUser(ctx)
	existing, err := s.store.Reports.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		serverError(w, r, err, "Failed to update report")
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}

	now := s.now().UTC()
	upd := repository.ReportUpdate{
		EstimatedResolutionTime: req.EstimatedResolutionTime,
		CostEstimate:            req.CostEstimate,
		ActualCost:              req.ActualCost,
		UrgencyLevel:            req.UrgencyLevel,
	}
	if req.Status != nil {
		st := models.ReportStatus(*req.Status)
		upd.Status = &st
		if st == models.StatusResolved {
			upd.ActualResolutionTime = &now
		}
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		upd.Priority = &p
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		assignee, err := s.store.Users.GetByID(ctx, *req.AssignedTo)
		if err != nil {
			serverError(w, r, err, "Failed to update report")
			return
		}
		if assignee == nil {
			writeMessage(w, http.StatusBadRequest, "Assigned user not found")
			return
		}
		upd.AssignedTo = &assignee.ID
		upd.AssignedBy = &caller.ID
	}
	if req.AdminNote != "" {
		upd.Note = &models.AdminNote{Note: req.AdminNote, AddedBy: caller.ID, AddedAt: now}
	}

	updated, err := s.store.Reports.Update(ctx, existing.ID, upd)
	if err != nil {
		serverError(w, r, err, "Failed to update report")
		return
	}
	if updated == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}
	if upd.Status != nil && *upd.Status != existing.Status {
		metrics.ReportStatusChanges.WithLabelValues(string(*upd.Status)).Inc()
	}
	logging.Ctx(ctx).Info().Str("report_id", updated.ID).Str("by", caller.ID).Str("status", string(updated.Status)).Msg("report triaged")
	writeJSON(w, http.StatusOK, publicReport(updated))
}

func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f repository.UserFilter
	if v := q.Get("role"); v != "" {
		if !models.ValidRole(v) {
			writeMessage(w, http.StatusBadRequest, "Invalid role filter")
			return
		}
		f.Role = models.Role(v)
	}
	if q.Has("isActive") {
		active := q.Get("isActive") == "true"
		f.IsActive = &active
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	f.Page = repository.Page{
		Number: queryInt(r, "page", 1),
		Size:   queryInt(r, "limit", repository.DefaultPageSize),
	}.Normalize()

	users, total, err := s.store.Users.List(r.Context(), f)
	if err != nil {
		serverError(w, r, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, usersPage{
		Users:      users,
		Pagination: models.NewPagination(f.Page.Number, f.Page.Size, total),
	})
}

const (
	msgSelfRoleChange = "You cannot change your own role"
	msgSelfDeactivate = "You cannot deactivate your own account"
)

func (s *Server) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUserUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	caller := CurrentUser(ctx)
	id := chi.URLParam(r, "id")
	if id == caller.ID {
		if req.Role != nil && models.Role(*req.Role) != caller.Role {
			writeMessage(w, http.StatusBadRequest, msgSelfRoleChange)
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			writeMessage(w, http.StatusBadRequest, msgSelfDeactivate)
			return
		}
	}

	var upd repository.UserUpdate
	if req.Role != nil {
		role := models.Role(*req.Role)
		upd.Role = &role
	}
	upd.IsActive = req.IsActive
	if req.Permissions != nil {
		perms := make([]models.Permission, len(req.Permissions))
		for i, p := range req.Permissions {
			perms[i] = models.Permission(p)
		}
		upd.Permissions = &perms
	}
	if req.Department != nil {
		d := strings.TrimSpace(*req.Department)
		upd.Department = &d
	}

	updated, err := s.store.Users.Update(ctx, id, upd)
	if err != nil {
		serverError(w, r, err, "Failed to update user")
		return
	}
	if updated == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	logging.Ctx(ctx).Info().Str("user_id", updated.ID).Str("by", caller.ID).Str("role", string(updated.Role)).Bool("active", updated.IsActive).Msg("user updated")
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) emergencyAlerts(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.Reports.ListCriticalOpen(r.Context(), 0)
	if err != nil {
		serverError(w, r, err, "Failed to fetch emergency alerts")
		return
	}
	for i := range reports {
		if reports[i].AssignedTo != nil {
			reports[i].AssignedTo.Phone = ""
		}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) reportsTrend(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if v := strings.TrimSpace(r.URL.Query().Get("period")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = max(1, min(n, maxTrendDays))
		}
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	trend, err := s.store.Analytics.ReportsTrend(r.Context(), since)
	if err != nil {
		serverError(w, r, err, "Failed to fetch reports trend")
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) performance(w http.ResponseWriter, r *http.Request) {
	perf, err := s.store.Analytics.Performance(r.Context())
	if err != nil {
		serverError(w, r, err, "Failed to fetch performance analytics")
		return
	}
	writeJSON(w, http.StatusOK, perf)
}
