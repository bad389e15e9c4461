package httpapi

import (
	"cmp"
	"errors"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"hydro360/internal/geo"
	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/internal/upload"
	"hydro360/internal/validation"
	"hydro360/models"
	"hydro360/repository"
)

type locationInput struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

func (l *locationInput) location() *models.Location {
	if l == nil || l.Lat == nil || l.Lng == nil {
		return nil
	}
	return &models.Location{Lat: *l.Lat, Lng: *l.Lng}
}

type affectedAreaInput struct {
	Radius          float64 `json:"radius" validate:"gte=0"`
	EstimatedPeople int     `json:"estimatedPeople" validate:"gte=0"`
}

type createReportRequest struct {
	Title        string             `json:"title" validate:"required,min=5,max=100"`
	Description  string             `json:"description" validate:"required,min=20,max=1000"`
	Type         string             `json:"type" validate:"required,reporttype"`
	Priority     string             `json:"priority" validate:"omitempty,priority"`
	Location     *locationInput     `json:"location" validate:"required"`
	Lat          *float64           `json:"lat" validate:"-"`
	Lng          *float64           `json:"lng" validate:"-"`
	UrgencyLevel int                `json:"urgencyLevel" validate:"omitempty,min=1,max=10"`
	AffectedArea *affectedAreaInput `json:"affectedArea" validate:"omitempty"`
}

type updateReportRequest struct {
	Title        *string            `json:"title" validate:"omitempty,min=5,max=100"`
	Description  *string            `json:"description" validate:"omitempty,min=20,max=1000"`
	Type         *string            `json:"type" validate:"omitempty,reporttype"`
	Priority     *string            `json:"priority" validate:"omitempty,priority"`
	Location     *locationInput     `json:"location" validate:"omitempty"`
	UrgencyLevel *int               `json:"urgencyLevel" validate:"omitempty,min=1,max=10"`
	AffectedArea *affectedAreaInput `json:"affectedArea" validate:"omitempty"`
	Status       *string            `json:"status" validate:"omitempty,status"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// publicReports strips contact phones before reports leave the API.
func publicReports(reports []models.Report) []models.Report {
	for i := range reports {
		reports[i].HideContactPhones()
	}
	return reports
}

func publicReport(rep *models.Report) *models.Report {
	rep.HideContactPhones()
	return rep
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	f, ok := reportFilterFromQuery(w, r)
	if !ok {
		return
	}
	reports, _, err := s.store.Reports.List(r.Context(), f)
	if err != nil {
		serverError(w, r, err, "Failed to fetch reports")
		return
	}
	writeJSON(w, http.StatusOK, publicReports(reports))
}

func (s *Server) listMyReports(w http.ResponseWriter, r *http.Request) {
	u := CurrentUser(r.Context())
	reports, _, err := s.store.Reports.List(r.Context(), repository.ReportFilter{ReportedBy: u.ID})
	if err != nil {
		serverError(w, r, err, "Failed to fetch reports")
		return
	}
	writeJSON(w, http.StatusOK, publicReports(reports))
}

// reportFilterFromQuery reads the status, priority and type filters. It
// answers 400 and returns false when one of them is not a known value.
func reportFilterFromQuery(w http.ResponseWriter, r *http.Request) (repository.ReportFilter, bool) {
	q := r.URL.Query()
	var f repository.ReportFilter
	if v := q.Get("status"); v != "" {
		if !models.ValidStatus(v) {
			writeMessage(w, http.StatusBadRequest, "Invalid status filter")
			return f, false
		}
		f.Status = models.ReportStatus(v)
	}
	if v := q.Get("priority"); v != "" {
		if !models.ValidPriority(v) {
			writeMessage(w, http.StatusBadRequest, "Invalid priority filter")
			return f, false
		}
		f.Priority = models.Priority(v)
	}
	if v := q.Get("type"); v != "" {
		if !models.ValidReportType(v) {
			writeMessage(w, http.StatusBadRequest, "Invalid type filter")
			return f, false
		}
		f.Type = models.ReportType(v)
	}
	return f, true
}

func (s *Server) nearbyReports(w http.ResponseWriter, r *http.Request) {
	lat, okLat := queryFloat(r, "lat")
	lng, okLng := queryFloat(r, "lng")
	if !okLat || !okLng || !geo.ValidCoordinates(lat, lng) {
		writeMessage(w, http.StatusBadRequest, "Valid lat and lng query parameters are required")
		return
	}
	radius, _ := queryFloat(r, "radius")
	radius = geo.ClampRadiusKm(radius)

	box := geo.BoundingBox(lat, lng, radius)
	candidates, err := s.store.Reports.ListInBounds(r.Context(), repository.Bounds(box))
	if err != nil {
		serverError(w, r, err, "Failed to fetch nearby reports")
		return
	}

	nearby := make([]models.Report, 0, len(candidates))
	for _, rep := range candidates {
		d := geo.HaversineKm(lat, lng, rep.Location.Lat, rep.Location.Lng)
		if d > radius {
			continue
		}
		d = math.Round(d*1000) / 1000
		rep.DistanceKm = &d
		nearby = append(nearby, rep)
	}
	slices.SortStableFunc(nearby, func(a, b models.Report) int {
		return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
	})
	writeJSON(w, http.StatusOK, publicReports(nearby))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.Reports.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverError(w, r, err, "Failed to fetch report")
		return
	}
	if rep == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}
	writeJSON(w, http.StatusOK, publicReport(rep))
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	var files []upload.File

	if upload.IsMultipart(r) {
		if err := upload.ParseMultipart(w, r); err != nil {
			writeUploadError(w, err)
			return
		}
		defer upload.CleanupForm(r)

		var err error
		if files, err = upload.FilesFromForm(r.MultipartForm, s.now()); err != nil {
			writeUploadError(w, err)
			return
		}
		req = createRequestFromForm(r)
	} else if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))
	if req.Location == nil && req.Lat != nil && req.Lng != nil {
		req.Location = &locationInput{Lat: req.Lat, Lng: req.Lng}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	ctx := r.Context()
	var images []string
	if len(files) > 0 {
		if s.uploads == nil {
			serverError(w, r, errors.New("no upload store configured"), "Failed to create report")
			return
		}
		var err error
		if images, err = upload.SaveAll(ctx, s.uploads, files); err != nil {
			serverError(w, r, err, "Failed to store images")
			return
		}
	}

	u := CurrentUser(ctx)
	rep := &models.Report{
		Title:        req.Title,
		Description:  req.Description,
		Type:         models.ReportType(req.Type),
		Priority:     models.Priority(req.Priority),
		Location:     *req.Location.location(),
		UrgencyLevel: req.UrgencyLevel,
		Images:       images,
		ReportedBy:   u.Ref(),
	}
	if req.AffectedArea != nil {
		rep.AffectedArea = models.AffectedArea(*req.AffectedArea)
	}

	created, err := s.store.Reports.Create(ctx, rep)
	if err != nil {
		if s.uploads != nil {
			upload.DeleteAll(ctx, s.uploads, images)
		}
		serverError(w, r, err, "Failed to create report")
		return
	}
	metrics.ReportsCreated.WithLabelValues(string(created.Type)).Inc()
	logging.Ctx(ctx).Info().Str("report_id", created.ID).Str("type", string(created.Type)).Int("images", len(images)).Msg("report created")
	writeJSON(w, http.StatusCreated, publicReport(created))
}

// createRequestFromForm reads report fields from a multipart form. Location
// may arrive as location[lat]/location[lng], lat/lng or a JSON location field.
func createRequestFromForm(r *http.Request) createReportRequest {
	req := createReportRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Type:        r.FormValue("type"),
		Priority:    r.FormValue("priority"),
	}
	if v := r.FormValue("urgencyLevel"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.UrgencyLevel = n
		} else {
			req.UrgencyLevel = -1
		}
	}

	lat, lng := formFloat(r, "location[lat]"), formFloat(r, "location[lng]")
	if lat == nil || lng == nil {
		lat, lng = formFloat(r, "lat"), formFloat(r, "lng")
	}
	if lat != nil && lng != nil {
		req.Location = &locationInput{Lat: lat, Lng: lng}
	} else if raw := r.FormValue("location"); raw != "" {
		var loc locationInput
		if err := json.Unmarshal([]byte(raw), &loc); err == nil {
			req.Location = &loc
		}
	}
	return req
}

// formFloat parses a form value. A malformed number becomes NaN so that
// coordinate validation rejects it.
func formFloat(r *http.Request, key string) *float64 {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f = math.NaN()
	}
	return &f
}

func writeUploadError(w http.ResponseWriter, err error) {
	var le *upload.LimitError
	if errors.As(err, &le) {
		writeMessage(w, http.StatusBadRequest, le.Message)
		return
	}
	writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
}

// loadOwnedReport fetches the report named in the path and checks the caller
// may change it. It writes the error response and returns nil otherwise.
func (s *Server) loadOwnedReport(w http.ResponseWriter, r *http.Request, failMsg string) (*models.Report, *models.User) {
	u := CurrentUser(r.Context())
	rep, err := s.store.Reports.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverError(w, r, err, failMsg)
		return nil, nil
	}
	if rep == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return nil, nil
	}
	if !rep.IsReportedBy(u.ID) && !u.HasPermission(models.PermManageReports) {
		logging.Ctx(r.Context()).Debug().Str("user_id", u.ID).Str("report_id", rep.ID).Msg("report change denied")
		writeMessage(w, http.StatusForbidden, "Not authorized")
		return nil, nil
	}
	return rep, u
}

func (s *Server) updateReport(w http.ResponseWriter, r *http.Request) {
	rep, u := s.loadOwnedReport(w, r, "Failed to update report")
	if rep == nil {
		return
	}

	var req updateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Title, req.Description = trimmed(req.Title), trimmed(req.Description)
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}
	if req.Status != nil && !u.HasPermission(models.PermManageReports) {
		writeMessage(w, http.StatusForbidden, "Not authorized")
		return
	}

	upd := repository.ReportUpdate{
		Title:        req.Title,
		Description:  req.Description,
		UrgencyLevel: req.UrgencyLevel,
		Location:     req.Location.location(),
	}
	if req.Type != nil {
		t := models.ReportType(*req.Type)
		upd.Type = &t
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		upd.Priority = &p
	}
	if req.AffectedArea != nil {
		a := models.AffectedArea(*req.AffectedArea)
		upd.AffectedArea = &a
	}
	if req.Status != nil {
		st := models.ReportStatus(*req.Status)
		upd.Status = &st
		if st == models.StatusResolved && rep.Status != models.StatusResolved {
			now := s.now().UTC()
			upd.ActualResolutionTime = &now
		}
	}

	updated, err := s.store.Reports.Update(r.Context(), rep.ID, upd)
	if err != nil {
		serverError(w, r, err, "Failed to update report")
		return
	}
	if updated == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}
	if upd.Status != nil && *upd.Status != rep.Status {
		metrics.ReportStatusChanges.WithLabelValues(string(*upd.Status)).Inc()
	}
	writeJSON(w, http.StatusOK, publicReport(updated))
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	rep, u := s.loadOwnedReport(w, r, "Failed to delete report")
	if rep == nil {
		return
	}
	ctx := r.Context()
	deleted, err := s.store.Reports.Delete(ctx, rep.ID)
	if err != nil {
		serverError(w, r, err, "Failed to delete report")
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}
	if s.uploads != nil {
		upload.DeleteAll(ctx, s.uploads, rep.Images)
	}
	logging.Ctx(ctx).Info().Str("report_id", rep.ID).Str("user_id", u.ID).Msg("report deleted")
	writeMessage(w, http.StatusOK, "Report deleted")
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidation(w, verr)
		return
	}

	u := CurrentUser(r.Context())
	rep, err := s.store.Reports.AddComment(r.Context(), chi.URLParam(r, "id"), models.Comment{
		Text:      req.Text,
		User:      u.ID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		serverError(w, r, err, "Failed to add comment")
		return
	}
	if rep == nil {
		writeMessage(w, http.StatusNotFound, "Report not found")
		return
	}
	writeJSON(w, http.StatusCreated, publicReport(rep))
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
