package httpapi

import (
	"errors"
	"net/http"
	"time"

	"hydro360/internal/geo"
	"hydro360/internal/logging"
	"hydro360/internal/weather"
	"hydro360/models"
	"hydro360/repository"
)

const recentReportsLimit = 5

type userDashboard struct {
	Greeting      string               `json:"greeting"`
	Summary       models.ReportSummary `json:"summary"`
	RecentReports []models.Report      `json:"recentReports"`
}

// Greeting returns the salutation for the local hour of t.
func Greeting(t time.Time, firstName string) string {
	var g string
	switch h := t.Hour(); {
	case h < 12:
		g = "Good Morning"
	case h < 18:
		g = "Good Afternoon"
	default:
		g = "Good Evening"
	}
	if firstName == "" {
		return g
	}
	return g + ", " + firstName
}

func (s *Server) userDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := CurrentUser(ctx)

	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	summary, err := s.store.Analytics.ReporterSummary(ctx, u.ID)
	if err != nil {
		serverError(w, r, err, "Failed to fetch dashboard")
		return
	}
	recent, _, err := s.store.Reports.List(ctx, repository.ReportFilter{
		ReportedBy: u.ID,
		Page:       repository.Page{Number: 1, Size: recentReportsLimit},
	})
	if err != nil {
		serverError(w, r, err, "Failed to fetch dashboard")
		return
	}
	writeJSON(w, http.StatusOK, userDashboard{
		Greeting:      Greeting(s.now().In(loc), u.FirstName),
		Summary:       *summary,
		RecentReports: publicReports(recent),
	})
}

func (s *Server) weatherLookup(w http.ResponseWriter, r *http.Request) {
	if !s.weather.Enabled() {
		writeMessage(w, http.StatusServiceUnavailable, "Weather service not configured")
		return
	}
	lat, okLat := queryFloat(r, "lat")
	lng, okLng := queryFloat(r, "lng")
	if !okLat || !okLng || !geo.ValidCoordinates(lat, lng) {
		writeMessage(w, http.StatusBadRequest, "Valid lat and lng query parameters are required")
		return
	}

	rep, err := s.weather.Lookup(r.Context(), lat, lng)
	switch {
	case errors.Is(err, weather.ErrUnavailable):
		writeMessage(w, http.StatusServiceUnavailable, "Weather service temporarily unavailable")
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("weather lookup failed")
		writeMessage(w, http.StatusBadGateway, "Failed to fetch weather data")
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}
