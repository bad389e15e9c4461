package httpapi

import (
	"net/http"
	"testing"
	"time"

	"hydro360/models"
)

func TestParseDateParam(t *testing.T) {
	from, err := parseDateParam("2024-03-01", false)
	if err != nil || !from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v, %v", from, err)
	}
	to, err := parseDateParam("2024-03-01", true)
	if err != nil || !to.Equal(time.Date(2024, 3, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC)) {
		t.Fatalf("to = %v, %v", to, err)
	}
	exact, err := parseDateParam("2024-03-01T10:00:00Z", true)
	if err != nil || exact.Hour() != 10 {
		t.Fatalf("exact = %v, %v", exact, err)
	}
	if _, err := parseDateParam("01/03/2024", false); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	u, userToken := env.seed("ama", models.RoleUser)
	_, adminToken := env.seed("bola", models.RoleAdmin)
	env.createReport(u, "Main pipe burst badly", models.TypeLeak, models.PriorityCritical, 6.4, 3.4)
	env.createReport(u, "Low pressure all day", models.TypePressure, models.PriorityLow, 6.4, 3.4)

	expectStatus(t, env.do("GET", "/api/admin/dashboard/stats", userToken, nil), http.StatusForbidden)

	rec := env.do("GET", "/api/admin/dashboard/stats", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	stats := decode[models.DashboardStats](t, rec)
	if stats.Overview.TotalReports != 2 || stats.Overview.CriticalReports != 1 || stats.Overview.TotalUsers != 2 {
		t.Fatalf("unexpected overview: %+v", stats.Overview)
	}
	if len(stats.CriticalReportsDetails) != 1 || stats.CriticalReportsDetails[0].ReportedBy.Phone != "" {
		t.Fatalf("critical details should be listed without phones: %+v", stats.CriticalReportsDetails)
	}
}

func TestAdminListReports(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seed("chi", models.RoleUser)
	_, adminToken := env.seed("dayo", models.RoleAdmin)
	for i := 0; i < 3; i++ {
		env.createReport(u, "Leaking hydrant number", models.TypeLeak, models.PriorityMedium, 6.4, 3.4)
	}
	env.createReport(u, "Flooded underpass", models.TypeFlood, models.PriorityHigh, 6.4, 3.4)

	rec := env.do("GET", "/api/admin/reports?page=2&limit=2", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	page := decode[reportsPage](t, rec)
	if len(page.Reports) != 2 || page.Pagination != (models.Pagination{Current: 2, Pages: 2, Total: 4}) {
		t.Fatalf("unexpected page: %+v", page.Pagination)
	}

	rec = env.do("GET", "/api/admin/reports?search=underpass", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[reportsPage](t, rec); page.Pagination.Total != 1 || page.Reports[0].Type != models.TypeFlood {
		t.Fatalf("search = %+v", page)
	}

	today := time.Now().UTC().Format(time.DateOnly)
	rec = env.do("GET", "/api/admin/reports?dateFrom="+today+"&dateTo="+today, adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[reportsPage](t, rec); page.Pagination.Total != 4 {
		t.Fatalf("date range total = %d", page.Pagination.Total)
	}

	expectMessage(t, env.do("GET", "/api/admin/reports?dateFrom=yesterday", adminToken, nil), http.StatusBadRequest, "Invalid dateFrom")
	expectMessage(t, env.do("GET", "/api/admin/reports?priority=SEVERE", adminToken, nil), http.StatusBadRequest, "Invalid priority filter")
}

func TestAdminUpdateReport(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seed("ebi", models.RoleUser)
	admin, adminToken := env.seed("femi", models.RoleAdmin)
	staff, _ := env.seed("gbenga", models.RoleAdmin)
	rep := env.createReport(u, "Contaminated borehole", models.TypeContamination, models.PriorityHigh, 6.4, 3.4)
	path := "/api/admin/reports/" + rep.ID

	rec := env.do("PUT", path, adminToken, map[string]any{
		"status":       "IN_PROGRESS",
		"assignedTo":   staff.ID,
		"priority":     "CRITICAL",
		"adminNote":    "  Crew dispatched  ",
		"costEstimate": 1500.5,
	})
	expectStatus(t, rec, http.StatusOK)
	got := decode[models.Report](t, rec)
	if got.Status != models.StatusInProgress || got.Priority != models.PriorityCritical || got.CostEstimate != 1500.5 {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.AssignedTo == nil || got.AssignedTo.ID != staff.ID || got.AssignedTo.Phone != "" {
		t.Fatalf("assignee = %+v", got.AssignedTo)
	}
	if got.AssignedBy == nil || got.AssignedBy.ID != admin.ID {
		t.Fatalf("assignedBy = %+v", got.AssignedBy)
	}
	if len(got.AdminNotes) != 1 || got.AdminNotes[0].Note != "Crew dispatched" || got.AdminNotes[0].AddedBy != admin.ID {
		t.Fatalf("notes = %+v", got.AdminNotes)
	}

	rec = env.do("PUT", path, adminToken, map[string]any{"status": "RESOLVED", "adminNote": "Fixed"})
	expectStatus(t, rec, http.StatusOK)
	got = decode[models.Report](t, rec)
	if got.ActualResolutionTime == nil || len(got.AdminNotes) != 2 {
		t.Fatalf("resolve not recorded: %+v", got)
	}

	expectMessage(t, env.do("PUT", path, adminToken, map[string]string{"assignedTo": "ghost"}),
		http.StatusBadRequest, "Assigned user not found")
	expectMessage(t, env.do("PUT", "/api/admin/reports/missing", adminToken, map[string]string{"status": "CLOSED"}),
		http.StatusNotFound, "Report not found")
	expectStatus(t, env.do("PUT", path, adminToken, map[string]any{"urgencyLevel": 42}), http.StatusBadRequest)
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seed("hadiza", models.RoleAdmin)
	env.seed("ife", models.RoleUser)
	env.seed("jide", models.RoleUser)

	rec := env.do("GET", "/api/admin/users?role=user", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	page := decode[usersPage](t, rec)
	if page.Pagination.Total != 2 {
		t.Fatalf("role filter total = %d", page.Pagination.Total)
	}
	for _, u := range page.Users {
		if u.Role != models.RoleUser {
			t.Fatalf("unexpected role %s", u.Role)
		}
	}

	rec = env.do("GET", "/api/admin/users?search=JIDE", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[usersPage](t, rec); len(page.Users) != 1 || page.Users[0].FirstName != "jide" {
		t.Fatalf("search = %+v", page.Users)
	}

	rec = env.do("GET", "/api/admin/users?isActive=false", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decode[usersPage](t, rec); page.Pagination.Total != 0 {
		t.Fatalf("inactive total = %d", page.Pagination.Total)
	}

	expectMessage(t, env.do("GET", "/api/admin/users?role=root", adminToken, nil), http.StatusBadRequest, "Invalid role filter")
}

func TestAdminUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	super, superToken := env.seed("kemi", models.RoleSuperAdmin)
	target, _ := env.seed("lanre", models.RoleUser)
	_, adminToken := env.seed("musa", models.RoleAdmin)
	path := "/api/admin/users/" + target.ID

	// Plain admins lack manage_users.
	expectStatus(t, env.do("PUT", path, adminToken, map[string]string{"role": "admin"}), http.StatusForbidden)

	rec := env.do("PUT", path, superToken, map[string]any{
		"role":        "admin",
		"permissions": []string{"system_settings"},
		"department":  " Operations ",
	})
	expectStatus(t, rec, http.StatusOK)
	got := decode[models.User](t, rec)
	if got.Role != models.RoleAdmin || got.Department != "Operations" {
		t.Fatalf("update not applied: %+v", got)
	}
	if !got.HasPermission(models.PermSystemSettings) || !got.HasPermission(models.PermManageReports) {
		t.Fatalf("permissions = %v", got.Permissions)
	}

	rec = env.do("PUT", path, superToken, map[string]any{"isActive": false})
	expectStatus(t, rec, http.StatusOK)
	if decode[models.User](t, rec).IsActive {
		t.Fatalf("user still active")
	}

	expectStatus(t, env.do("PUT", path, superToken, map[string]any{"permissions": []string{"fly"}}), http.StatusBadRequest)
	expectStatus(t, env.do("PUT", path, superToken, map[string]string{"role": "overlord"}), http.StatusBadRequest)
	expectMessage(t, env.do("PUT", "/api/admin/users/"+super.ID, superToken, map[string]string{"role": "user"}),
		http.StatusBadRequest, msgSelfRoleChange)
	expectMessage(t, env.do("PUT", "/api/admin/users/"+super.ID, superToken, map[string]any{"isActive": false}),
		http.StatusBadRequest, msgSelfDeactivate)
	expectMessage(t, env.do("PUT", "/api/admin/users/missing", superToken, map[string]string{"department": "Ops"}),
		http.StatusNotFound, "User not found")
}

func TestEmergencyAlerts(t *testing.T) {
	env := newTestEnv(t)
	u, userToken := env.seed("nkechi", models.RoleUser)
	_, adminToken := env.seed("obi", models.RoleAdmin)
	env.createReport(u, "Dam overflow warning", models.TypeEmergency, models.PriorityCritical, 6.4, 3.4)
	env.createReport(u, "Minor drip at tap", models.TypeLeak, models.PriorityLow, 6.4, 3.4)

	expectStatus(t, env.do("GET", "/api/admin/emergency-alerts", userToken, nil), http.StatusForbidden)

	rec := env.do("GET", "/api/admin/emergency-alerts", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	alerts := decode[[]models.Report](t, rec)
	if len(alerts) != 1 || alerts[0].Priority != models.PriorityCritical {
		t.Fatalf("alerts = %+v", alerts)
	}
	if alerts[0].ReportedBy.Phone == "" {
		t.Fatalf("emergency alerts must carry the reporter phone")
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seed("peju", models.RoleUser)
	_, adminToken := env.seed("rotimi", models.RoleAdmin)
	env.createReport(u, "Outage on the estate", models.TypeOutage, models.PriorityHigh, 6.4, 3.4)

	rec := env.do("GET", "/api/admin/analytics/reports-trend?period=7", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	trend := decode[[]models.TrendPoint](t, rec)
	if len(trend) != 1 || trend[0].Count != 1 || trend[0].Date != time.Now().UTC().Format(time.DateOnly) {
		t.Fatalf("trend = %+v", trend)
	}

	// Two days on, a period below 1 clamps to one day and leaves the report out.
	later := time.Now().Add(48 * time.Hour)
	env.srv.now = func() time.Time { return later }
	for _, period := range []string{"0", "-5"} {
		rec = env.do("GET", "/api/admin/analytics/reports-trend?period="+period, adminToken, nil)
		expectStatus(t, rec, http.StatusOK)
		if got := decode[[]models.TrendPoint](t, rec); len(got) != 0 {
			t.Fatalf("period=%s: trend = %+v, want empty", period, got)
		}
	}
	rec = env.do("GET", "/api/admin/analytics/reports-trend?period=abc", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]models.TrendPoint](t, rec); len(got) != 1 {
		t.Fatalf("default period: trend = %+v", got)
	}
	env.srv.now = time.Now

	rec = env.do("GET", "/api/admin/analytics/performance", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	decode[models.Performance](t, rec)
}
