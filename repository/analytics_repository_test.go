package repository

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"hydro360/internal/db"
	"hydro360/models"
)

func backdate(t *testing.T, d *sql.DB, reportID string, created time.Time) {
	t.Helper()
	if _, err := d.Exec(`UPDATE reports SET created_at = ? WHERE id = ?`, formatTime(created), reportID); err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func TestAnalyticsRepository_DashboardStats(t *testing.T) {
	d, err := db.Open("file:analyticsdash?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	s := NewSQLiteStore(d)
	ctx := context.Background()
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

	citizen, _ := s.Users.Create(ctx, newTestUser("Musa", "musa@example.com", ""))
	dormant, _ := s.Users.Create(ctx, newTestUser("Ngozi", "ngozi@example.com", ""))
	staff, _ := s.Users.Create(ctx, newTestUser("Ola", "ola@water.gov", models.RoleAdmin))
	_ = s.Users.TouchLastLogin(ctx, citizen.ID, now.Add(-24*time.Hour))
	_ = s.Users.TouchLastLogin(ctx, dormant.ID, now.AddDate(0, -2, 0))
	_ = s.Users.TouchLastLogin(ctx, staff.ID, now)

	recent, _ := s.Reports.Create(ctx, newTestReport(citizen.ID, "Recent leak", models.TypeLeak, 1, 1))
	backdate(t, d, recent.ID, now.Add(-2*24*time.Hour))

	crit := newTestReport(citizen.ID, "Contaminated well", models.TypeContamination, 1, 1)
	crit.Priority = models.PriorityCritical
	critical, _ := s.Reports.Create(ctx, crit)
	backdate(t, d, critical.ID, now.Add(-20*24*time.Hour))

	old, _ := s.Reports.Create(ctx, newTestReport(citizen.ID, "Old leak", models.TypeLeak, 1, 1))
	created := now.AddDate(0, -3, 0)
	backdate(t, d, old.ID, created)
	resolved := models.StatusResolved
	resolvedAt := created.Add(48 * time.Hour)
	_, _ = s.Reports.Update(ctx, old.ID, ReportUpdate{Status: &resolved, ActualResolutionTime: &resolvedAt, AssignedTo: &staff.ID})

	stats, err := s.Analytics.DashboardStats(ctx, now)
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	ov := stats.Overview
	if ov.TotalReports != 3 || ov.PendingReports != 2 || ov.ResolvedReports != 1 || ov.CriticalReports != 1 {
		t.Fatalf("unexpected counts: %+v", ov)
	}
	if ov.ReportsThisWeek != 1 || ov.ReportsThisMonth != 2 {
		t.Fatalf("unexpected windows: week=%d month=%d", ov.ReportsThisWeek, ov.ReportsThisMonth)
	}
	if ov.TotalUsers != 2 || ov.ActiveUsers != 1 {
		t.Fatalf("unexpected user counts: total=%d active=%d", ov.TotalUsers, ov.ActiveUsers)
	}
	if math.Abs(ov.AvgResolutionDays-2) > 1e-6 {
		t.Fatalf("avg resolution days = %v, want 2", ov.AvgResolutionDays)
	}
	if len(stats.ReportsByType) != 2 || stats.ReportsByType[0].Type != models.TypeLeak || stats.ReportsByType[0].Count != 2 {
		t.Fatalf("unexpected by type: %+v", stats.ReportsByType)
	}
	if len(stats.CriticalReportsDetails) != 1 || stats.CriticalReportsDetails[0].ID != critical.ID {
		t.Fatalf("unexpected critical details: %+v", stats.CriticalReportsDetails)
	}

	perf, err := s.Analytics.Performance(ctx)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if len(perf.ResolutionByType) != 1 || math.Abs(perf.ResolutionByType[0].AvgResolutionHours-48) > 1e-3 {
		t.Fatalf("unexpected resolution by type: %+v", perf.ResolutionByType)
	}
	if len(perf.StaffPerformance) != 1 || perf.StaffPerformance[0].Name != "Ola Tester" || perf.StaffPerformance[0].ResolvedCount != 1 {
		t.Fatalf("unexpected staff performance: %+v", perf.StaffPerformance)
	}

	sum, err := s.Analytics.ReporterSummary(ctx, citizen.ID)
	if err != nil || sum.Total != 3 || sum.Pending != 2 || sum.Resolved != 1 || sum.InProgress != 0 {
		t.Fatalf("unexpected summary: %+v %v", sum, err)
	}
}

func TestAnalyticsRepository_ReportsTrend(t *testing.T) {
	d, err := db.Open("file:analyticstrend?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	s := NewSQLiteStore(d)
	ctx := context.Background()

	u, _ := s.Users.Create(ctx, newTestUser("Pere", "pere@example.com", ""))
	day1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	resolved := models.StatusResolved
	for i, at := range []time.Time{day1, day2, day2.Add(-time.Hour), day1.AddDate(0, 0, -40)} {
		r, _ := s.Reports.Create(ctx, newTestReport(u.ID, "Trend report", models.TypeOutage, 0, 0))
		backdate(t, d, r.ID, at)
		if i == 1 {
			_, _ = s.Reports.Update(ctx, r.ID, ReportUpdate{Status: &resolved})
		}
	}

	trend, err := s.Analytics.ReportsTrend(ctx, day1.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	want := []models.TrendPoint{
		{Date: "2026-03-01", Count: 1, Resolved: 0},
		{Date: "2026-03-02", Count: 2, Resolved: 1},
	}
	if len(trend) != len(want) {
		t.Fatalf("trend = %+v, want %+v", trend, want)
	}
	for i := range want {
		if trend[i] != want[i] {
			t.Fatalf("trend[%d] = %+v, want %+v", i, trend[i], want[i])
		}
	}
}

func TestMonthAgoMidnight(t *testing.T) {
	cases := []struct {
		now, want time.Time
	}{
		{time.Date(2026, 5, 20, 15, 4, 5, 0, time.UTC), time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 10, 1, 0, 0, 0, time.UTC), time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := MonthAgoMidnight(c.now); !got.Equal(c.want) {
			t.Errorf("MonthAgoMidnight(%v) = %v, want %v", c.now, got, c.want)
		}
	}
}
