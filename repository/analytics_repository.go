package repository

import (
	"context"
	"database/sql"
	"time"

	"hydro360/models"
)

// AnalyticsRepository runs the read-only aggregations behind the admin
// dashboard and the per-user summary.
type AnalyticsRepository struct {
	db      *sql.DB
	reports *ReportRepository
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db, reports: NewReportRepository(db)}
}

// CriticalDetailsLimit caps the critical reports shown on the admin dashboard.
const CriticalDetailsLimit = 5

// resolvedWithTime matches reports that count towards resolution averages.
const resolvedWithTime = `status = 'RESOLVED' AND actual_resolution_time IS NOT NULL`

// DashboardStats computes the admin overview relative to now.
// The week window is the trailing 7*24h; the month window starts at midnight
// of the same calendar day one month earlier.
func (a *AnalyticsRepository) DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	lastWeek := now.Add(-7 * 24 * time.Hour)
	lastMonth := MonthAgoMidnight(now)

	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var ov models.Overview
	err := a.db.QueryRowContext(qctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(status = 'PENDING'), 0),
  COALESCE(SUM(status = 'IN_PROGRESS'), 0),
  COALESCE(SUM(status = 'RESOLVED'), 0),
  COALESCE(SUM(priority = 'CRITICAL' AND status NOT IN ('RESOLVED','CLOSED')), 0),
  COALESCE(SUM(created_at >= ?), 0),
  COALESCE(SUM(created_at >= ?), 0)
FROM reports`, formatTime(lastWeek), formatTime(lastMonth)).Scan(
		&ov.TotalReports, &ov.PendingReports, &ov.InProgressReports, &ov.ResolvedReports,
		&ov.CriticalReports, &ov.ReportsThisWeek, &ov.ReportsThisMonth)
	if err != nil {
		return nil, err
	}

	err = a.db.QueryRowContext(qctx, `
SELECT COUNT(*), COALESCE(SUM(last_login IS NOT NULL AND last_login >= ?), 0)
FROM users WHERE role = 'user'`, formatTime(lastMonth)).Scan(&ov.TotalUsers, &ov.ActiveUsers)
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = a.db.QueryRowContext(qctx, `
SELECT AVG(julianday(actual_resolution_time) - julianday(created_at))
FROM reports WHERE `+resolvedWithTime).Scan(&avg)
	if err != nil {
		return nil, err
	}
	ov.AvgResolutionDays = avg.Float64

	byType, err := a.reportsByType(qctx)
	if err != nil {
		return nil, err
	}
	critical, err := a.reports.ListCriticalOpen(ctx, CriticalDetailsLimit)
	if err != nil {
		return nil, err
	}
	return &models.DashboardStats{
		Overview:               ov,
		ReportsByType:          byType,
		CriticalReportsDetails: critical,
	}, nil
}

func (a *AnalyticsRepository) reportsByType(ctx context.Context) ([]models.TypeCount, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT type, COUNT(*) AS n FROM reports GROUP BY type ORDER BY n DESC, type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.TypeCount{}
	for rows.Next() {
		var tc models.TypeCount
		var typ string
		if err := rows.Scan(&typ, &tc.Count); err != nil {
			return nil, err
		}
		tc.Type = models.ReportType(typ)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ReportsTrend counts reports created since the given instant per UTC day,
// with how many of them are currently resolved, oldest day first.
func (a *AnalyticsRepository) ReportsTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := a.db.QueryContext(ctx, `
SELECT substr(created_at, 1, 10) AS day, COUNT(*), COALESCE(SUM(status = 'RESOLVED'), 0)
FROM reports
WHERE created_at >= ?
GROUP BY day
ORDER BY day ASC`, formatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.TrendPoint{}
	for rows.Next() {
		var p models.TrendPoint
		if err := rows.Scan(&p.Date, &p.Count, &p.Resolved); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Performance reports average resolution hours per type and per assignee.
// Assignees whose account no longer exists are left out.
func (a *AnalyticsRepository) Performance(ctx context.Context) (*models.Performance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	perf := &models.Performance{
		ResolutionByType: []models.ResolutionByType{},
		StaffPerformance: []models.StaffPerformance{},
	}

	rows, err := a.db.QueryContext(ctx, `
SELECT type, AVG((julianday(actual_resolution_time) - julianday(created_at)) * 24), COUNT(*)
FROM reports
WHERE `+resolvedWithTime+`
GROUP BY type
ORDER BY type ASC`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var rt models.ResolutionByType
		var typ string
		if err := rows.Scan(&typ, &rt.AvgResolutionHours, &rt.Count); err != nil {
			rows.Close()
			return nil, err
		}
		rt.Type = models.ReportType(typ)
		perf.ResolutionByType = append(perf.ResolutionByType, rt)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = a.db.QueryContext(ctx, `
SELECT u.id, u.first_name || ' ' || u.last_name, COUNT(*),
       COALESCE(AVG((julianday(r.actual_resolution_time) - julianday(r.created_at)) * 24), 0)
FROM reports r
JOIN users u ON u.id = r.assigned_to
WHERE r.status = 'RESOLVED'
GROUP BY u.id
ORDER BY COUNT(*) DESC, u.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sp models.StaffPerformance
		if err := rows.Scan(&sp.UserID, &sp.Name, &sp.ResolvedCount, &sp.AvgResolutionTime); err != nil {
			return nil, err
		}
		perf.StaffPerformance = append(perf.StaffPerformance, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perf, nil
}

// ReporterSummary counts one user's reports by progress. Investigating
// reports count as in progress.
func (a *AnalyticsRepository) ReporterSummary(ctx context.Context, userID string) (*models.ReportSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var s models.ReportSummary
	err := a.db.QueryRowContext(ctx, `
SELECT COUNT(*),
  COALESCE(SUM(status = 'PENDING'), 0),
  COALESCE(SUM(status IN ('INVESTIGATING','IN_PROGRESS')), 0),
  COALESCE(SUM(status = 'RESOLVED'), 0)
FROM reports WHERE reported_by = ?`, userID).Scan(&s.Total, &s.Pending, &s.InProgress, &s.Resolved)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MonthAgoMidnight returns local midnight on the same day of the previous
// month, normalizing overflow the way time.Date does (Mar 31 -> Mar 3).
func MonthAgoMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-1, now.Day(), 0, 0, 0, 0, now.Location())
}
