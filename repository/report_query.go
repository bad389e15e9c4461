package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"hydro360/models"
)

// buildReportWhere turns f into a WHERE clause (possibly empty) and its arguments.
func buildReportWhere(f ReportFilter) (string, []any) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "r.priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.Type != "" {
		where = append(where, "r.type = ?")
		args = append(args, string(f.Type))
	}
	if f.AssignedTo != "" {
		where = append(where, "r.assigned_to = ?")
		args = append(args, f.AssignedTo)
	}
	if f.ReportedBy != "" {
		where = append(where, "r.reported_by = ?")
		args = append(args, f.ReportedBy)
	}
	if f.DateFrom != nil {
		where = append(where, "r.created_at >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "r.created_at <= ?")
		args = append(args, formatTime(*f.DateTo))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		where = append(where, `(r.title LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns reports matching f ordered by created_at desc, id desc, and the
// total match count. When f is not paged every match is returned.
func (r *ReportRepository) List(ctx context.Context, f ReportFilter) ([]models.Report, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clause, args := buildReportWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports r`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := reportSelect + clause + ` ORDER BY r.created_at DESC, r.id DESC`
	if f.Paged() {
		page := f.Page.Normalize()
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Size, page.Offset())
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanReportRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListInBounds returns every report whose location falls inside b.
// A box with MinLng > MaxLng wraps across the antimeridian.
func (r *ReportRepository) ListInBounds(ctx context.Context, b Bounds) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := reportSelect + ` WHERE r.lat BETWEEN ? AND ?`
	args := []any{b.MinLat, b.MaxLat}
	if b.MinLng <= b.MaxLng {
		query += ` AND r.lng BETWEEN ? AND ?`
	} else {
		query += ` AND (r.lng >= ? OR r.lng <= ?)`
	}
	args = append(args, b.MinLng, b.MaxLng)

	rows, err := r.db.QueryContext(ctx, query+` ORDER BY r.created_at DESC, r.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReportRows(rows)
}

// ListCriticalOpen returns the newest CRITICAL reports that are neither resolved nor closed.
// A non-positive limit returns all of them.
func (r *ReportRepository) ListCriticalOpen(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, reportSelect+`
WHERE r.priority = ?
  AND r.status NOT IN (?, ?)
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?`, string(models.PriorityCritical), string(models.StatusResolved), string(models.StatusClosed), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReportRows(rows)
}

// scanReportRows is a helper to scan rows into Report objects.
func scanReportRows(rows *sql.Rows) ([]models.Report, error) {
	out := []models.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
