package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"hydro360/models"
)

// ReportRepository is the core repository for Report entities.
// Reads come back with reporter and staff references populated.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportSelect = `SELECT r.id, r.title, r.description, r.type, r.priority, r.lat, r.lng, r.status, r.urgency_level,
  r.estimated_resolution_time, r.actual_resolution_time, r.cost_estimate, r.actual_cost, r.affected_radius, r.affected_people,
  r.images, r.admin_notes, r.comments,
  r.reported_by, rep.first_name, rep.last_name, rep.email, rep.phone,
  r.assigned_to, asg.first_name, asg.last_name, asg.email, asg.phone,
  r.assigned_by, asb.first_name, asb.last_name, asb.email,
  r.created_at, r.updated_at
FROM reports r
LEFT JOIN users rep ON rep.id = r.reported_by
LEFT JOIN users asg ON asg.id = r.assigned_to
LEFT JOIN users asb ON asb.id = r.assigned_by`

// Create inserts a new report. Priority, status and urgency fall back to their defaults.
func (r *ReportRepository) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	if rep == nil {
		return nil, errors.New("report is nil")
	}
	if rep.ReportedBy.ID == "" {
		return nil, errors.New("report has no reporter")
	}
	in := *rep
	in.ApplyDefaults()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	images, err := json.Marshal(in.Images)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `INSERT INTO reports (id, title, description, type, priority, lat, lng, status, urgency_level,
  estimated_resolution_time, cost_estimate, actual_cost, affected_radius, affected_people, images, reported_by, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.Title, in.Description, string(in.Type), string(in.Priority), in.Location.Lat, in.Location.Lng,
		string(in.Status), in.UrgencyLevel, nullableTime(in.EstimatedResolutionTime), in.CostEstimate, in.ActualCost,
		in.AffectedArea.Radius, in.AffectedArea.EstimatedPeople, string(images), in.ReportedBy.ID,
		formatTime(now), formatTime(now))
	if err != nil {
		return nil, err
	}
	out, err := r.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("created report not found: id=%s", in.ID)
	}
	return out, nil
}

// GetByID fetches a report by its ID.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanReport(r.db.QueryRowContext(ctx, reportSelect+` WHERE r.id = ?`, id))
}

// Update applies the non-nil fields of upd and returns the updated report,
// or (nil, nil) when the id is unknown.
func (r *ReportRepository) Update(ctx context.Context, id string, upd ReportUpdate) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var set []string
	var args []any
	add := func(expr string, v ...any) {
		set = append(set, expr)
		args = append(args, v...)
	}
	if upd.Title != nil {
		add("title = ?", *upd.Title)
	}
	if upd.Description != nil {
		add("description = ?", *upd.Description)
	}
	if upd.Type != nil {
		add("type = ?", string(*upd.Type))
	}
	if upd.Priority != nil {
		add("priority = ?", string(*upd.Priority))
	}
	if upd.Location != nil {
		add("lat = ?, lng = ?", upd.Location.Lat, upd.Location.Lng)
	}
	if upd.Status != nil {
		add("status = ?", string(*upd.Status))
	}
	if upd.UrgencyLevel != nil {
		add("urgency_level = ?", *upd.UrgencyLevel)
	}
	if upd.AffectedArea != nil {
		add("affected_radius = ?, affected_people = ?", upd.AffectedArea.Radius, upd.AffectedArea.EstimatedPeople)
	}
	if upd.EstimatedResolutionTime != nil {
		add("estimated_resolution_time = ?", formatTime(*upd.EstimatedResolutionTime))
	}
	if upd.ActualResolutionTime != nil {
		add("actual_resolution_time = ?", formatTime(*upd.ActualResolutionTime))
	}
	if upd.CostEstimate != nil {
		add("cost_estimate = ?", *upd.CostEstimate)
	}
	if upd.ActualCost != nil {
		add("actual_cost = ?", *upd.ActualCost)
	}
	if upd.AssignedTo != nil {
		add("assigned_to = ?", *upd.AssignedTo)
	}
	if upd.AssignedBy != nil {
		add("assigned_by = ?", *upd.AssignedBy)
	}
	if upd.Note != nil {
		note, err := json.Marshal(upd.Note)
		if err != nil {
			return nil, err
		}
		add("admin_notes = json_insert(admin_notes, '$[#]', json(?))", string(note))
	}
	add("updated_at = ?", formatTime(time.Now()))

	res, err := r.db.ExecContext(ctx, `UPDATE reports SET `+strings.Join(set, ", ")+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// AddComment appends a comment and returns the updated report, or (nil, nil) when the id is unknown.
func (r *ReportRepository) AddComment(ctx context.Context, id string, c models.Comment) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET comments = json_insert(comments, '$[#]', json(?)), updated_at = ? WHERE id = ?`,
		string(raw), formatTime(time.Now()), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Delete removes a report by ID and reports whether it existed.
func (r *ReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func scanReport(row rowScanner) (*models.Report, error) {
	var rep models.Report
	var typ, priority, status, createdAt, updatedAt string
	var images, notes, comments string
	var estimated, actual sql.NullString
	var repFirst, repLast, repEmail, repPhone sql.NullString
	var asgID, asgFirst, asgLast, asgEmail, asgPhone sql.NullString
	var asbID, asbFirst, asbLast, asbEmail sql.NullString
	err := row.Scan(&rep.ID, &rep.Title, &rep.Description, &typ, &priority, &rep.Location.Lat, &rep.Location.Lng, &status, &rep.UrgencyLevel,
		&estimated, &actual, &rep.CostEstimate, &rep.ActualCost, &rep.AffectedArea.Radius, &rep.AffectedArea.EstimatedPeople,
		&images, &notes, &comments,
		&rep.ReportedBy.ID, &repFirst, &repLast, &repEmail, &repPhone,
		&asgID, &asgFirst, &asgLast, &asgEmail, &asgPhone,
		&asbID, &asbFirst, &asbLast, &asbEmail,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rep.Type = models.ReportType(typ)
	rep.Priority = models.Priority(priority)
	rep.Status = models.ReportStatus(status)
	rep.EstimatedResolutionTime = timePtr(estimated)
	rep.ActualResolutionTime = timePtr(actual)
	rep.CreatedAt = parseTime(createdAt)
	rep.UpdatedAt = parseTime(updatedAt)

	rep.ReportedBy.FirstName = repFirst.String
	rep.ReportedBy.LastName = repLast.String
	rep.ReportedBy.Email = repEmail.String
	rep.ReportedBy.Phone = repPhone.String
	if asgID.Valid && asgID.String != "" {
		rep.AssignedTo = &models.UserRef{ID: asgID.String, FirstName: asgFirst.String, LastName: asgLast.String, Email: asgEmail.String, Phone: asgPhone.String}
	}
	if asbID.Valid && asbID.String != "" {
		rep.AssignedBy = &models.UserRef{ID: asbID.String, FirstName: asbFirst.String, LastName: asbLast.String, Email: asbEmail.String}
	}

	if err := json.Unmarshal([]byte(images), &rep.Images); err != nil {
		return nil, fmt.Errorf("decode images of %s: %w", rep.ID, err)
	}
	if err := json.Unmarshal([]byte(notes), &rep.AdminNotes); err != nil {
		return nil, fmt.Errorf("decode admin notes of %s: %w", rep.ID, err)
	}
	if err := json.Unmarshal([]byte(comments), &rep.Comments); err != nil {
		return nil, fmt.Errorf("decode comments of %s: %w", rep.ID, err)
	}
	rep.ApplyDefaults()
	return &rep, nil
}
