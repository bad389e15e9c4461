package grpcserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"hydro360/internal/auth"
	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/models"
	"hydro360/repository"
)

const (
	maxPageSize     = 100 // Maximum allowed page size for list operations.
	defaultPageSize = 20  // Default page size for list operations.
	pageTokenPrefix = "page:"
)

// AdminServer implements AdminServiceServer over a repository store.
// Every call re-loads the caller and checks the stored role or permissions.
type AdminServer struct {
	Store *repository.Store
	Now   func() time.Time
}

var _ AdminServiceServer = (*AdminServer)(nil)

func (s *AdminServer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DashboardStats returns the admin dashboard aggregates.
func (s *AdminServer) DashboardStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if _, err := auth.RequireRole(ctx, s.Store.Users, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	stats, err := s.Store.Analytics.DashboardStats(ctx, s.now())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "dashboard stats: %v", err)
	}
	for i := range stats.CriticalReportsDetails {
		stats.CriticalReportsDetails[i].HideContactPhones()
	}
	return toStruct(stats)
}

// ListReports lists reports with optional status, priority, type, assignee and
// search filters. Pages are addressed with an opaque page token.
func (s *AdminServer) ListReports(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequirePermission(ctx, s.Store.Users, models.PermViewReports); err != nil {
		return nil, err
	}
	var f repository.ReportFilter
	if v := stringField(req, "status"); v != "" {
		if !models.ValidStatus(v) {
			return nil, status.Errorf(codes.InvalidArgument, "invalid status %q", v)
		}
		f.Status = models.ReportStatus(v)
	}
	if v := stringField(req, "priority"); v != "" {
		if !models.ValidPriority(v) {
			return nil, status.Errorf(codes.InvalidArgument, "invalid priority %q", v)
		}
		f.Priority = models.Priority(v)
	}
	if v := stringField(req, "type"); v != "" {
		if !models.ValidReportType(v) {
			return nil, status.Errorf(codes.InvalidArgument, "invalid type %q", v)
		}
		f.Type = models.ReportType(v)
	}
	f.AssignedTo = stringField(req, "assignedTo")
	f.Search = stringField(req, "search")

	size := int(numberField(req, "pageSize"))
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)
	page := 1
	if tok := stringField(req, "pageToken"); tok != "" {
		n, err := decodePageToken(tok)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid pageToken: %v", err)
		}
		page = n
	}
	f.Page = repository.Page{Number: page, Size: size}

	reports, total, err := s.Store.Reports.List(ctx, f)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list reports: %v", err)
	}
	for i := range reports {
		reports[i].HideContactPhones()
	}
	resp := map[string]any{"reports": reports, "total": total}
	if page*size < total {
		resp["nextPageToken"] = encodePageToken(page + 1)
	}
	return toStruct(resp)
}

// UpdateReportStatus moves a report to a new status and optionally appends an admin note.
func (s *AdminServer) UpdateReportStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := auth.RequirePermission(ctx, s.Store.Users, models.PermManageReports)
	if err != nil {
		return nil, err
	}
	id := stringField(req, "id")
	st := models.ReportStatus(stringField(req, "status"))
	if id == "" || !models.ValidStatus(string(st)) {
		return nil, status.Error(codes.InvalidArgument, "id and a valid status are required")
	}

	existing, err := s.Store.Reports.GetByID(ctx, id)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get report: %v", err)
	}
	if existing == nil {
		return nil, status.Error(codes.NotFound, "report not found")
	}

	now := s.now().UTC()
	upd := repository.ReportUpdate{Status: &st}
	if st == models.StatusResolved {
		upd.ActualResolutionTime = &now
	}
	if note := stringField(req, "note"); note != "" {
		upd.Note = &models.AdminNote{Note: note, AddedBy: caller.ID, AddedAt: now}
	}
	updated, err := s.Store.Reports.Update(ctx, id, upd)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "update report: %v", err)
	}
	if updated == nil {
		return nil, status.Error(codes.NotFound, "report not found")
	}
	if st != existing.Status {
		metrics.ReportStatusChanges.WithLabelValues(string(st)).Inc()
	}
	logging.Ctx(ctx).Info().Str("report_id", id).Str("by", caller.ID).Str("status", string(st)).Msg("report status changed over grpc")
	updated.HideContactPhones()
	return toStruct(map[string]any{"report": updated})
}

// EmergencyAlerts lists open critical reports with the reporter's phone.
func (s *AdminServer) EmergencyAlerts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if _, err := auth.RequirePermission(ctx, s.Store.Users, models.PermEmergencyResponse); err != nil {
		return nil, err
	}
	reports, err := s.Store.Reports.ListCriticalOpen(ctx, 0)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "emergency alerts: %v", err)
	}
	for i := range reports {
		if reports[i].AssignedTo != nil {
			reports[i].AssignedTo.Phone = ""
		}
	}
	return toStruct(map[string]any{"alerts": reports})
}

// SetUserRole changes the role of another account.
func (s *AdminServer) SetUserRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := auth.RequirePermission(ctx, s.Store.Users, models.PermManageUsers)
	if err != nil {
		return nil, err
	}
	id := stringField(req, "id")
	role := stringField(req, "role")
	if id == "" || !models.ValidRole(role) {
		return nil, status.Error(codes.InvalidArgument, "id and a valid role are required")
	}
	if id == caller.ID && models.Role(role) != caller.Role {
		return nil, status.Error(codes.FailedPrecondition, "cannot change own role")
	}
	r := models.Role(role)
	u, err := s.Store.Users.Update(ctx, id, repository.UserUpdate{Role: &r})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "update user: %v", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	logging.Ctx(ctx).Info().Str("user_id", id).Str("by", caller.ID).Str("role", role).Msg("role changed over grpc")
	return toStruct(map[string]any{"user": u})
}

// toStruct converts v to a Struct through its JSON form so that field names
// match the REST payloads.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

// encodePageToken turns a page number into an opaque page token.
func encodePageToken(page int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(pageTokenPrefix + strconv.Itoa(page)))
}

// decodePageToken parses a token produced by encodePageToken.
func decodePageToken(token string) (int, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("base64: %w", err)
	}
	num, ok := strings.CutPrefix(string(b), pageTokenPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid token format")
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page %q", num)
	}
	return n, nil
}
