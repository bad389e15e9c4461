package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"hydro360/models"
	"hydro360/repository"
)

const msPerHour = 3600 * 1000

// AnalyticsRepo runs the dashboard aggregations as pipelines over the
// reports and users collections.
type AnalyticsRepo struct {
	reports *ReportRepo
	users   *UserRepo
}

var _ repository.AnalyticsRepositoryI = (*AnalyticsRepo)(nil)

func NewAnalyticsRepo(reports *ReportRepo, users *UserRepo) *AnalyticsRepo {
	return &AnalyticsRepo{reports: reports, users: users}
}

func countIf(cond bson.M) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}

func eq(field string, v any) bson.M {
	return bson.M{"$eq": bson.A{"$" + field, v}}
}

// resolutionMs is the time from creation to resolution, or null when unresolved.
var resolutionMs = bson.M{"$cond": bson.A{
	bson.M{"$ifNull": bson.A{"$actualResolutionTime", false}},
	bson.M{"$subtract": bson.A{"$actualResolutionTime", "$createdAt"}},
	nil,
}}

var resolvedWithTime = bson.M{
	"status":               string(models.StatusResolved),
	"actualResolutionTime": bson.M{"$ne": nil},
}

func aggregateOne(ctx context.Context, coll *mongo.Collection, pipeline bson.A, out any) (bool, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return false, cur.Err()
	}
	return true, cur.Decode(out)
}

func aggregateAll(ctx context.Context, coll *mongo.Collection, pipeline bson.A, out any) error {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// DashboardStats computes the admin overview relative to now, with the same
// week and month windows as the SQL store.
func (a *AnalyticsRepo) DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	lastWeek := now.Add(-7 * 24 * time.Hour).UTC()
	lastMonth := repository.MonthAgoMidnight(now).UTC()

	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var counts struct {
		Total      int `bson:"total"`
		Pending    int `bson:"pending"`
		InProgress int `bson:"inProgress"`
		Resolved   int `bson:"resolved"`
		Critical   int `bson:"critical"`
		Week       int `bson:"week"`
		Month      int `bson:"month"`
	}
	_, err := aggregateOne(qctx, a.reports.coll, bson.A{
		bson.M{"$group": bson.M{
			"_id":        nil,
			"total":      bson.M{"$sum": 1},
			"pending":    countIf(eq("status", string(models.StatusPending))),
			"inProgress": countIf(eq("status", string(models.StatusInProgress))),
			"resolved":   countIf(eq("status", string(models.StatusResolved))),
			"critical": countIf(bson.M{"$and": bson.A{
				eq("priority", string(models.PriorityCritical)),
				bson.M{"$not": bson.A{bson.M{"$in": bson.A{"$status", bson.A{string(models.StatusResolved), string(models.StatusClosed)}}}}},
			}}),
			"week":  countIf(bson.M{"$gte": bson.A{"$createdAt", lastWeek}}),
			"month": countIf(bson.M{"$gte": bson.A{"$createdAt", lastMonth}}),
		}},
	}, &counts)
	if err != nil {
		return nil, err
	}

	ov := models.Overview{
		TotalReports:      counts.Total,
		PendingReports:    counts.Pending,
		InProgressReports: counts.InProgress,
		ResolvedReports:   counts.Resolved,
		CriticalReports:   counts.Critical,
		ReportsThisWeek:   counts.Week,
		ReportsThisMonth:  counts.Month,
	}

	totalUsers, err := a.users.coll.CountDocuments(qctx, bson.M{"role": string(models.RoleUser)})
	if err != nil {
		return nil, err
	}
	activeUsers, err := a.users.coll.CountDocuments(qctx, bson.M{"role": string(models.RoleUser), "lastLogin": bson.M{"$gte": lastMonth}})
	if err != nil {
		return nil, err
	}
	ov.TotalUsers, ov.ActiveUsers = int(totalUsers), int(activeUsers)

	var avg struct {
		Ms float64 `bson:"ms"`
	}
	if _, err := aggregateOne(qctx, a.reports.coll, bson.A{
		bson.M{"$match": resolvedWithTime},
		bson.M{"$group": bson.M{"_id": nil, "ms": bson.M{"$avg": resolutionMs}}},
	}, &avg); err != nil {
		return nil, err
	}
	ov.AvgResolutionDays = avg.Ms / (24 * msPerHour)

	var byType []struct {
		Type  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := aggregateAll(qctx, a.reports.coll, bson.A{
		bson.M{"$group": bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}, &byType); err != nil {
		return nil, err
	}
	types := make([]models.TypeCount, 0, len(byType))
	for _, t := range byType {
		types = append(types, models.TypeCount{Type: models.ReportType(t.Type), Count: t.Count})
	}

	critical, err := a.reports.ListCriticalOpen(ctx, repository.CriticalDetailsLimit)
	if err != nil {
		return nil, err
	}
	return &models.DashboardStats{Overview: ov, ReportsByType: types, CriticalReportsDetails: critical}, nil
}

// ReportsTrend counts reports created since the given instant per UTC day, oldest day first.
func (a *AnalyticsRepo) ReportsTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rows []struct {
		Day      string `bson:"_id"`
		Count    int    `bson:"count"`
		Resolved int    `bson:"resolved"`
	}
	err := aggregateAll(ctx, a.reports.coll, bson.A{
		bson.M{"$match": bson.M{"createdAt": bson.M{"$gte": since.UTC()}}},
		bson.M{"$group": bson.M{
			"_id":      bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
			"count":    bson.M{"$sum": 1},
			"resolved": countIf(eq("status", string(models.StatusResolved))),
		}},
		bson.M{"$sort": bson.M{"_id": 1}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]models.TrendPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TrendPoint{Date: r.Day, Count: r.Count, Resolved: r.Resolved})
	}
	return out, nil
}

// Performance reports average resolution hours per type and per assignee.
// Assignees whose account no longer exists are left out.
func (a *AnalyticsRepo) Performance(ctx context.Context) (*models.Performance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	perf := &models.Performance{
		ResolutionByType: []models.ResolutionByType{},
		StaffPerformance: []models.StaffPerformance{},
	}

	var byType []struct {
		Type  string  `bson:"_id"`
		Ms    float64 `bson:"ms"`
		Count int     `bson:"count"`
	}
	if err := aggregateAll(ctx, a.reports.coll, bson.A{
		bson.M{"$match": resolvedWithTime},
		bson.M{"$group": bson.M{"_id": "$type", "ms": bson.M{"$avg": resolutionMs}, "count": bson.M{"$sum": 1}}},
		bson.M{"$sort": bson.M{"_id": 1}},
	}, &byType); err != nil {
		return nil, err
	}
	for _, t := range byType {
		perf.ResolutionByType = append(perf.ResolutionByType, models.ResolutionByType{
			Type:               models.ReportType(t.Type),
			AvgResolutionHours: t.Ms / msPerHour,
			Count:              t.Count,
		})
	}

	var staff []struct {
		UserID primitive.ObjectID `bson:"_id"`
		Count  int                `bson:"count"`
		Ms     float64            `bson:"ms"`
	}
	if err := aggregateAll(ctx, a.reports.coll, bson.A{
		bson.M{"$match": bson.M{"status": string(models.StatusResolved), "assignedTo": bson.M{"$ne": nil}}},
		bson.M{"$group": bson.M{"_id": "$assignedTo", "count": bson.M{"$sum": 1}, "ms": bson.M{"$avg": resolutionMs}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}, &staff); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(staff))
	for _, s := range staff {
		ids = append(ids, s.UserID)
	}
	people, err := a.users.byIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range staff {
		u, ok := people[s.UserID]
		if !ok {
			continue
		}
		perf.StaffPerformance = append(perf.StaffPerformance, models.StaffPerformance{
			UserID:            s.UserID.Hex(),
			Name:              u.FirstName + " " + u.LastName,
			ResolvedCount:     s.Count,
			AvgResolutionTime: s.Ms / msPerHour,
		})
	}
	return perf, nil
}

// ReporterSummary counts one user's reports by progress. Investigating
// reports count as in progress.
func (a *AnalyticsRepo) ReporterSummary(ctx context.Context, userID string) (*models.ReportSummary, error) {
	s := &models.ReportSummary{}
	oid, ok := objectID(userID)
	if !ok {
		return s, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var row struct {
		Total      int `bson:"total"`
		Pending    int `bson:"pending"`
		InProgress int `bson:"inProgress"`
		Resolved   int `bson:"resolved"`
	}
	_, err := aggregateOne(ctx, a.reports.coll, bson.A{
		bson.M{"$match": bson.M{"reportedBy": oid}},
		bson.M{"$group": bson.M{
			"_id":     nil,
			"total":   bson.M{"$sum": 1},
			"pending": countIf(eq("status", string(models.StatusPending))),
			"inProgress": countIf(bson.M{"$in": bson.A{"$status", bson.A{
				string(models.StatusInvestigating), string(models.StatusInProgress),
			}}}),
			"resolved": countIf(eq("status", string(models.StatusResolved))),
		}},
	}, &row)
	if err != nil {
		return nil, err
	}
	*s = models.ReportSummary{Total: row.Total, Pending: row.Pending, InProgress: row.InProgress, Resolved: row.Resolved}
	return s, nil
}
