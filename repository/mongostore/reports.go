package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hydro360/models"
	"hydro360/repository"
)

// ReportRepo stores reports in the reports collection. Reads populate the
// reporter and staff references from the users collection.
type ReportRepo struct {
	coll  *mongo.Collection
	users *UserRepo
}

var _ repository.ReportRepositoryI = (*ReportRepo)(nil)

func NewReportRepo(db *mongo.Database, users *UserRepo) *ReportRepo {
	return &ReportRepo{coll: db.Collection("reports"), users: users}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *ReportRepo) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	if rep == nil {
		return nil, errors.New("report is nil")
	}
	reporter, ok := objectID(rep.ReportedBy.ID)
	if !ok {
		return nil, errors.New("report has no reporter")
	}
	in := *rep
	in.ApplyDefaults()
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := reportDoc{
		ID:                      primitive.NewObjectID(),
		Title:                   in.Title,
		Description:             in.Description,
		Type:                    string(in.Type),
		Priority:                string(in.Priority),
		Location:                locationDoc{Lat: in.Location.Lat, Lng: in.Location.Lng},
		Status:                  string(in.Status),
		UrgencyLevel:            in.UrgencyLevel,
		EstimatedResolutionTime: utcPtr(in.EstimatedResolutionTime),
		CostEstimate:            in.CostEstimate,
		ActualCost:              in.ActualCost,
		AffectedArea:            affectedAreaDoc{Radius: in.AffectedArea.Radius, EstimatedPeople: in.AffectedArea.EstimatedPeople},
		Images:                  in.Images,
		ReportedBy:              reporter,
		AdminNotes:              []adminNoteDoc{},
		Comments:                []commentDoc{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	ictx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := r.coll.InsertOne(ictx, doc); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, doc.ID.Hex())
}

func (r *ReportRepo) GetByID(ctx context.Context, id string) (*models.Report, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var doc reportDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	out, err := r.populate(ctx, []reportDoc{doc})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// reportFilter mirrors the SQL WHERE builder for ReportFilter.
func reportFilter(f repository.ReportFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Priority != "" {
		filter["priority"] = string(f.Priority)
	}
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	if f.AssignedTo != "" {
		oid, _ := objectID(f.AssignedTo)
		filter["assignedTo"] = oid
	}
	if f.ReportedBy != "" {
		oid, _ := objectID(f.ReportedBy)
		filter["reportedBy"] = oid
	}
	created := bson.M{}
	if f.DateFrom != nil {
		created["$gte"] = f.DateFrom.UTC()
	}
	if f.DateTo != nil {
		created["$lte"] = f.DateTo.UTC()
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := containsRegex(s)
		filter["$or"] = bson.A{bson.M{"title": re}, bson.M{"description": re}}
	}
	return filter
}

func (r *ReportRepo) List(ctx context.Context, f repository.ReportFilter) ([]models.Report, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := reportFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(newestFirst)
	if f.Paged() {
		page := f.Page.Normalize()
		opts.SetSkip(int64(page.Offset())).SetLimit(int64(page.Size))
	}
	out, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

// ListInBounds returns every report whose location falls inside b.
// A box with MinLng > MaxLng wraps across the antimeridian.
func (r *ReportRepo) ListInBounds(ctx context.Context, b repository.Bounds) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{"location.lat": bson.M{"$gte": b.MinLat, "$lte": b.MaxLat}}
	if b.MinLng <= b.MaxLng {
		filter["location.lng"] = bson.M{"$gte": b.MinLng, "$lte": b.MaxLng}
	} else {
		filter["$or"] = bson.A{
			bson.M{"location.lng": bson.M{"$gte": b.MinLng}},
			bson.M{"location.lng": bson.M{"$lte": b.MaxLng}},
		}
	}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

// ListCriticalOpen returns the newest CRITICAL reports that are neither resolved nor closed.
// A non-positive limit returns all of them.
func (r *ReportRepo) ListCriticalOpen(ctx context.Context, limit int) ([]models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{
		"priority": string(models.PriorityCritical),
		"status":   bson.M{"$nin": bson.A{string(models.StatusResolved), string(models.StatusClosed)}},
	}, opts)
}

func (r *ReportRepo) Update(ctx context.Context, id string, upd repository.ReportUpdate) (*models.Report, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Type != nil {
		set["type"] = string(*upd.Type)
	}
	if upd.Priority != nil {
		set["priority"] = string(*upd.Priority)
	}
	if upd.Location != nil {
		set["location"] = locationDoc{Lat: upd.Location.Lat, Lng: upd.Location.Lng}
	}
	if upd.Status != nil {
		set["status"] = string(*upd.Status)
	}
	if upd.UrgencyLevel != nil {
		set["urgencyLevel"] = *upd.UrgencyLevel
	}
	if upd.AffectedArea != nil {
		set["affectedArea"] = affectedAreaDoc{Radius: upd.AffectedArea.Radius, EstimatedPeople: upd.AffectedArea.EstimatedPeople}
	}
	if upd.EstimatedResolutionTime != nil {
		set["estimatedResolutionTime"] = upd.EstimatedResolutionTime.UTC()
	}
	if upd.ActualResolutionTime != nil {
		set["actualResolutionTime"] = upd.ActualResolutionTime.UTC()
	}
	if upd.CostEstimate != nil {
		set["costEstimate"] = *upd.CostEstimate
	}
	if upd.ActualCost != nil {
		set["actualCost"] = *upd.ActualCost
	}
	if upd.AssignedTo != nil {
		a, _ := objectID(*upd.AssignedTo)
		set["assignedTo"] = a
	}
	if upd.AssignedBy != nil {
		a, _ := objectID(*upd.AssignedBy)
		set["assignedBy"] = a
	}
	update := bson.M{"$set": set}
	if upd.Note != nil {
		by, _ := objectID(upd.Note.AddedBy)
		update["$push"] = bson.M{"adminNotes": adminNoteDoc{Note: upd.Note.Note, AddedBy: by, AddedAt: upd.Note.AddedAt.UTC()}}
	}
	return r.updateOne(ctx, oid, update)
}

func (r *ReportRepo) AddComment(ctx context.Context, id string, c models.Comment) (*models.Report, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	user, _ := objectID(c.User)
	return r.updateOne(ctx, oid, bson.M{
		"$push": bson.M{"comments": commentDoc{Text: c.Text, User: user, CreatedAt: c.CreatedAt.UTC()}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *ReportRepo) updateOne(ctx context.Context, oid primitive.ObjectID, update bson.M) (*models.Report, error) {
	uctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.coll.UpdateByID(uctx, oid, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, oid.Hex())
}

func (r *ReportRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *ReportRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Report, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return r.populate(ctx, docs)
}

// populate resolves the user references of docs with one query.
func (r *ReportRepo) populate(ctx context.Context, docs []reportDoc) ([]models.Report, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	add := func(id *primitive.ObjectID) {
		if id != nil && !id.IsZero() && !seen[*id] {
			seen[*id] = true
			ids = append(ids, *id)
		}
	}
	for i := range docs {
		add(&docs[i].ReportedBy)
		add(docs[i].AssignedTo)
		add(docs[i].AssignedBy)
	}
	people, err := r.users.byIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Report, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model(people))
	}
	return out, nil
}
