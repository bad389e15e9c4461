package mongostore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hydro360/models"
	"hydro360/repository"
)

// UserRepo stores accounts in the users collection.
type UserRepo struct {
	coll *mongo.Collection
}

var _ repository.UserRepositoryI = (*UserRepo)(nil)

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection("users")}
}

// Create inserts a new account with the same defaults as the SQL store.
func (r *UserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, errors.New("user is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDoc{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        normalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Address:      u.Address,
		Role:         string(u.Role),
		IsActive:     true,
		Avatar:       u.Avatar,
		Department:   u.Department,
		Permissions:  permissionStrings(u.Permissions),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.Role == "" {
		doc.Role = string(models.RoleUser)
	}
	if oid, ok := objectID(u.ID); ok {
		doc.ID = oid
	} else {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicateEmail
		}
		return nil, err
	}
	return doc.model(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.model(), nil
}

// List returns one page of accounts matching f, newest first, and the total match count.
func (r *UserRepo) List(ctx context.Context, f repository.UserFilter) ([]models.User, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.IsActive != nil {
		filter["isActive"] = *f.IsActive
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		re := containsRegex(s)
		filter["$or"] = bson.A{
			bson.M{"firstName": re},
			bson.M{"lastName": re},
			bson.M{"email": re},
		}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	page := f.Page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.User, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].model())
	}
	return out, int(total), nil
}

// Update applies the non-nil fields of upd and returns the updated account,
// or (nil, nil) when the id is unknown.
func (r *UserRepo) Update(ctx context.Context, id string, upd repository.UserUpdate) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Role != nil {
		set["role"] = string(*upd.Role)
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}
	if upd.Permissions != nil {
		set["permissions"] = permissionStrings(*upd.Permissions)
	}
	if upd.Department != nil {
		set["department"] = *upd.Department
	}
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}
	update := bson.M{"$set": set}
	if upd.PasswordHash != nil {
		set["password"] = *upd.PasswordHash
		update["$unset"] = bson.M{"resetTokenHash": "", "resetExpiresAt": ""}
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
}

func (r *UserRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.model(), nil
}

// UpdatePassword stores a new password hash and invalidates any pending reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	oid, ok := objectID(id)
	if !ok {
		return mongo.ErrNoDocuments
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{
		"$set":   bson.M{"password": hash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetTokenHash": "", "resetExpiresAt": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"lastLogin": at.UTC()}})
	return err
}

// SetResetToken records the hash of a password reset token, replacing any earlier one.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"resetTokenHash": tokenHash, "resetExpiresAt": expires.UTC()}})
	return err
}

// ConsumeResetToken atomically clears an unexpired reset token and returns its owner.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.findOneAndUpdate(ctx,
		bson.M{"resetTokenHash": tokenHash, "resetExpiresAt": bson.M{"$gte": now.UTC()}},
		bson.M{"$unset": bson.M{"resetTokenHash": "", "resetExpiresAt": ""}})
}

// Delete removes an account with the reports it submitted and clears
// assignments that point at it.
func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil || res.DeletedCount == 0 {
		return false, err
	}
	reports := r.coll.Database().Collection("reports")
	if _, err := reports.DeleteMany(ctx, bson.M{"reportedBy": oid}); err != nil {
		return true, err
	}
	for _, field := range []string{"assignedTo", "assignedBy"} {
		if _, err := reports.UpdateMany(ctx, bson.M{field: oid}, bson.M{"$unset": bson.M{field: ""}}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// byIDs loads the accounts referenced by a batch of reports.
func (r *UserRepo) byIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*userDoc, error) {
	out := make(map[primitive.ObjectID]*userDoc, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		out[docs[i].ID] = &docs[i]
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func permissionStrings(perms []models.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

// containsRegex matches s literally anywhere in a field, ignoring case.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
