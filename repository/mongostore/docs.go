package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hydro360/models"
)

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	FirstName      string             `bson:"firstName"`
	LastName       string             `bson:"lastName"`
	Email          string             `bson:"email"`
	PasswordHash   string             `bson:"password"`
	Phone          string             `bson:"phone"`
	Address        string             `bson:"address"`
	Role           string             `bson:"role"`
	IsActive       bool               `bson:"isActive"`
	Avatar         string             `bson:"avatar"`
	Department     string             `bson:"department"`
	Permissions    []string           `bson:"permissions"`
	LastLogin      *time.Time         `bson:"lastLogin,omitempty"`
	ResetTokenHash string             `bson:"resetTokenHash,omitempty"`
	ResetExpiresAt *time.Time         `bson:"resetExpiresAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d *userDoc) model() *models.User {
	u := &models.User{
		ID:           d.ID.Hex(),
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Phone:        d.Phone,
		Address:      d.Address,
		Role:         models.Role(d.Role),
		IsActive:     d.IsActive,
		Avatar:       d.Avatar,
		Department:   d.Department,
		Permissions:  make([]models.Permission, 0, len(d.Permissions)),
		LastLogin:    utcPtr(d.LastLogin),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	for _, p := range d.Permissions {
		u.Permissions = append(u.Permissions, models.Permission(p))
	}
	return u
}

func (d *userDoc) ref(withPhone bool) models.UserRef {
	r := models.UserRef{ID: d.ID.Hex(), FirstName: d.FirstName, LastName: d.LastName, Email: d.Email}
	if withPhone {
		r.Phone = d.Phone
	}
	return r
}

type locationDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type affectedAreaDoc struct {
	Radius          float64 `bson:"radius"`
	EstimatedPeople int     `bson:"estimatedPeople"`
}

type adminNoteDoc struct {
	Note    string             `bson:"note"`
	AddedBy primitive.ObjectID `bson:"addedBy"`
	AddedAt time.Time          `bson:"addedAt"`
}

type commentDoc struct {
	Text      string             `bson:"text"`
	User      primitive.ObjectID `bson:"user"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type reportDoc struct {
	ID                      primitive.ObjectID  `bson:"_id,omitempty"`
	Title                   string              `bson:"title"`
	Description             string              `bson:"description"`
	Type                    string              `bson:"type"`
	Priority                string              `bson:"priority"`
	Location                locationDoc         `bson:"location"`
	Status                  string              `bson:"status"`
	UrgencyLevel            int                 `bson:"urgencyLevel"`
	EstimatedResolutionTime *time.Time          `bson:"estimatedResolutionTime,omitempty"`
	ActualResolutionTime    *time.Time          `bson:"actualResolutionTime,omitempty"`
	CostEstimate            float64             `bson:"costEstimate"`
	ActualCost              float64             `bson:"actualCost"`
	AffectedArea            affectedAreaDoc     `bson:"affectedArea"`
	Images                  []string            `bson:"images"`
	ReportedBy              primitive.ObjectID  `bson:"reportedBy"`
	AssignedTo              *primitive.ObjectID `bson:"assignedTo,omitempty"`
	AssignedBy              *primitive.ObjectID `bson:"assignedBy,omitempty"`
	AdminNotes              []adminNoteDoc      `bson:"adminNotes"`
	Comments                []commentDoc        `bson:"comments"`
	CreatedAt               time.Time           `bson:"createdAt"`
	UpdatedAt               time.Time           `bson:"updatedAt"`
}

// model converts d, populating user references from people. References to
// accounts that no longer exist keep only their id.
func (d *reportDoc) model(people map[primitive.ObjectID]*userDoc) models.Report {
	ref := func(id primitive.ObjectID, withPhone bool) models.UserRef {
		if u, ok := people[id]; ok {
			return u.ref(withPhone)
		}
		return models.UserRef{ID: id.Hex()}
	}
	r := models.Report{
		ID:                      d.ID.Hex(),
		Title:                   d.Title,
		Description:             d.Description,
		Type:                    models.ReportType(d.Type),
		Priority:                models.Priority(d.Priority),
		Location:                models.Location{Lat: d.Location.Lat, Lng: d.Location.Lng},
		Status:                  models.ReportStatus(d.Status),
		UrgencyLevel:            d.UrgencyLevel,
		EstimatedResolutionTime: utcPtr(d.EstimatedResolutionTime),
		ActualResolutionTime:    utcPtr(d.ActualResolutionTime),
		CostEstimate:            d.CostEstimate,
		ActualCost:              d.ActualCost,
		AffectedArea:            models.AffectedArea{Radius: d.AffectedArea.Radius, EstimatedPeople: d.AffectedArea.EstimatedPeople},
		Images:                  d.Images,
		ReportedBy:              ref(d.ReportedBy, true),
		CreatedAt:               d.CreatedAt.UTC(),
		UpdatedAt:               d.UpdatedAt.UTC(),
	}
	if d.AssignedTo != nil {
		a := ref(*d.AssignedTo, true)
		r.AssignedTo = &a
	}
	if d.AssignedBy != nil {
		a := ref(*d.AssignedBy, false)
		r.AssignedBy = &a
	}
	for _, n := range d.AdminNotes {
		r.AdminNotes = append(r.AdminNotes, models.AdminNote{Note: n.Note, AddedBy: n.AddedBy.Hex(), AddedAt: n.AddedAt.UTC()})
	}
	for _, c := range d.Comments {
		r.Comments = append(r.Comments, models.Comment{Text: c.Text, User: c.User.Hex(), CreatedAt: c.CreatedAt.UTC()})
	}
	r.ApplyDefaults()
	return r
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// objectID parses a hex id. Malformed ids never match a document.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}
