package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hydro360/models"
	"hydro360/repository"
)

func TestReportDocModel_PopulatesReferences(t *testing.T) {
	reporter := &userDoc{ID: primitive.NewObjectID(), FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Phone: "+234"}
	staff := &userDoc{ID: primitive.NewObjectID(), FirstName: "Sam", Phone: "+1"}
	gone := primitive.NewObjectID()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := reportDoc{
		ID:         primitive.NewObjectID(),
		Title:      "Leak",
		Type:       "LEAK",
		ReportedBy: reporter.ID,
		AssignedTo: &staff.ID,
		AssignedBy: &gone,
		Comments:   []commentDoc{{Text: "hi", User: reporter.ID, CreatedAt: created}},
		CreatedAt:  created,
	}
	got := doc.model(map[primitive.ObjectID]*userDoc{reporter.ID: reporter, staff.ID: staff})

	assert.Equal(t, doc.ID.Hex(), got.ID)
	assert.Equal(t, "Ada", got.ReportedBy.FirstName)
	assert.Equal(t, "+234", got.ReportedBy.Phone)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "+1", got.AssignedTo.Phone)
	require.NotNil(t, got.AssignedBy)
	assert.Equal(t, models.UserRef{ID: gone.Hex()}, *got.AssignedBy)
	assert.Equal(t, reporter.ID.Hex(), got.Comments[0].User)

	// Defaults apply to fields a legacy document may lack.
	assert.Equal(t, models.PriorityMedium, got.Priority)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.DefaultUrgency, got.UrgencyLevel)
	assert.NotNil(t, got.Images)
	assert.NotNil(t, got.AdminNotes)
}

func TestUserDocModel(t *testing.T) {
	d := &userDoc{ID: primitive.NewObjectID(), Email: "a@b.c", Role: "admin", IsActive: true, Permissions: []string{"system_settings"}}
	u := d.model()
	assert.Equal(t, d.ID.Hex(), u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.HasPermission(models.PermSystemSettings))
	assert.Nil(t, u.LastLogin)
	assert.Empty(t, d.ref(false).Phone)
}

func TestObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, ok := objectID(oid.Hex())
	assert.True(t, ok)
	assert.Equal(t, oid, got)

	_, ok = objectID("nope")
	assert.False(t, ok)
}

func TestReportFilter(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reporter := primitive.NewObjectID()
	f := reportFilter(repository.ReportFilter{
		Status:     models.StatusPending,
		Type:       models.TypeFlood,
		ReportedBy: reporter.Hex(),
		DateFrom:   &from,
		Search:     "a.b",
	})

	assert.Equal(t, "PENDING", f["status"])
	assert.Equal(t, "FLOOD", f["type"])
	assert.Equal(t, reporter, f["reportedBy"])
	assert.Equal(t, bson.M{"$gte": from}, f["createdAt"])
	assert.NotContains(t, f, "priority")

	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.M{"title": primitive.Regex{Pattern: `a\.b`, Options: "i"}}, or[0])
}
