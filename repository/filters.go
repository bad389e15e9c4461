package repository

import (
	"time"

	"hydro360/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page normalizes a 1-based page number and page size.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into its valid range.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ReportFilter represents filters and pagination for report listings.
// A zero Page means "everything".
type ReportFilter struct {
	Status     models.ReportStatus
	Priority   models.Priority
	Type       models.ReportType
	AssignedTo string
	ReportedBy string
	DateFrom   *time.Time // inclusive lower bound on created_at
	DateTo     *time.Time // inclusive upper bound on created_at
	Search     string     // case-insensitive substring of title or description
	Page       Page
}

// Paged reports whether the listing is limited to one page.
func (f ReportFilter) Paged() bool {
	return f.Page.Size > 0
}

// UserFilter represents filters and pagination for user listings.
type UserFilter struct {
	Role     models.Role
	IsActive *bool
	Search   string // case-insensitive substring of first name, last name or email
	Page     Page
}

// UserUpdate carries the optional fields staff may change on an account,
// plus the profile fields an account holder may change on their own.
// Nil fields are left untouched.
type UserUpdate struct {
	Role        *models.Role
	IsActive    *bool
	Permissions *[]models.Permission
	Department  *string

	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
	Avatar    *string

	// PasswordHash replaces the stored hash and invalidates any pending reset token.
	PasswordHash *string
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.Role == nil && u.IsActive == nil && u.Permissions == nil && u.Department == nil &&
		u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.Address == nil && u.Avatar == nil &&
		u.PasswordHash == nil
}

// ReportUpdate carries the optional fields of a report change. Nil fields are
// left untouched; a non-nil Note is appended to the admin notes.
type ReportUpdate struct {
	Title                   *string
	Description             *string
	Type                    *models.ReportType
	Priority                *models.Priority
	Location                *models.Location
	Status                  *models.ReportStatus
	UrgencyLevel            *int
	AffectedArea            *models.AffectedArea
	EstimatedResolutionTime *time.Time
	ActualResolutionTime    *time.Time
	CostEstimate            *float64
	ActualCost              *float64
	AssignedTo              *string
	AssignedBy              *string
	Note                    *models.AdminNote
}

// Bounds is a latitude/longitude bounding box, inclusive on every edge.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}
