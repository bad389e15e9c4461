package models

import "time"

// ReportType classifies the water issue.
type ReportType string

const (
	TypeLeak          ReportType = "LEAK"
	TypeContamination ReportType = "CONTAMINATION"
	TypeOutage        ReportType = "OUTAGE"
	TypeFlood         ReportType = "FLOOD"
	TypePressure      ReportType = "PRESSURE"
	TypeMaintenance   ReportType = "MAINTENANCE"
	TypeEmergency     ReportType = "EMERGENCY"
	TypeOther         ReportType = "OTHER"
)

// ReportTypes lists every report type.
var ReportTypes = []ReportType{
	TypeLeak, TypeContamination, TypeOutage, TypeFlood,
	TypePressure, TypeMaintenance, TypeEmergency, TypeOther,
}

// Priority is the triage priority of a report.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ReportStatus represents the current progress of a report.
type ReportStatus string

const (
	StatusPending       ReportStatus = "PENDING"
	StatusInvestigating ReportStatus = "INVESTIGATING"
	StatusInProgress    ReportStatus = "IN_PROGRESS"
	StatusResolved      ReportStatus = "RESOLVED"
	StatusClosed        ReportStatus = "CLOSED"
	StatusRejected      ReportStatus = "REJECTED"
)

var Statuses = []ReportStatus{
	StatusPending, StatusInvestigating, StatusInProgress,
	StatusResolved, StatusClosed, StatusRejected,
}

// ClosedStatuses are the statuses that take a report off the open queue.
var ClosedStatuses = []ReportStatus{StatusResolved, StatusClosed}

const (
	DefaultUrgency = 5
	MinUrgency     = 1
	MaxUrgency     = 10
)

func ValidReportType(s string) bool {
	for _, t := range ReportTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

func ValidPriority(s string) bool {
	for _, p := range Priorities {
		if string(p) == s {
			return true
		}
	}
	return false
}

func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether status still needs attention.
func IsOpen(status ReportStatus) bool {
	return status != StatusResolved && status != StatusClosed
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AffectedArea estimates the footprint of an issue.
type AffectedArea struct {
	Radius          float64 `json:"radius"`
	EstimatedPeople int     `json:"estimatedPeople"`
}

// UserRef is a populated user reference embedded in report payloads.
type UserRef struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// AdminNote is a timestamped staff annotation.
type AdminNote struct {
	Note    string    `json:"note"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// Comment is a free-text remark left on a report by any authenticated user.
type Comment struct {
	Text      string    `json:"text"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is a citizen-submitted water issue.
// ReportedBy is always set; AssignedTo and AssignedBy are nil until triage.
type Report struct {
	ID                      string       `json:"_id"`
	Title                   string       `json:"title"`
	Description             string       `json:"description"`
	Type                    ReportType   `json:"type"`
	Priority                Priority     `json:"priority"`
	Location                Location     `json:"location"`
	Status                  ReportStatus `json:"status"`
	UrgencyLevel            int          `json:"urgencyLevel"`
	EstimatedResolutionTime *time.Time   `json:"estimatedResolutionTime,omitempty"`
	ActualResolutionTime    *time.Time   `json:"actualResolutionTime,omitempty"`
	CostEstimate            float64      `json:"costEstimate"`
	ActualCost              float64      `json:"actualCost"`
	AffectedArea            AffectedArea `json:"affectedArea"`
	Images                  []string     `json:"images"`
	ReportedBy              UserRef      `json:"reportedBy"`
	AssignedTo              *UserRef     `json:"assignedTo,omitempty"`
	AssignedBy              *UserRef     `json:"assignedBy,omitempty"`
	AdminNotes              []AdminNote  `json:"adminNotes"`
	Comments                []Comment    `json:"comments"`
	CreatedAt               time.Time    `json:"createdAt"`
	UpdatedAt               time.Time    `json:"updatedAt"`

	// DistanceKm is only filled by proximity queries.
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ApplyDefaults fills the zero-valued fields that carry schema defaults.
func (r *Report) ApplyDefaults() {
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.UrgencyLevel == 0 {
		r.UrgencyLevel = DefaultUrgency
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.AdminNotes == nil {
		r.AdminNotes = []AdminNote{}
	}
	if r.Comments == nil {
		r.Comments = []Comment{}
	}
}

// HideContactPhones strips reporter and staff phone numbers. Only the
// emergency alert feed exposes them.
func (r *Report) HideContactPhones() {
	r.ReportedBy.Phone = ""
	if r.AssignedTo != nil {
		r.AssignedTo.Phone = ""
	}
	if r.AssignedBy != nil {
		r.AssignedBy.Phone = ""
	}
}

// IsReportedBy reports whether userID submitted the report.
func (r *Report) IsReportedBy(userID string) bool {
	return userID != "" && r.ReportedBy.ID == userID
}
