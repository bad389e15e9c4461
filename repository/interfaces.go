package repository

import (
	"context"
	"errors"
	"time"

	"hydro360/models"
)

// ErrDuplicateEmail is returned when an account with the same email already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepositoryI defines operations on User entities.
// Lookups return (nil, nil) when nothing matches.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, int, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReportRepositoryI defines operations on Report entities.
type ReportRepositoryI interface {
	Create(ctx context.Context, r *models.Report) (*models.Report, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, f ReportFilter) ([]models.Report, int, error)
	ListInBounds(ctx context.Context, b Bounds) ([]models.Report, error)
	Update(ctx context.Context, id string, upd ReportUpdate) (*models.Report, error)
	AddComment(ctx context.Context, id string, c models.Comment) (*models.Report, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListCriticalOpen(ctx context.Context, limit int) ([]models.Report, error)
}

// AnalyticsRepositoryI defines the dashboard and analytics aggregations.
type AnalyticsRepositoryI interface {
	DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error)
	ReportsTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error)
	Performance(ctx context.Context) (*models.Performance, error)
	ReporterSummary(ctx context.Context, userID string) (*models.ReportSummary, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Users     UserRepositoryI
	Reports   ReportRepositoryI
	Analytics AnalyticsRepositoryI
	Ping      func(ctx context.Context) error
	Close     func() error
}
