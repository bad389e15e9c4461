package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hydro360/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, password_hash, phone, address, role, is_active, avatar, department, permissions, last_login, created_at, updated_at`

// Create inserts a new account. The email is lower-cased, the role defaults
// to 'user' and new accounts are always active.
// Returns ErrDuplicateEmail when the email is taken.
func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, errors.New("user is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out := *u
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Email = normalizeEmail(out.Email)
	if out.Role == "" {
		out.Role = models.RoleUser
	}
	out.IsActive = true
	now := time.Now().UTC().Truncate(time.Millisecond)
	out.CreatedAt, out.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, first_name, last_name, email, password_hash, phone, address, role, is_active, avatar, department, permissions, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,1,?,?,?,?,?)`,
		out.ID, out.FirstName, out.LastName, out.Email, out.PasswordHash, out.Phone, out.Address, string(out.Role),
		out.Avatar, out.Department, encodePermissions(out.Permissions), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	if out.Permissions == nil {
		out.Permissions = []models.Permission{}
	}
	return &out, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetByEmail looks an account up by email, ignoring case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
}

// List returns one page of accounts matching f, newest first, and the total match count.
func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]models.User, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}
	if f.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolInt(*f.IsActive))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		where = append(where, `(first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update applies the non-nil fields of upd and returns the updated account,
// or (nil, nil) when the id is unknown.
func (r *UserRepository) Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	if upd.IsActive != nil {
		add("is_active", boolInt(*upd.IsActive))
	}
	if upd.Permissions != nil {
		add("permissions", encodePermissions(*upd.Permissions))
	}
	if upd.Department != nil {
		add("department", *upd.Department)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.Avatar != nil {
		add("avatar", *upd.Avatar)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
		set = append(set, "reset_token_hash = NULL", "reset_expires_at = NULL")
	}
	add("updated_at", formatTime(time.Now()))

	res, err := r.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(set, ", ")+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdatePassword stores a new password hash and invalidates any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ? WHERE id = ?`,
		hash, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, formatTime(at), id)
	return err
}

// SetResetToken records the hash of a password reset token, replacing any earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE users SET reset_token_hash = ?, reset_expires_at = ? WHERE id = ?`, tokenHash, formatTime(expires), id)
	return err
}

// ConsumeResetToken atomically clears an unexpired reset token and returns its owner.
// A token can therefore be redeemed once.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var id string
	err := r.db.QueryRowContext(ctx, `UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL
WHERE reset_token_hash = ? AND reset_expires_at >= ?
RETURNING id`, tokenHash, formatTime(now)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes an account and reports whether it existed. Reports it
// submitted go with it; assignments to it are cleared.
func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role, perms, createdAt, updatedAt string
	var active int
	var lastLogin sql.NullString
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone, &u.Address,
		&role, &active, &u.Avatar, &u.Department, &perms, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	u.IsActive = active != 0
	u.Permissions = decodePermissions(perms)
	u.LastLogin = timePtr(lastLogin)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// encodePermissions stores grants comma-delimited, like any other small set column.
func encodePermissions(perms []models.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

func decodePermissions(s string) []models.Permission {
	out := []models.Permission{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, models.Permission(p))
		}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
