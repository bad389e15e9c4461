package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/metadata"

	"hydro360/internal/db"
	"hydro360/models"
	"hydro360/repository"
)

// DefaultPassword is the plaintext password of users made by SeedUser.
const DefaultPassword = "Passw0rd!"

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The DB is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache so that every pooled connection sees the same database.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// OpenStore is OpenInMemoryDB wired into the SQLite repositories.
func OpenStore(t *testing.T, name string) *repository.Store {
	t.Helper()
	return repository.NewSQLiteStore(OpenInMemoryDB(t, name))
}

// SeedUser creates an active account with DefaultPassword. The email is derived from first.
func SeedUser(t *testing.T, users repository.UserRepositoryI, first string, role models.Role, grants ...models.Permission) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := users.Create(context.Background(), &models.User{
		FirstName:    first,
		LastName:     "Test",
		Email:        first + "@example.com",
		PasswordHash: string(hash),
		Phone:        "+2348000000000",
		Address:      "1 Test Street",
		Role:         role,
		Permissions:  grants,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", first, err)
	}
	return u
}

// GenerateJWTHS256 returns a signed JWT string with the claims used by the app.
func GenerateJWTHS256(t *testing.T, secret, userID string, role models.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
