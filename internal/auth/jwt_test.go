package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"hydro360/internal/testutil"
	"hydro360/models"
)

const testSecret = "test-secret"

func TestIssueAndParseBearer(t *testing.T) {
	u := &models.User{ID: "u-1", Role: models.RoleAdmin}
	tok, err := IssueToken(testSecret, u, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	p, err := ParseBearer("Bearer "+tok, testSecret)
	if err != nil {
		t.Fatalf("ParseBearer: %v", err)
	}
	if p.UserID != "u-1" || p.Role != models.RoleAdmin {
		t.Fatalf("principal mismatch: %+v", p)
	}
	// scheme is case-insensitive
	if _, err := ParseBearer("bearer "+tok, testSecret); err != nil {
		t.Fatalf("lowercase scheme: %v", err)
	}
}

func TestParseBearer_Rejects(t *testing.T) {
	u := &models.User{ID: "u-1", Role: models.RoleUser}
	expired, _ := IssueToken(testSecret, u, time.Hour, time.Now().Add(-2*time.Hour))
	valid, _ := IssueToken(testSecret, u, time.Hour, time.Now())

	cases := []struct {
		name   string
		header string
		secret string
		want   error
	}{
		{"missing", "", testSecret, ErrMissingToken},
		{"wrong scheme", "Basic " + valid, testSecret, ErrInvalidToken},
		{"garbage", "Bearer not-a-jwt", testSecret, ErrInvalidToken},
		{"expired", "Bearer " + expired, testSecret, ErrInvalidToken},
		{"wrong secret", "Bearer " + valid, "other", ErrInvalidToken},
	}
	for _, c := range cases {
		if _, err := ParseBearer(c.header, c.secret); !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestParseFromMD_ValidBearer(t *testing.T) {
	tok := testutil.GenerateJWTHS256(t, testSecret, "alice-id", models.RoleUser)
	ctx := testutil.CtxWithBearer(context.Background(), tok)
	p, err := ParseFromMD(ctx, testSecret)
	if err != nil {
		t.Fatalf("ParseFromMD: %v", err)
	}
	if p.UserID != "alice-id" || p.Role != models.RoleUser {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestParseFromMD_MissingHeader(t *testing.T) {
	if _, err := ParseFromMD(context.Background(), testSecret); err == nil {
		t.Fatalf("expected error for missing metadata")
	}
}

func TestParseJWT_ClaimsValidation(t *testing.T) {
	// Missing subject -> invalid
	tok := testutil.GenerateJWTHS256(t, testSecret, "", models.RoleUser)
	if _, err := parseJWT(tok, testSecret); err == nil {
		t.Fatalf("expected invalid claims error")
	}
	if _, err := IssueToken("", &models.User{ID: "x"}, time.Hour, time.Now()); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Passw0rd", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "Passw0rd") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "passw0rd") || CheckPassword("", "Passw0rd") {
		t.Fatalf("expected mismatch")
	}
}

func TestResetToken(t *testing.T) {
	tok, hash, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if len(tok) != 64 || hash == tok || HashResetToken(tok) != hash {
		t.Fatalf("unexpected token/hash: %s %s", tok, hash)
	}
	other, _, _ := NewResetToken()
	if other == tok {
		t.Fatalf("tokens should be random")
	}
	if HashResetToken("") != "" {
		t.Fatalf("empty token must not hash to a lookup key")
	}
}
