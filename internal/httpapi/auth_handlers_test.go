package httpapi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"hydro360/internal/auth"
	"hydro360/internal/testutil"
	"hydro360/models"
	"hydro360/repository"
)

func registerBody(email string) map[string]string {
	return map[string]string{
		"firstName": "Ada",
		"lastName":  "Obi",
		"email":     email,
		"password":  "Str0ngPass",
		"phone":     "+2348012345678",
		"address":   "12 Marina Road",
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/api/auth/register", "", registerBody("Ada@Example.com"))
	expectStatus(t, rec, http.StatusCreated)
	resp := decode[authResponse](t, rec)
	if resp.Token == "" || resp.User == nil {
		t.Fatalf("missing token or user: %s", rec.Body.String())
	}
	if resp.User.Role != models.RoleUser || !resp.User.IsActive || resp.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	p, err := auth.ParseToken(resp.Token, testSecret)
	if err != nil || p.UserID != resp.User.ID {
		t.Fatalf("token does not identify the new user: %v %+v", err, p)
	}

	expectMessage(t, env.do("POST", "/api/auth/register", "", registerBody("ada@example.com")),
		http.StatusBadRequest, "User already exists")
}

func TestRegister_RoleCannotBeChosen(t *testing.T) {
	env := newTestEnv(t)
	body := registerBody("sneaky@example.com")
	body["role"] = "superadmin"

	rec := env.do("POST", "/api/auth/register", "", body)
	expectStatus(t, rec, http.StatusCreated)
	if u := decode[authResponse](t, rec).User; u.Role != models.RoleUser {
		t.Fatalf("role = %s", u.Role)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]func(map[string]string){
		"weak password": func(b map[string]string) { b["password"] = "password" },
		"bad email":     func(b map[string]string) { b["email"] = "not-an-email" },
		"bad phone":     func(b map[string]string) { b["phone"] = "12-34" },
		"missing name":  func(b map[string]string) { delete(b, "firstName") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			b := registerBody("valid@example.com")
			mutate(b)
			rec := env.do("POST", "/api/auth/register", "", b)
			expectStatus(t, rec, http.StatusBadRequest)
			if len(decode[validationResponse](t, rec).Errors) == 0 {
				t.Fatalf("expected field errors: %s", rec.Body.String())
			}
		})
	}
	expectMessage(t, env.do("POST", "/api/auth/register", "", "{"), http.StatusBadRequest, "Invalid request body")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seed("lola", models.RoleAdmin)

	rec := env.do("POST", "/api/auth/login", "", map[string]string{"email": "LOLA@example.com", "password": testutil.DefaultPassword})
	expectStatus(t, rec, http.StatusOK)
	resp := decode[authResponse](t, rec)
	if resp.User.ID != u.ID || resp.User.LastLogin == nil {
		t.Fatalf("unexpected login user: %+v", resp.User)
	}
	stored, _ := env.store.Users.GetByID(context.Background(), u.ID)
	if stored.LastLogin == nil {
		t.Fatalf("lastLogin not recorded")
	}

	expectMessage(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "lola@example.com", "password": "Wrong1234"}),
		http.StatusUnauthorized, "Invalid credentials")
	expectMessage(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "Wrong1234"}),
		http.StatusUnauthorized, "Invalid credentials")

	off := false
	if _, err := env.store.Users.Update(context.Background(), u.ID, repository.UserUpdate{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	expectMessage(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "lola@example.com", "password": testutil.DefaultPassword}),
		http.StatusForbidden, "Account is deactivated")
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t, withRateLimit(2))
	body := map[string]string{"email": "nobody@example.com", "password": "Wrong1234"}

	expectStatus(t, env.do("POST", "/api/auth/login", "", body), http.StatusUnauthorized)
	expectStatus(t, env.do("POST", "/api/auth/login", "", body), http.StatusUnauthorized)
	expectStatus(t, env.do("POST", "/api/auth/login", "", body), http.StatusTooManyRequests)
}

func TestVerifyAndMe(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.seed("vic", models.RoleUser)

	rec := env.do("POST", "/api/auth/verify", "", map[string]string{"token": token})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.User](t, rec); got.ID != u.ID {
		t.Fatalf("verify returned %+v", got)
	}
	expectMessage(t, env.do("POST", "/api/auth/verify", "", map[string]string{"token": "garbage"}), http.StatusUnauthorized, "Invalid token")

	rec = env.do("GET", "/api/auth/me", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.User](t, rec); got.Email != "vic@example.com" {
		t.Fatalf("me returned %+v", got)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seed("pat", models.RoleUser)

	rec := env.do("PATCH", "/api/auth/profile", token, map[string]string{"firstName": " Patricia ", "address": "9 New Street"})
	expectStatus(t, rec, http.StatusOK)
	got := decode[models.User](t, rec)
	if got.FirstName != "Patricia" || got.Address != "9 New Street" || got.LastName != "Test" {
		t.Fatalf("profile not updated: %+v", got)
	}

	expectMessage(t, env.do("PATCH", "/api/auth/profile", token, map[string]string{"currentPassword": "nope", "newPassword": "N3wPassword"}),
		http.StatusBadRequest, "Current password is incorrect")

	// bcrypt rejects passwords over 72 bytes; the name change must not land either.
	tooLong := "Aa1" + strings.Repeat("x", 80)
	rec = env.do("PATCH", "/api/auth/profile", token, map[string]string{
		"firstName": "Changed", "currentPassword": testutil.DefaultPassword, "newPassword": tooLong,
	})
	expectStatus(t, rec, http.StatusInternalServerError)
	if me := decode[models.User](t, env.do("GET", "/api/auth/me", token, nil)); me.FirstName != "Patricia" {
		t.Fatalf("failed password change still updated the profile: %+v", me)
	}
	expectStatus(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "pat@example.com", "password": testutil.DefaultPassword}), http.StatusOK)

	rec = env.do("PATCH", "/api/auth/profile", token, map[string]string{
		"lastName": "Okoro", "currentPassword": testutil.DefaultPassword, "newPassword": "N3wPassword",
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.User](t, rec); got.LastName != "Okoro" {
		t.Fatalf("profile not updated with password: %+v", got)
	}
	expectStatus(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "pat@example.com", "password": "N3wPassword"}), http.StatusOK)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.seed("rita", models.RoleUser)

	expectMessage(t, env.do("POST", "/api/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"}),
		http.StatusOK, forgotPasswordMessage)
	if _, ok := env.notifier.last(); ok {
		t.Fatalf("no token should be issued for unknown email")
	}

	expectMessage(t, env.do("POST", "/api/auth/forgot-password", "", map[string]string{"email": "rita@example.com"}),
		http.StatusOK, forgotPasswordMessage)
	sent, ok := env.notifier.last()
	if !ok || sent.userID != u.ID || sent.token == "" {
		t.Fatalf("reset token not delivered: %+v", sent)
	}

	expectMessage(t, env.do("POST", "/api/auth/reset-password", "", map[string]string{"token": sent.token, "newPassword": "weak"}),
		http.StatusBadRequest, "newPassword must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number")

	// A password bcrypt cannot hash fails before the token is spent.
	tooLong := map[string]string{"token": sent.token, "newPassword": "Aa1" + strings.Repeat("x", 80)}
	expectStatus(t, env.do("POST", "/api/auth/reset-password", "", tooLong), http.StatusInternalServerError)

	reset := map[string]string{"token": sent.token, "newPassword": "Fr3shPassword"}
	expectMessage(t, env.do("POST", "/api/auth/reset-password", "", reset), http.StatusOK, "Password has been reset")
	expectMessage(t, env.do("POST", "/api/auth/reset-password", "", reset), http.StatusBadRequest, "Invalid or expired reset token")

	expectStatus(t, env.do("POST", "/api/auth/login", "", map[string]string{"email": "rita@example.com", "password": "Fr3shPassword"}), http.StatusOK)
}
