package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Phone    string `json:"phone" validate:"required,phone"`
}

type reportInput struct {
	Title    string   `json:"title" validate:"required,min=5,max=100"`
	Type     string   `json:"type" validate:"required,reporttype"`
	Priority string   `json:"priority" validate:"omitempty,priority"`
	Urgency  int      `json:"urgencyLevel" validate:"omitempty,min=1,max=10"`
	Perms    []string `json:"permissions" validate:"dive,permission"`
}

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd":   true,
		"password1":  false,
		"PASSWORD1":  false,
		"Password":   false,
		"Pa1":        false,
		"Ünïcode9xY": true,
	}
	for in, want := range cases {
		assert.Equal(t, want, StrongPassword(in), in)
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+2348012345678"))
	assert.True(t, ValidPhone("08012345678"))
	assert.False(t, ValidPhone("123"))
	assert.False(t, ValidPhone("+234 801 234"))
	assert.False(t, ValidPhone("1234567890123456"))
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	err := ValidateStruct(registerInput{Email: "nope", Password: "weak", Phone: "12"})
	require.NotNil(t, err)
	require.Len(t, err.Errors(), 3)
	assert.Equal(t, "email", err.Errors()[0].Field)
	assert.Equal(t, "email must be a valid email address", err.First())
	assert.Contains(t, err.Error(), "password must be at least 8 characters")
	assert.Contains(t, err.Error(), "phone must be a valid phone number")

	assert.Nil(t, ValidateStruct(registerInput{Email: "a@b.co", Password: "Passw0rd", Phone: "+2348012345678"}))
}

func TestValidateStruct_DomainEnums(t *testing.T) {
	err := ValidateStruct(reportInput{Title: "Leak", Type: "VOLCANO", Priority: "URGENT", Urgency: 11, Perms: []string{"fly"}})
	require.NotNil(t, err)
	msg := err.Error()
	for _, want := range []string{
		"title must be at least 5 characters",
		"type is not a valid report type",
		"priority is not a valid priority",
		"urgencyLevel must be at most 10",
		"contains an unknown permission",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %q", want, msg)
	}

	assert.Nil(t, ValidateStruct(reportInput{Title: "Burst main", Type: "LEAK", Perms: []string{"view_reports"}}))
}
