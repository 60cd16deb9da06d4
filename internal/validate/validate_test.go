package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Username string `json:"username" validate:"min=3"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"mobile"`
	Password string `json:"password" validate:"min=6"`
	Gender   string `json:"gender" validate:"gender"`
	DOB      string `json:"dob" validate:"isodate"`
	Address  string `json:"address" validate:"min=10"`
}

func validProfile() profile {
	return profile{
		Username: "abc",
		Email:    "a@b.com",
		Phone:    "+15551234567",
		Password: "secret1",
		Gender:   "Male",
		DOB:      "1990-01-01",
		Address:  "123 Main Street",
	}
}

func TestStruct_Valid(t *testing.T) {
	require.NoError(t, Struct(validProfile()))
}

func TestStruct_ListsEveryViolation(t *testing.T) {
	p := profile{Username: "ab", Email: "nope", Phone: "12", Password: "123", Gender: "robot", DOB: "yesterday", Address: "short"}

	err := Struct(p)
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	for _, field := range []string{"username", "email", "phone", "password", "gender", "dob", "address"} {
		assert.True(t, verrs.Has(field), "missing %s", field)
	}
}

func TestStruct_DoesNotEchoPasswords(t *testing.T) {
	p := validProfile()
	p.Password = "123"

	var verrs Errors
	require.True(t, errors.As(Struct(p), &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "password", verrs[0].Param)
	assert.Nil(t, verrs[0].Value)
}

func TestGenderIsCaseInsensitive(t *testing.T) {
	for _, g := range []string{"male", "FEMALE", "Other"} {
		p := validProfile()
		p.Gender = g
		assert.NoError(t, Struct(p), g)
	}
}

func TestIsMobilePhone(t *testing.T) {
	assert.True(t, IsMobilePhone("+15551234567"))
	assert.True(t, IsMobilePhone("555-123-4567"))
	assert.True(t, IsMobilePhone("(555) 123 4567"))
	assert.False(t, IsMobilePhone("phone"))
	assert.False(t, IsMobilePhone("+0123"))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("1990-01-01")
	require.NoError(t, err)
	assert.Equal(t, 1990, d.Year())

	_, err = ParseDate("1990-01-01T10:00:00Z")
	assert.NoError(t, err)

	_, err = ParseDate("01/01/1990")
	assert.Error(t, err)
}
