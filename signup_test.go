package signup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		t.Run(string(f), func(t *testing.T) {
			got, err := ParseField(string(f))
			require.NoError(t, err)
			assert.Equal(t, f, got)
		})
	}
}

func TestFieldLabels(t *testing.T) {
	assert.Equal(t, "Username", Username.Label())
	assert.Equal(t, "Email", Email.Label())
	assert.Equal(t, "Password", Password.Label())
	assert.Equal(t, "Password Repeat", PasswordRepeat.Label())

	assert.False(t, Username.Secret())
	assert.False(t, Email.Secret())
	assert.True(t, Password.Secret())
	assert.True(t, PasswordRepeat.Secret())
}

func TestValuesWithChangesOneField(t *testing.T) {
	base := Values{Username: "u", Email: "e", Password: "p", PasswordRepeat: "r"}

	for _, f := range Fields {
		t.Run(string(f), func(t *testing.T) {
			next := base.With(f, "changed")
			for _, other := range Fields {
				if other == f {
					assert.Equal(t, "changed", next.Get(other))
				} else {
					assert.Equal(t, base.Get(other), next.Get(other))
				}
			}
		})
	}
}

func TestPasswordsAgree(t *testing.T) {
	tests := []struct {
		name     string
		password string
		repeat   string
		want     bool
	}{
		{"both empty", "", "", true},
		{"repeat empty", "Password", "", true},
		{"password empty", "", "Password", true},
		{"equal", "Password", "Password", true},
		{"different", "Password", "Passw0rd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Values{Password: tt.password, PasswordRepeat: tt.repeat}
			assert.Equal(t, tt.want, v.PasswordsAgree())
		})
	}
}

func TestPayloadOmitsPasswordRepeat(t *testing.T) {
	v := Values{Username: "User1", Email: "user1@mail.com", Password: "Password", PasswordRepeat: "Password"}

	body, err := json.Marshal(v.Payload())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, map[string]interface{}{
		"username": "User1",
		"email":    "user1@mail.com",
		"password": "Password",
	}, decoded)
}

func TestFieldErrorsKnown(t *testing.T) {
	errs := FieldErrors{"email": "Email cannot be null", "stack": "trace"}

	known := errs.Known()
	assert.Equal(t, FieldErrors{"email": "Email cannot be null"}, known)
	assert.Equal(t, "Email cannot be null", known.For(Email))
	assert.Empty(t, known.For(Username))
}

func TestFieldErrorsClone(t *testing.T) {
	var nilErrs FieldErrors
	clone := nilErrs.Clone()
	require.NotNil(t, clone)
	assert.Empty(t, clone)

	orig := FieldErrors{"username": "taken"}
	c := orig.Clone()
	c["username"] = "changed"
	assert.Equal(t, "taken", orig["username"])
}
