// Package signup holds the domain types shared by the sign-up page: the
// form fields, the values a user types into them, and the payload sent to
// the users API.
package signup

import (
	"github.com/samber/lo"
)

// ConfirmationText replaces the form once the users API accepts a sign-up.
const ConfirmationText = "Please check your email to activate your account."

// UsersPath is the registration endpoint, relative to the API base URL.
const UsersPath = "/api/1.0/users"

// Field identifies one input on the sign-up form.
type Field string

const (
	Username       Field = "username"
	Email          Field = "email"
	Password       Field = "password"
	PasswordRepeat Field = "passwordRepeat"
)

// Fields lists the form inputs in display order.
var Fields = []Field{Username, Email, Password, PasswordRepeat}

var labels = map[Field]string{
	Username:       "Username",
	Email:          "Email",
	Password:       "Password",
	PasswordRepeat: "Password Repeat",
}

// ParseField maps an input id back to its Field.
func ParseField(id string) (Field, error) {
	f := Field(id)
	if _, ok := labels[f]; !ok {
		return "", &UnknownFieldError{ID: id}
	}
	return f, nil
}

// Label returns the human readable label shown next to the input.
func (f Field) Label() string {
	return labels[f]
}

// Secret reports whether the input masks what is typed.
func (f Field) Secret() bool {
	return f == Password || f == PasswordRepeat
}

// Values are the four strings the user has typed so far.
type Values struct {
	Username       string
	Email          string
	Password       string
	PasswordRepeat string
}

// Get returns the value of one field.
func (v Values) Get(f Field) string {
	switch f {
	case Username:
		return v.Username
	case Email:
		return v.Email
	case Password:
		return v.Password
	case PasswordRepeat:
		return v.PasswordRepeat
	}
	return ""
}

// With returns a copy of v with one field replaced.
func (v Values) With(f Field, value string) Values {
	switch f {
	case Username:
		v.Username = value
	case Email:
		v.Email = value
	case Password:
		v.Password = value
	case PasswordRepeat:
		v.PasswordRepeat = value
	}
	return v
}

// PasswordsAgree is true when either password input is still empty or both
// hold the same text.
func (v Values) PasswordsAgree() bool {
	return v.Password == "" || v.PasswordRepeat == "" || v.Password == v.PasswordRepeat
}

// Payload builds the request body. The repeated password never leaves the page.
func (v Values) Payload() Payload {
	return Payload{
		Username: v.Username,
		Email:    v.Email,
		Password: v.Password,
	}
}

// Payload is the JSON body POSTed to the users API.
type Payload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FieldErrors maps a field id to the message the server reported for it.
type FieldErrors map[string]string

// For returns the message for f, or "" when the field was accepted.
func (e FieldErrors) For(f Field) string {
	return e[string(f)]
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (e FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Known drops keys that do not name a form field.
func (e FieldErrors) Known() FieldErrors {
	keys := lo.Map(Fields, func(f Field, _ int) string { return string(f) })
	return FieldErrors(lo.PickByKeys(map[string]string(e), keys))
}
