package runtime

import (
	"github.com/livetemplate/signup"
)

// Phase is the submission state of a page. Each phase carries only the data
// that is meaningful while the page is in it.
type Phase interface {
	// Name is a short identifier used in logs.
	Name() string
	isPhase()
}

// Idle: the form is visible and editable.
type Idle struct {
	// Errors holds the field messages of the most recent failed attempt.
	Errors signup.FieldErrors
	// Failure is a form-wide message, set only by the reset failure policy.
	Failure string
}

// Submitting: a request is outstanding. The form stays visible with the
// submit button disabled; messages from the previous attempt stay on screen
// until this one resolves.
type Submitting struct {
	Errors signup.FieldErrors
}

// Succeeded is terminal. The form is gone and only the confirmation shows.
type Succeeded struct{}

func (Idle) Name() string       { return "idle" }
func (Submitting) Name() string { return "submitting" }
func (Succeeded) Name() string  { return "succeeded" }

func (Idle) isPhase()       {}
func (Submitting) isPhase() {}
func (Succeeded) isPhase()  {}

// Snapshot is an immutable view of a page's state at one revision.
type Snapshot struct {
	Values   signup.Values
	Phase    Phase
	Revision uint64
}

// APIProgress reports whether a submission is outstanding.
func (s Snapshot) APIProgress() bool {
	_, ok := s.Phase.(Submitting)
	return ok
}

// SignUpSuccess reports whether the users API accepted the sign-up.
func (s Snapshot) SignUpSuccess() bool {
	_, ok := s.Phase.(Succeeded)
	return ok
}

// SubmitEnabled applies the button rule: the passwords agree (or one is
// still empty) and no submission is in flight.
func (s Snapshot) SubmitEnabled() bool {
	if _, ok := s.Phase.(Idle); !ok {
		return false
	}
	return s.Values.PasswordsAgree()
}

// Errors returns the field messages currently on screen.
func (s Snapshot) Errors() signup.FieldErrors {
	switch p := s.Phase.(type) {
	case Idle:
		return p.Errors
	case Submitting:
		return p.Errors
	}
	return nil
}

// Help returns the message shown under one field.
func (s Snapshot) Help(f signup.Field) string {
	return s.Errors().For(f)
}

// Failure returns the form-wide failure message, if any.
func (s Snapshot) Failure() string {
	if p, ok := s.Phase.(Idle); ok {
		return p.Failure
	}
	return ""
}

// Redacted masks the password values so the snapshot can be logged.
func (s Snapshot) Redacted() Snapshot {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "********"
	}
	s.Values.Password = mask(s.Values.Password)
	s.Values.PasswordRepeat = mask(s.Values.PasswordRepeat)
	return s
}
