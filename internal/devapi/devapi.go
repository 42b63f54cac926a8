// Package devapi is an in-memory stand-in for the users API. It accepts the
// same payload, answers 200 or 400 with a validationErrors body, and
// remembers taken usernames and emails until the process exits.
package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/livetemplate/signup"
	"github.com/sirupsen/logrus"
)

// Messages returned in validationErrors.
const (
	MsgUsernameNull   = "Username cannot be null"
	MsgUsernameSize   = "Must have min 4 and max 32 characters"
	MsgUsernameInUse  = "Username in use"
	MsgEmailNull      = "Email cannot be null"
	MsgEmailInvalid   = "E-mail is not valid"
	MsgEmailInUse     = "E-mail in use"
	MsgPasswordNull   = "Password cannot be null"
	MsgPasswordSize   = "Must have min 6 and max 255 characters"
	MsgPasswordFormat = "Password must have at least 1 uppercase, 1 lowercase letter and 1 number"
	MsgUserSaved      = "User saved"
)

type userRequest struct {
	Username string `json:"username" validate:"required,min=4,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=255,password"`
}

var messages = map[string]map[string]string{
	"username": {"required": MsgUsernameNull, "min": MsgUsernameSize, "max": MsgUsernameSize},
	"email":    {"required": MsgEmailNull, "email": MsgEmailInvalid},
	"password": {"required": MsgPasswordNull, "min": MsgPasswordSize, "max": MsgPasswordSize, "password": MsgPasswordFormat},
}

type validationResponse struct {
	Message          string             `json:"message"`
	ValidationErrors signup.FieldErrors `json:"validationErrors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Server handles POST /api/1.0/users.
type Server struct {
	validate *validator.Validate
	log      *logrus.Entry

	mu        sync.Mutex
	usernames map[string]struct{}
	emails    map[string]struct{}
}

// New creates an empty users API.
func New(log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "devapi")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag, which cannot happen here.
	_ = v.RegisterValidation("password", strongPassword)

	return &Server{
		validate:  v,
		log:       log,
		usernames: make(map[string]struct{}),
		emails:    make(map[string]struct{}),
	}
}

func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Handler returns a mux with the users endpoint mounted at its API path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(signup.UsersPath, s)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "method not allowed"})
		return
	}

	var req userRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		s.log.WithError(err).Debug("malformed sign-up body")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "malformed request body"})
		return
	}

	errs := s.check(req)
	if len(errs) == 0 {
		errs = s.claim(req)
	}
	if len(errs) > 0 {
		s.log.WithField("errors", errs).Info("sign-up rejected")
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Message:          "Validation Failure",
			ValidationErrors: errs,
		})
		return
	}

	s.log.WithField("username", req.Username).Info("user saved")
	writeJSON(w, http.StatusOK, messageResponse{Message: MsgUserSaved})
}

// check runs the struct rules and maps each failure to its message.
func (s *Server) check(req userRequest) signup.FieldErrors {
	errs := signup.FieldErrors{}
	err := s.validate.Struct(req)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.log.WithError(err).Error("validator failed")
		errs["username"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()][fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		errs[fe.Field()] = msg
	}
	return errs
}

// claim reserves the username and email, or reports which are taken.
func (s *Server) claim(req userRequest) signup.FieldErrors {
	user := strings.ToLower(req.Username)
	email := strings.ToLower(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := signup.FieldErrors{}
	if _, taken := s.usernames[user]; taken {
		errs["username"] = MsgUsernameInUse
	}
	if _, taken := s.emails[email]; taken {
		errs["email"] = MsgEmailInUse
	}
	if len(errs) > 0 {
		return errs
	}
	s.usernames[user] = struct{}{}
	s.emails[email] = struct{}{}
	return errs
}

// Count returns how many users have been saved.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.usernames)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
