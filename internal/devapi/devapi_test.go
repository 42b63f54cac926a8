package devapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, signup.UsersPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func validationErrors(t *testing.T, out map[string]interface{}) map[string]interface{} {
	t.Helper()
	errs, ok := out["validationErrors"].(map[string]interface{})
	require.True(t, ok, "body has no validationErrors: %v", out)
	return errs
}

func TestSaveValidUser(t *testing.T) {
	s := New(nil)

	rec, out := post(t, s.Handler(), `{"username":"user1","email":"user1@mail.com","password":"P4ssword"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgUserSaved, out["message"])
	assert.Equal(t, 1, s.Count())
}

func TestNullFields(t *testing.T) {
	s := New(nil)

	rec, out := post(t, s, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := validationErrors(t, out)
	assert.Equal(t, MsgUsernameNull, errs["username"])
	assert.Equal(t, MsgEmailNull, errs["email"])
	assert.Equal(t, MsgPasswordNull, errs["password"])
	assert.Equal(t, 0, s.Count())
}

func TestFieldRules(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{"short username", `{"username":"usr","email":"a@b.com","password":"P4ssword"}`, "username", MsgUsernameSize},
		{"long username", `{"username":"` + strings.Repeat("a", 33) + `","email":"a@b.com","password":"P4ssword"}`, "username", MsgUsernameSize},
		{"bad email", `{"username":"user1","email":"mail.com","password":"P4ssword"}`, "email", MsgEmailInvalid},
		{"short password", `{"username":"user1","email":"a@b.com","password":"P4ss"}`, "password", MsgPasswordSize},
		{"all lowercase", `{"username":"user1","email":"a@b.com","password":"alllowercase"}`, "password", MsgPasswordFormat},
		{"no digit", `{"username":"user1","email":"a@b.com","password":"Password"}`, "password", MsgPasswordFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := post(t, New(nil), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errs := validationErrors(t, out)
			assert.Len(t, errs, 1)
			assert.Equal(t, tt.want, errs[tt.field])
		})
	}
}

func TestEmailInUse(t *testing.T) {
	s := New(nil)
	rec, _ := post(t, s, `{"username":"user1","email":"user1@mail.com","password":"P4ssword"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := post(t, s, `{"username":"user2","email":"USER1@mail.com","password":"P4ssword"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := validationErrors(t, out)
	assert.Equal(t, MsgEmailInUse, errs["email"])
	assert.NotContains(t, errs, "username")
	assert.Equal(t, 1, s.Count())
}

func TestUsernameInUse(t *testing.T) {
	s := New(nil)
	post(t, s, `{"username":"user1","email":"user1@mail.com","password":"P4ssword"}`)

	rec, out := post(t, s, `{"username":"user1","email":"other@mail.com","password":"P4ssword"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgUsernameInUse, validationErrors(t, out)["username"])
}

func TestMalformedBody(t *testing.T) {
	rec, out := post(t, New(nil), `{"username":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, out, "validationErrors")
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, signup.UsersPath, nil)
	rec := httptest.NewRecorder()
	New(nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestConcurrentClaimsSaveOnce(t *testing.T) {
	s := New(nil)
	h := s.Handler()
	body := []byte(`{"username":"user1","email":"user1@mail.com","password":"P4ssword"}`)

	var wg sync.WaitGroup
	var mu sync.Mutex
	codes := map[int]int{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, signup.UsersPath, bytes.NewReader(body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, codes[http.StatusOK])
	assert.Equal(t, 9, codes[http.StatusBadRequest])
	assert.Equal(t, 1, s.Count())
}

func TestClientAgainstDevAPI(t *testing.T) {
	srv := httptest.NewServer(New(nil).Handler())
	defer srv.Close()
	client := api.NewClient(srv.URL)
	ctx := context.Background()

	err := client.Register(ctx, signup.Payload{Username: "user1", Email: "user1@mail.com", Password: "P4ssword"})
	require.NoError(t, err)

	err = client.Register(ctx, signup.Payload{Username: "user2", Email: "user1@mail.com", Password: "P4ssword"})
	var vErr *api.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, signup.FieldErrors{"email": MsgEmailInUse}, vErr.Errors)
}
