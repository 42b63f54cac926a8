package view

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idle(values signup.Values, errs signup.FieldErrors) runtime.Snapshot {
	return runtime.Snapshot{Values: values, Phase: runtime.Idle{Errors: errs}}
}

func fragment(t *testing.T, snap runtime.Snapshot) *goquery.Document {
	t.Helper()
	html, err := FragmentString("sess-1", snap)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// labeled finds the control a label points at, the way a user finds it.
func labeled(doc *goquery.Document, label string) *goquery.Selection {
	var id string
	doc.Find("label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == label {
			id, _ = s.Attr("for")
			return false
		}
		return true
	})
	if id == "" {
		return &goquery.Selection{}
	}
	return doc.Find("#" + id)
}

func button(doc *goquery.Document) *goquery.Selection {
	return doc.Find("button").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == "Sign Up"
	})
}

func TestInitialForm(t *testing.T) {
	doc := fragment(t, idle(signup.Values{}, signup.FieldErrors{}))

	form := doc.Find(`form[data-testid="form-sign-up"]`)
	require.Equal(t, 1, form.Length())
	assert.Equal(t, "Sign Up", doc.Find("h1").Text())

	for _, label := range []string{"Username", "Email", "Password", "Password Repeat"} {
		assert.Equal(t, 1, labeled(doc, label).Length(), label)
	}
	pw, _ := labeled(doc, "Password").Attr("type")
	assert.Equal(t, "password", pw)
	repeat, _ := labeled(doc, "Password Repeat").Attr("type")
	assert.Equal(t, "password", repeat)
	user, _ := labeled(doc, "Username").Attr("type")
	assert.Equal(t, "text", user)

	assert.Equal(t, 1, button(doc).Length())
	_, disabled := button(doc).Attr("disabled")
	assert.False(t, disabled, "empty passwords leave submit enabled")
	assert.Equal(t, 0, doc.Find(`[role="status"]`).Length())
	assert.Equal(t, 0, doc.Find(".alert-success").Length())
}

func TestLayoutClasses(t *testing.T) {
	doc := fragment(t, idle(signup.Values{}, nil))

	wrapper := doc.Find("[data-revision]")
	for _, class := range []string{"col-lg-6", "offset-lg-3", "col-md-8", "offset-md-2"} {
		assert.True(t, wrapper.HasClass(class), class)
	}
	assert.True(t, button(doc).HasClass("btn"))
	assert.True(t, button(doc).HasClass("btn-success"))
	assert.True(t, doc.Find("form").HasClass("card"))
	assert.Equal(t, 1, doc.Find(".card-header h1").Length())
	assert.Equal(t, 4, doc.Find(".card-body input[data-change]").Length())
}

func TestSessionCarriedInForm(t *testing.T) {
	doc := fragment(t, idle(signup.Values{}, nil))

	v, ok := doc.Find(`input[type="hidden"][name="session"]`).Attr("value")
	require.True(t, ok)
	assert.Equal(t, "sess-1", v)
}

func TestMismatchedPasswordsDisableButton(t *testing.T) {
	doc := fragment(t, idle(signup.Values{Password: "P4ssword", PasswordRepeat: "another"}, nil))

	_, disabled := button(doc).Attr("disabled")
	assert.True(t, disabled)
}

func TestSubmittingShowsSpinner(t *testing.T) {
	snap := runtime.Snapshot{
		Values: signup.Values{Username: "user1"},
		Phase:  runtime.Submitting{Errors: signup.FieldErrors{}},
	}
	doc := fragment(t, snap)

	_, disabled := button(doc).Attr("disabled")
	assert.True(t, disabled)
	assert.Equal(t, 1, doc.Find(`[role="status"]`).Length())
	assert.Equal(t, 1, button(doc).Find(".spinner-border").Length())
}

func TestValidationMessageUnderField(t *testing.T) {
	doc := fragment(t, idle(signup.Values{}, signup.FieldErrors{"email": "Email cannot be null"}))

	email := labeled(doc, "Email")
	assert.True(t, email.HasClass("is-invalid"))
	assert.Equal(t, "Email cannot be null", email.Parent().Find(".invalid-feedback").Text())

	user := labeled(doc, "Username")
	assert.False(t, user.HasClass("is-invalid"))
	assert.Empty(t, user.Parent().Find(".invalid-feedback").Text())
}

func TestTextValuesEchoedPasswordsNot(t *testing.T) {
	doc := fragment(t, idle(signup.Values{
		Username:       "user1",
		Email:          "user1@mail.com",
		Password:       "P4ssword",
		PasswordRepeat: "P4ssword",
	}, nil))

	v, _ := labeled(doc, "Username").Attr("value")
	assert.Equal(t, "user1", v)
	v, _ = labeled(doc, "Email").Attr("value")
	assert.Equal(t, "user1@mail.com", v)
	_, ok := labeled(doc, "Password").Attr("value")
	assert.False(t, ok)
	_, ok = labeled(doc, "Password Repeat").Attr("value")
	assert.False(t, ok)
}

func TestFailureAlert(t *testing.T) {
	snap := runtime.Snapshot{Phase: runtime.Idle{Failure: runtime.GenericFailureText}}
	doc := fragment(t, snap)

	assert.Equal(t, runtime.GenericFailureText, doc.Find(".alert-danger").Text())
}

func TestSuccessReplacesForm(t *testing.T) {
	snap := runtime.Snapshot{
		Values:   signup.Values{Username: "user1"},
		Phase:    runtime.Succeeded{},
		Revision: 7,
	}
	doc := fragment(t, snap)

	assert.Equal(t, 0, doc.Find("form").Length())
	assert.Equal(t, 0, doc.Find("input").Length())
	assert.Equal(t, signup.ConfirmationText, doc.Find(".alert-success").Text())
	rev, _ := doc.Find("[data-revision]").Attr("data-revision")
	assert.Equal(t, "7", rev)
}

func TestRenderDocument(t *testing.T) {
	var b strings.Builder
	err := Render(&b, Page{Session: "abc", Snapshot: idle(signup.Values{}, nil)})
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, doc.Find("title").Text())
	session, _ := doc.Find("#app").Attr("data-session")
	assert.Equal(t, "abc", session)
	src, _ := doc.Find("script").Attr("src")
	assert.Equal(t, "/assets/signup.js", src)
	href, _ := doc.Find(`link[rel="stylesheet"]`).Attr("href")
	assert.Equal(t, "/assets/signup.css", href)
	assert.Equal(t, 1, doc.Find("#app form").Length())
}

func TestInputsOrder(t *testing.T) {
	inputs := Inputs(idle(signup.Values{}, nil))

	require.Len(t, inputs, len(signup.Fields))
	for i, f := range signup.Fields {
		assert.Equal(t, string(f), inputs[i].ID)
	}
}
