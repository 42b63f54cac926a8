package input

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, in Input) *goquery.Document {
	t.Helper()
	var b strings.Builder
	require.NoError(t, in.Render(&b))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	return doc
}

func TestInvalidClassWhenHelpSet(t *testing.T) {
	doc := render(t, Input{ID: "username", Label: "Username", Help: "Error message"})

	assert.True(t, doc.Find("input").HasClass("is-invalid"))
	assert.True(t, doc.Find("input").HasClass("form-control"))
}

func TestFeedbackSpanWhenHelpSet(t *testing.T) {
	doc := render(t, Input{ID: "username", Help: "Error message"})

	span := doc.Find("span")
	assert.True(t, span.HasClass("invalid-feedback"))
	assert.Equal(t, "Error message", span.Text())
}

func TestNoInvalidClassWithoutHelp(t *testing.T) {
	doc := render(t, Input{ID: "username"})

	assert.False(t, doc.Find("input").HasClass("is-invalid"))
	// the message slot is always present
	assert.Equal(t, 1, doc.Find("span.invalid-feedback").Length())
	assert.Empty(t, doc.Find("span.invalid-feedback").Text())
}

func TestLabelTargetsInput(t *testing.T) {
	doc := render(t, Input{ID: "email", Label: "Email"})

	label := doc.Find("label.form-label")
	assert.Equal(t, "Email", label.Text())
	assert.Equal(t, "email", label.AttrOr("for", ""))

	in := doc.Find("input#email")
	require.Equal(t, 1, in.Length())
	assert.Equal(t, "email", in.AttrOr("name", ""))
	assert.Equal(t, "email", in.AttrOr("data-change", ""))
}

func TestKindDefaultsToText(t *testing.T) {
	doc := render(t, Input{ID: "username"})
	assert.Equal(t, "text", doc.Find("input").AttrOr("type", ""))

	doc = render(t, Input{ID: "password", Type: Password})
	assert.Equal(t, "password", doc.Find("input").AttrOr("type", ""))
}

func TestValueNeverRenderedForPasswords(t *testing.T) {
	doc := render(t, Input{ID: "username", Value: "User1"})
	assert.Equal(t, "User1", doc.Find("input").AttrOr("value", ""))

	doc = render(t, Input{ID: "password", Type: Password, Value: "secret"})
	_, has := doc.Find("input").Attr("value")
	assert.False(t, has)
}

func TestHelpIsEscaped(t *testing.T) {
	html, err := Input{ID: "username", Help: "<b>bad</b>"}.HTML()
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<b>")
	assert.Contains(t, string(html), "&lt;b&gt;")
}
