// Package view renders the sign-up page from a controller snapshot.
//
// The page is rendered in two pieces: the full document served on GET /
// and the fragment inside #app that is pushed over the websocket after
// every transition.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/input"
	"github.com/livetemplate/signup/internal/runtime"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// DefaultTitle is the document title.
const DefaultTitle = "Sign Up"

// DefaultAssetsPath is where the server mounts the embedded client files.
const DefaultAssetsPath = "/assets"

// Page is the data behind a full document render.
type Page struct {
	Title      string
	AssetsPath string
	Session    string
	Snapshot   runtime.Snapshot
}

type fragmentData struct {
	Session      string
	Revision     uint64
	Success      bool
	Confirmation string
	Inputs       []template.HTML
	Failure      string
	Disabled     bool
	Progress     bool
}

type pageData struct {
	Title      string
	AssetsPath string
	Session    string
	Fragment   fragmentData
}

// Inputs builds the field displays for a snapshot in form order.
func Inputs(snap runtime.Snapshot) []input.Input {
	inputs := make([]input.Input, 0, len(signup.Fields))
	for _, f := range signup.Fields {
		kind := input.Text
		if f.Secret() {
			kind = input.Password
		}
		inputs = append(inputs, input.Input{
			ID:    string(f),
			Label: f.Label(),
			Help:  snap.Help(f),
			Type:  kind,
			Value: snap.Values.Get(f),
		})
	}
	return inputs
}

func newFragmentData(session string, snap runtime.Snapshot) (fragmentData, error) {
	data := fragmentData{
		Session:  session,
		Revision: snap.Revision,
		Success:  snap.SignUpSuccess(),
	}
	if data.Success {
		data.Confirmation = signup.ConfirmationText
		return data, nil
	}

	for _, in := range Inputs(snap) {
		html, err := in.HTML()
		if err != nil {
			return data, fmt.Errorf("render %s: %w", in.ID, err)
		}
		data.Inputs = append(data.Inputs, html)
	}
	data.Failure = snap.Failure()
	data.Disabled = !snap.SubmitEnabled()
	data.Progress = snap.APIProgress()
	return data, nil
}

// Fragment writes the contents of #app.
func Fragment(w io.Writer, session string, snap runtime.Snapshot) error {
	data, err := newFragmentData(session, snap)
	if err != nil {
		return err
	}
	return templates.ExecuteTemplate(w, "fragment", data)
}

// FragmentString is Fragment into a string.
func FragmentString(session string, snap runtime.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := Fragment(&buf, session, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render writes the full document.
func Render(w io.Writer, p Page) error {
	frag, err := newFragmentData(p.Session, p.Snapshot)
	if err != nil {
		return err
	}
	data := pageData{
		Title:      p.Title,
		AssetsPath: p.AssetsPath,
		Session:    p.Session,
		Fragment:   frag,
	}
	if data.Title == "" {
		data.Title = DefaultTitle
	}
	if data.AssetsPath == "" {
		data.AssetsPath = DefaultAssetsPath
	}
	return templates.ExecuteTemplate(w, "page", data)
}
