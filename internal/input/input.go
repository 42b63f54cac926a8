// Package input renders the labeled text input used by every field of the
// sign-up form.
//
// An Input holds no state of its own. The only thing it reports back to the
// page is a change notification: the rendered control carries a
// data-change attribute that the page script turns into a "change" action.
package input

import (
	"bytes"
	"html/template"
	"io"
)

// Kind is the HTML input type.
type Kind string

const (
	Text     Kind = "text"
	Password Kind = "password"
)

const (
	baseClass    = "form-control"
	invalidClass = "is-invalid"
)

var inputTemplate = template.Must(template.New("input").Parse(
	`<div class="mb-3">` +
		`<label class="form-label" for="{{.ID}}">{{.Label}}</label>` +
		`<input class="{{.Class}}" id="{{.ID}}" name="{{.ID}}" type="{{.Kind}}"{{if .ShowValue}} value="{{.Value}}"{{end}} data-change="{{.ID}}">` +
		`<span class="invalid-feedback">{{.Help}}</span>` +
		`</div>`))

// Input describes one labeled control and its message slot.
type Input struct {
	ID    string
	Label string
	// Help is the validation message; empty means the value was accepted.
	Help string
	// Type defaults to Text.
	Type Kind
	// Value is echoed back into text inputs. Password inputs never carry it.
	Value string
}

// Kind returns the input type, falling back to Text.
func (in Input) Kind() Kind {
	if in.Type == "" {
		return Text
	}
	return in.Type
}

// Invalid reports whether the error indicator is shown.
func (in Input) Invalid() bool {
	return in.Help != ""
}

// Class returns the CSS classes of the input element.
func (in Input) Class() string {
	if in.Invalid() {
		return baseClass + " " + invalidClass
	}
	return baseClass
}

// ShowValue reports whether Value is rendered into the control.
func (in Input) ShowValue() bool {
	return in.Value != "" && in.Kind() != Password
}

// Render writes the input markup to w.
func (in Input) Render(w io.Writer) error {
	return inputTemplate.Execute(w, in)
}

// HTML renders the input for embedding in a parent template.
func (in Input) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := in.Render(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
