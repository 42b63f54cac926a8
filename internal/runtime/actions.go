package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/livetemplate/signup"
)

// ErrUnknownAction is wrapped by HandleAction for unrecognized actions.
var ErrUnknownAction = errors.New("unknown action")

// HandleAction dispatches an action sent by the page.
//
//	change  {"id": "<field>", "value": "<text>"}
//	submit  {}
//
// submit returns as soon as the page is Submitting; the outcome arrives via
// Subscribe.
func (c *Controller) HandleAction(action string, data map[string]interface{}) error {
	switch strings.ToLower(action) {
	case "change":
		return c.handleChange(data)
	case "submit":
		return c.SubmitAsync()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

// handleChange handles the change notification of one input
func (c *Controller) handleChange(data map[string]interface{}) error {
	id, ok := data["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("change requires an id")
	}
	field, err := signup.ParseField(id)
	if err != nil {
		return err
	}

	var value string
	switch v := data["value"].(type) {
	case nil:
	case string:
		value = v
	default:
		value = fmt.Sprintf("%v", v)
	}
	return c.Edit(field, value)
}
