package tui

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/instance"
)

const (
	fieldName = iota
	fieldType
	fieldEnabled
	fieldParams
	fieldCount
)

// editor holds the text inputs of the create/edit form.
type editor struct {
	id     int
	inputs []textinput.Model
	focus  int
}

func newEditor(f instance.Form) (*editor, error) {
	params := f.Params
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "encode params")
	}

	e := &editor{id: f.ID, inputs: make([]textinput.Model, fieldCount)}
	for i := range e.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 4096
		e.inputs[i] = ti
	}
	e.inputs[fieldName].Placeholder = "ops-mail"
	e.inputs[fieldName].SetValue(f.Name)
	e.inputs[fieldType].Placeholder = typeNames()
	e.inputs[fieldType].SetValue(string(f.Type))
	e.inputs[fieldEnabled].SetValue(strconv.FormatBool(f.Enabled))
	e.inputs[fieldParams].Placeholder = `{"webhook": "..."}`
	e.inputs[fieldParams].SetValue(string(raw))
	e.inputs[fieldName].Focus()
	return e, nil
}

func typeNames() string {
	names := make([]string, 0, len(instance.Types()))
	for _, t := range instance.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, "|")
}

func (e *editor) move(delta int) tea.Cmd {
	e.inputs[e.focus].Blur()
	e.focus = (e.focus + delta + fieldCount) % fieldCount
	return e.inputs[e.focus].Focus()
}

func (e *editor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	return cmd
}

// form reads the inputs back. An unknown type is passed through so that
// Transform reports it like any other invalid field.
func (e *editor) form() (instance.Form, error) {
	f := instance.Form{
		ID:   e.id,
		Name: e.inputs[fieldName].Value(),
	}

	rawType := strings.TrimSpace(e.inputs[fieldType].Value())
	if t, err := instance.ParseType(rawType); err == nil {
		f.Type = t
	} else {
		f.Type = instance.Type(rawType)
	}

	enabled := strings.TrimSpace(e.inputs[fieldEnabled].Value())
	if enabled == "" {
		f.Enabled = true
	} else {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return f, &instance.ValidationError{Fields: []instance.FieldError{{Field: "enabled", Rule: "boolean"}}}
		}
		f.Enabled = b
	}

	f.Params = map[string]any{}
	if raw := strings.TrimSpace(e.inputs[fieldParams].Value()); raw != "" {
		if err := json.Unmarshal([]byte(raw), &f.Params); err != nil {
			return f, &instance.ValidationError{Fields: []instance.FieldError{{Field: "params", Rule: "json"}}}
		}
	}
	return f, nil
}
