package console

import (
	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
)

// TagColor is the background of the type tag.
const TagColor = "#5BD8A6"

// subtitleWidth is the number of runes shown before a name is truncated.
const subtitleWidth = 24

type ActionKind string

const (
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
	ActionCreate ActionKind = "create"
)

// RowAction is a button rendered for a row or the toolbar.
type RowAction struct {
	Kind       ActionKind
	Label      string
	Permission string
}

type Tag struct {
	Text  string
	Color string
}

// Row is the presentation of one instance.
type Row struct {
	Instance instance.Instance
	// Subtitle is the name, truncated to fit; Tooltip always holds it in full.
	Subtitle string
	Tooltip  string
	Icon     string
	Tag      Tag
	// Switch is the enabled toggle.
	Switch  bool
	Actions []RowAction
}

// Toolbar is the list header.
type Toolbar struct {
	Title   string
	Actions []RowAction
}

// Present derives the row for inst. Actions the authorizer denies are omitted.
func Present(inst instance.Instance, authz auth.Authorizer, loc Localizer) Row {
	row := Row{
		Instance: inst,
		Subtitle: truncate(inst.Name, subtitleWidth),
		Tooltip:  inst.Name,
		Icon:     Icon(inst.Type),
		Tag:      Tag{Text: TagText(inst), Color: TagColor},
		Switch:   inst.Enabled,
	}
	if authz.Allowed(auth.PermAlertInstanceEdit) {
		row.Actions = append(row.Actions, RowAction{Kind: ActionEdit, Label: loc.T(i18n.KeyEdit), Permission: auth.PermAlertInstanceEdit})
	}
	if authz.Allowed(auth.PermAlertInstanceDelete) {
		row.Actions = append(row.Actions, RowAction{Kind: ActionDelete, Label: loc.T(i18n.KeyDelete), Permission: auth.PermAlertInstanceDelete})
	}
	return row
}

// TagText is the type name followed by the SMS carrier label when the
// params carry one, e.g. "Sms - Alibaba".
func TagText(inst instance.Instance) string {
	if sub, ok := instance.SubType(inst); ok {
		return string(inst.Type) + " - " + sub
	}
	return string(inst.Type)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// Rows presents the current list in backend order.
func (s *Screen) Rows() []Row {
	v := s.State()
	rows := make([]Row, 0, len(v.Instances))
	for _, inst := range v.Instances {
		rows = append(rows, Present(inst, s.authz, s.loc))
	}
	return rows
}

// Toolbar returns the header with the create button when allowed.
func (s *Screen) Toolbar() Toolbar {
	tb := Toolbar{Title: s.loc.T(i18n.KeyManagement)}
	if s.authz.Allowed(auth.PermAlertInstanceNew) {
		tb.Actions = append(tb.Actions, RowAction{Kind: ActionCreate, Label: s.loc.T(i18n.KeyCreate), Permission: auth.PermAlertInstanceNew})
	}
	return tb
}
