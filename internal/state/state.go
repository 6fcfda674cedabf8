package state

import (
	"errors"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// ErrEditorOpen is returned when an editor is opened while another one is shown.
var ErrEditorOpen = errors.New("an alert instance editor is already open")

// View is the state of the alert instance management screen.
// At most one of AddedOpen and EditOpen is true, and Value is only set
// while EditOpen is true.
type View struct {
	Instances []instance.Instance `json:"alertInstanceList"`
	Loading   bool                `json:"loading"`
	AddedOpen bool                `json:"addedOpen"`
	EditOpen  bool                `json:"editOpen"`
	Value     *instance.Instance  `json:"value,omitempty"`
}

// Action is a transition request applied by Reduce.
type Action interface {
	isAction()
}

// Loaded replaces the list with a fresh listing response.
type Loaded struct {
	Instances []instance.Instance
}

type LoadingStarted struct{}

type LoadingFinished struct{}

// CreateOpened opens the editor with an empty value.
type CreateOpened struct{}

// EditOpened opens the editor pre-filled with Instance.
type EditOpened struct {
	Instance instance.Instance
}

// EditorClosed closes whichever editor is open and drops the edited value.
type EditorClosed struct{}

func (Loaded) isAction()          {}
func (LoadingStarted) isAction()  {}
func (LoadingFinished) isAction() {}
func (CreateOpened) isAction()    {}
func (EditOpened) isAction()      {}
func (EditorClosed) isAction()    {}

// Mode is the editor state derived from a View.
type Mode int

const (
	Closed Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "closed"
	}
}

func EditorMode(v View) Mode {
	switch {
	case v.AddedOpen:
		return Creating
	case v.EditOpen:
		return Editing
	default:
		return Closed
	}
}

// Reduce returns the view after applying a. The input is never modified.
// Opening an editor while one is already open leaves the view unchanged.
func Reduce(v View, a Action) View {
	next := v.clone()
	switch a := a.(type) {
	case Loaded:
		next.Instances = cloneInstances(a.Instances)
	case LoadingStarted:
		next.Loading = true
	case LoadingFinished:
		next.Loading = false
	case CreateOpened:
		if EditorMode(v) != Closed {
			return next
		}
		next.AddedOpen = true
		next.Value = nil
	case EditOpened:
		if EditorMode(v) != Closed {
			return next
		}
		inst := a.Instance
		next.EditOpen = true
		next.Value = &inst
	case EditorClosed:
		next.AddedOpen = false
		next.EditOpen = false
		next.Value = nil
	}
	return next
}

func (v View) clone() View {
	out := v
	out.Instances = cloneInstances(v.Instances)
	if v.Value != nil {
		val := *v.Value
		out.Value = &val
	}
	return out
}

func cloneInstances(in []instance.Instance) []instance.Instance {
	if in == nil {
		return nil
	}
	out := make([]instance.Instance, len(in))
	copy(out, in)
	return out
}

// Effect is work the screen performs after a transition.
type Effect int

const (
	EffectReload Effect = iota + 1
)

func (e Effect) String() string {
	if e == EffectReload {
		return "reload"
	}
	return "unknown"
}

type rule struct {
	name   string
	when   func(prev, next View) bool
	effect Effect
}

var rules = []rule{
	{
		name:   "create editor toggled",
		when:   func(prev, next View) bool { return prev.AddedOpen != next.AddedOpen },
		effect: EffectReload,
	},
	{
		name:   "edit editor toggled",
		when:   func(prev, next View) bool { return prev.EditOpen != next.EditOpen },
		effect: EffectReload,
	},
}

// Effects returns the effects triggered by moving from prev to next.
// Each effect appears at most once.
func Effects(prev, next View) []Effect {
	var out []Effect
	seen := map[Effect]bool{}
	for _, r := range rules {
		if r.when(prev, next) && !seen[r.effect] {
			seen[r.effect] = true
			out = append(out, r.effect)
		}
	}
	return out
}

// MountEffects returns the effects of showing the screen for the first time.
func MountEffects() []Effect {
	return []Effect{EffectReload}
}
