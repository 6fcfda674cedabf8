package console

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/state"
)

// Backend is the REST surface the screen drives.
type Backend interface {
	List(ctx context.Context) ([]instance.Instance, error)
	Delete(ctx context.Context, id int) error
	ToggleEnabled(ctx context.Context, id int) error
	// SaveOrUpdate creates the instance when its id is zero and updates it
	// otherwise. It reports whether the backend accepted the payload.
	SaveOrUpdate(ctx context.Context, inst instance.Instance) (bool, error)
	SendTest(ctx context.Context, inst instance.Instance) error
}

// Explainer is implemented by backends that can tell why a save was
// rejected. SaveOrExplain behaves like SaveOrUpdate.
type Explainer interface {
	SaveOrExplain(ctx context.Context, inst instance.Instance) (ok bool, reason string, err error)
}

// Dialog is a localized confirmation prompt.
type Dialog struct {
	Title      string
	Content    string
	OkText     string
	CancelText string
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, d Dialog) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, d Dialog) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, d Dialog) (bool, error) { return f(ctx, d) }

// Localizer maps message keys to display strings.
type Localizer interface {
	T(key string) string
}

type Options struct {
	Authorizer auth.Authorizer
	Localizer  Localizer
	Confirmer  Confirmer
	Logger     *zap.Logger
}

// Screen is the alert instance management screen. It owns the view state
// and applies every change through state.Reduce.
type Screen struct {
	backend   Backend
	authz     auth.Authorizer
	loc       Localizer
	confirmer Confirmer
	logger    *zap.Logger

	mu   sync.Mutex
	view state.View

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(state.View)
}

func NewScreen(backend Backend, opts Options) *Screen {
	if opts.Authorizer == nil {
		opts.Authorizer = auth.DenyAll
	}
	if opts.Localizer == nil {
		opts.Localizer = i18n.New("en")
	}
	if opts.Confirmer == nil {
		opts.Confirmer = ConfirmerFunc(func(context.Context, Dialog) (bool, error) { return false, nil })
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Screen{
		backend:   backend,
		authz:     opts.Authorizer,
		loc:       opts.Localizer,
		confirmer: opts.Confirmer,
		logger:    opts.Logger,
		subs:      map[int]func(state.View){},
	}
}

// State returns a copy of the current view.
func (s *Screen) State() state.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.Reduce(s.view, nil)
}

// Subscribe registers fn to be called with the view after every transition.
// The returned function removes the subscription.
func (s *Screen) Subscribe(fn func(state.View)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Screen) notify(v state.View) {
	s.subMu.Lock()
	fns := make([]func(state.View), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(state.Reduce(v, nil))
	}
}

// apply reduces a under the lock and notifies subscribers outside of it.
func (s *Screen) apply(a state.Action) (prev, next state.View) {
	s.mu.Lock()
	prev = s.view
	s.view = state.Reduce(prev, a)
	next = s.view
	s.mu.Unlock()
	s.notify(next)
	return prev, next
}

func (s *Screen) runEffects(ctx context.Context, effects []state.Effect) error {
	for _, e := range effects {
		switch e {
		case state.EffectReload:
			if err := s.Reload(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mount loads the list for the first time.
func (s *Screen) Mount(ctx context.Context) error {
	return s.runEffects(ctx, state.MountEffects())
}

// Reload replaces the list with the backend's current collection. On error
// the list is left untouched.
func (s *Screen) Reload(ctx context.Context) error {
	list, err := s.backend.List(ctx)
	if err != nil {
		s.logger.Error("failed to load alert instances", zap.Error(err))
		return errors.Wrap(err, "load alert instances")
	}
	s.apply(state.Loaded{Instances: list})
	s.logger.Debug("loaded alert instances", zap.Int("count", len(list)))
	return nil
}

// Dispatch marks the screen as loading, runs mutation, reloads the list once
// and clears the loading flag. The reload happens whatever the mutation
// returned; the mutation error takes precedence over a reload error.
func (s *Screen) Dispatch(ctx context.Context, name string, mutation func(ctx context.Context) error) error {
	s.apply(state.LoadingStarted{})
	defer s.apply(state.LoadingFinished{})

	err := mutation(ctx)
	if err != nil {
		s.logger.Error("alert instance mutation failed", zap.String("action", name), zap.Error(err))
		err = errors.Wrap(err, name)
	}
	if rerr := s.Reload(ctx); rerr != nil {
		if err == nil {
			return rerr
		}
		s.logger.Warn("reload after failed mutation also failed", zap.String("action", name), zap.Error(rerr))
	}
	return err
}

func (s *Screen) deleteDialog() Dialog {
	return Dialog{
		Title:      s.loc.T(i18n.KeyDelete),
		Content:    s.loc.T(i18n.KeyDeleteConfirm),
		OkText:     s.loc.T(i18n.KeyConfirm),
		CancelText: s.loc.T(i18n.KeyCancel),
	}
}

// Delete removes the instance after the user confirms. It reports whether
// the delete was dispatched.
func (s *Screen) Delete(ctx context.Context, id int) (bool, error) {
	ok, err := s.confirmer.Confirm(ctx, s.deleteDialog())
	if err != nil {
		return false, errors.Wrap(err, "confirm delete")
	}
	if !ok {
		s.logger.Debug("delete declined", zap.Int("id", id))
		return false, nil
	}
	return true, s.Dispatch(ctx, "delete alert instance", func(ctx context.Context) error {
		return s.backend.Delete(ctx, id)
	})
}

// ToggleEnable flips the enabled flag of inst server side. No confirmation.
func (s *Screen) ToggleEnable(ctx context.Context, inst instance.Instance) error {
	return s.Dispatch(ctx, "toggle alert instance", func(ctx context.Context) error {
		return s.backend.ToggleEnabled(ctx, inst.ID)
	})
}

// open checks the mode and reduces under one lock so that of two racing
// opens exactly one succeeds.
func (s *Screen) open(ctx context.Context, a state.Action) error {
	s.mu.Lock()
	prev := s.view
	if state.EditorMode(prev) != state.Closed {
		s.mu.Unlock()
		return state.ErrEditorOpen
	}
	s.view = state.Reduce(prev, a)
	next := s.view
	s.mu.Unlock()
	s.notify(next)
	return s.runEffects(ctx, state.Effects(prev, next))
}

// OpenCreate opens the editor with an empty value.
func (s *Screen) OpenCreate(ctx context.Context) error {
	return s.open(ctx, state.CreateOpened{})
}

// OpenEdit opens the editor pre-filled with inst. Instances whose params
// cannot be loaded into the form are refused and the editor stays closed.
func (s *Screen) OpenEdit(ctx context.Context, inst instance.Instance) error {
	if _, err := instance.FormOf(inst); err != nil {
		s.logger.Warn("cannot edit alert instance", zap.Int("id", inst.ID), zap.Error(err))
		return err
	}
	return s.open(ctx, state.EditOpened{Instance: inst})
}

// EditorForm returns the form the open editor starts from: empty when
// creating, the edited instance when editing.
func (s *Screen) EditorForm() (instance.Form, error) {
	v := s.State()
	switch state.EditorMode(v) {
	case state.Creating:
		return instance.Form{Enabled: true, Params: map[string]any{}}, nil
	case state.Editing:
		return instance.FormOf(*v.Value)
	default:
		return instance.Form{}, errors.New("no alert instance editor is open")
	}
}

// Submit transforms the form and sends it to the create-or-update endpoint.
// When the backend accepts it the editor is closed and the list reloaded;
// otherwise the editor stays open.
func (s *Screen) Submit(ctx context.Context, form instance.Form) (bool, error) {
	ok, _, err := s.SubmitReason(ctx, form)
	return ok, err
}

// SubmitReason is Submit also returning the backend's explanation when the
// payload was rejected. The reason is empty unless the backend is an Explainer.
func (s *Screen) SubmitReason(ctx context.Context, form instance.Form) (bool, string, error) {
	inst, err := instance.Transform(form)
	if err != nil {
		return false, "", err
	}
	s.apply(state.LoadingStarted{})
	defer s.apply(state.LoadingFinished{})

	var (
		ok     bool
		reason string
	)
	if ex, isExplainer := s.backend.(Explainer); isExplainer {
		ok, reason, err = ex.SaveOrExplain(ctx, inst)
	} else {
		ok, err = s.backend.SaveOrUpdate(ctx, inst)
	}
	if err != nil {
		s.logger.Error("failed to save alert instance", zap.String("name", inst.Name), zap.Error(err))
		return false, "", errors.Wrap(err, "save alert instance")
	}
	if !ok {
		s.logger.Info("alert instance rejected by backend", zap.String("name", inst.Name), zap.String("reason", reason))
		return false, reason, nil
	}
	return true, "", s.close(ctx)
}

// Cancel closes the editor without sending anything and reloads the list.
func (s *Screen) Cancel(ctx context.Context) error {
	return s.close(ctx)
}

func (s *Screen) close(ctx context.Context) error {
	prev, next := s.apply(state.EditorClosed{})
	effects := state.Effects(prev, next)
	if len(effects) == 0 {
		// Nothing was open; still refresh like a cancel does.
		effects = []state.Effect{state.EffectReload}
	}
	return s.runEffects(ctx, effects)
}

// TestSend transforms the form and sends a test message. The editor stays open.
func (s *Screen) TestSend(ctx context.Context, form instance.Form) error {
	inst, err := instance.Transform(form)
	if err != nil {
		return err
	}
	if err := s.backend.SendTest(ctx, inst); err != nil {
		s.logger.Warn("test send failed", zap.String("name", inst.Name), zap.Error(err))
		return errors.Wrap(err, "send test message")
	}
	return nil
}
