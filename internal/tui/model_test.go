package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/console"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
)

type memBackend struct {
	mu        sync.Mutex
	instances []instance.Instance
	nextID    int
	tested    []instance.Instance
}

func (b *memBackend) List(context.Context) ([]instance.Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]instance.Instance(nil), b.instances...), nil
}

func (b *memBackend) Delete(_ context.Context, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, inst := range b.instances {
		if inst.ID == id {
			b.instances = append(b.instances[:i], b.instances[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *memBackend) ToggleEnabled(_ context.Context, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.instances {
		if b.instances[i].ID == id {
			b.instances[i].Enabled = !b.instances[i].Enabled
		}
	}
	return nil
}

func (b *memBackend) SaveOrUpdate(_ context.Context, inst instance.Instance) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inst.ID == 0 {
		b.nextID++
		inst.ID = b.nextID
		b.instances = append(b.instances, inst)
		return true, nil
	}
	for i := range b.instances {
		if b.instances[i].ID == inst.ID {
			b.instances[i] = inst
			return true, nil
		}
	}
	return false, nil
}

func (b *memBackend) SendTest(_ context.Context, inst instance.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tested = append(b.tested, inst)
	return nil
}

func newBackend() *memBackend {
	return &memBackend{
		nextID: 2,
		instances: []instance.Instance{
			{ID: 1, Name: "hook", Type: instance.TypeHttp, Enabled: true, Params: `{"url":"https://hooks.example.com","method":"POST"}`},
			{ID: 2, Name: "oncall-sms", Type: instance.TypeSms, Enabled: false,
				Params: `{"manufacturers":2,"accessKeyId":"k","accessKeySecret":"s","signName":"Ops","endpoint":"https://sms.example.com","phoneNumbers":["13800000000"]}`},
		},
	}
}

func newModel(t *testing.T, b *memBackend, authz auth.Authorizer, confirmer console.Confirmer) Model {
	t.Helper()
	loc := i18n.New("en")
	screen := console.NewScreen(b, console.Options{Authorizer: authz, Localizer: loc, Confirmer: confirmer})
	m := New(context.Background(), screen, loc)
	return run(t, m, m.mount)
}

func key(k string) tea.KeyMsg {
	switch k {
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m Model, k string) (Model, tea.Cmd) {
	next, cmd := m.Update(key(k))
	return next.(Model), cmd
}

// run executes cmd synchronously and feeds its message back.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestMountRendersRows(t *testing.T) {
	m := newModel(t, newBackend(), auth.AllowAll, nil)

	require.Len(t, m.view.Instances, 2)
	out := m.View()
	assert.Contains(t, out, "Alert Instance Management")
	assert.Contains(t, out, "[n] Create")
	assert.Contains(t, out, "hook")
	assert.Contains(t, out, "Sms - Tencent")
	assert.Contains(t, out, "[e] Edit")
	assert.Contains(t, out, "[d] Delete alert instance")
	assert.NoError(t, m.err)
}

func TestEmptyList(t *testing.T) {
	m := newModel(t, &memBackend{}, auth.AllowAll, nil)
	assert.Contains(t, m.View(), "No alert instances")
}

func TestPermissionsHideActions(t *testing.T) {
	m := newModel(t, newBackend(), auth.DenyAll, nil)

	out := m.View()
	assert.NotContains(t, out, "[n] Create")
	assert.NotContains(t, out, "[e] Edit")

	for _, k := range []string{"n", "e", "d"} {
		_, cmd := press(m, k)
		assert.Nil(t, cmd, k)
	}
}

func TestCursorMovement(t *testing.T) {
	m := newModel(t, newBackend(), auth.AllowAll, nil)

	m, _ = press(m, "up")
	assert.Equal(t, 0, m.cursor)
	m, _ = press(m, "j")
	assert.Equal(t, 1, m.cursor)
	m, _ = press(m, "down")
	assert.Equal(t, 1, m.cursor)
	m, _ = press(m, "k")
	assert.Equal(t, 0, m.cursor)
}

func TestToggle(t *testing.T) {
	b := newBackend()
	m := newModel(t, b, auth.AllowAll, nil)

	m, cmd := press(m, "j")
	assert.Nil(t, cmd)
	m, cmd = press(m, "space")
	m = run(t, m, cmd)

	require.NoError(t, m.err)
	assert.True(t, m.view.Instances[1].Enabled)
	assert.False(t, m.view.Loading)
}

func TestCreate(t *testing.T) {
	b := newBackend()
	m := newModel(t, b, auth.AllowAll, nil)

	m, cmd := press(m, "n")
	m = run(t, m, cmd)
	require.NotNil(t, m.editor)
	assert.Equal(t, "true", m.editor.inputs[fieldEnabled].Value())
	assert.Contains(t, m.View(), "Create")

	m.editor.inputs[fieldName].SetValue("  web  ")
	m.editor.inputs[fieldType].SetValue("http")
	m.editor.inputs[fieldParams].SetValue(`{"url":"https://web.example.com","extra":1}`)

	m, cmd = press(m, "ctrl+s")
	m = run(t, m, cmd)

	require.NoError(t, m.err)
	assert.Nil(t, m.editor)
	require.Len(t, m.view.Instances, 3)
	created := m.view.Instances[2]
	assert.Equal(t, "web", created.Name)
	assert.Equal(t, instance.TypeHttp, created.Type)
	assert.JSONEq(t, `{"url":"https://web.example.com"}`, created.Params)
}

func TestEditorRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		field  int
		value  string
		errMsg string
	}{
		{name: "params not json", field: fieldParams, value: "{", errMsg: "params: json"},
		{name: "enabled not bool", field: fieldEnabled, value: "maybe", errMsg: "enabled: boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t, newBackend(), auth.AllowAll, nil)
			m, cmd := press(m, "n")
			m = run(t, m, cmd)

			m.editor.inputs[tt.field].SetValue(tt.value)
			m, cmd = press(m, "ctrl+s")

			assert.Nil(t, cmd)
			require.Error(t, m.err)
			assert.Contains(t, m.err.Error(), tt.errMsg)
			assert.NotNil(t, m.editor)
		})
	}
}

func TestEditKeepsEditorOpenOnValidationError(t *testing.T) {
	b := newBackend()
	m := newModel(t, b, auth.AllowAll, nil)

	m, cmd := press(m, "e")
	m = run(t, m, cmd)
	require.NotNil(t, m.editor)
	assert.Equal(t, 1, m.editor.id)
	assert.Equal(t, "hook", m.editor.inputs[fieldName].Value())
	assert.Contains(t, m.View(), "Edit")

	m.editor.inputs[fieldParams].SetValue(`{"url":"not a url"}`)
	m, cmd = press(m, "ctrl+s")
	m = run(t, m, cmd)

	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "url")
	assert.NotNil(t, m.editor)

	m, cmd = press(m, "esc")
	m = run(t, m, cmd)
	assert.Nil(t, m.editor)
	assert.False(t, m.view.EditOpen)
}

func TestEditMalformedStoredParams(t *testing.T) {
	b := newBackend()
	b.instances[0].Params = `{not json`
	m := newModel(t, b, auth.AllowAll, nil)

	m, cmd := press(m, "e")
	m = run(t, m, cmd)
	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "malformed params")
	assert.Nil(t, m.editor)
	assert.False(t, m.screen.State().EditOpen)

	m, cmd = press(m, "n")
	m = run(t, m, cmd)
	require.NoError(t, m.err)
	require.NotNil(t, m.editor)
	assert.True(t, m.screen.State().EditOpen)
}

type explainingBackend struct {
	*memBackend
	reason string
}

func (b explainingBackend) SaveOrExplain(context.Context, instance.Instance) (bool, string, error) {
	return false, b.reason, nil
}

func TestSubmitShowsRejectionReason(t *testing.T) {
	tests := []struct {
		name    string
		backend console.Backend
		errMsg  string
	}{
		{name: "server reason", backend: explainingBackend{memBackend: newBackend(), reason: "alert instance name already exists"},
			errMsg: "alert instance was rejected: alert instance name already exists"},
		{name: "no reason", backend: newBackend(), errMsg: "alert instance was rejected: rejected by the server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := i18n.New("en")
			screen := console.NewScreen(tt.backend, console.Options{Authorizer: auth.AllowAll, Localizer: loc})
			m := New(context.Background(), screen, loc)
			m = run(t, m, m.mount)

			m, cmd := press(m, "e")
			m = run(t, m, cmd)
			require.NotNil(t, m.editor)
			// An id the backend does not know makes the plain backend refuse the update.
			m.editor.id = 99

			m, cmd = press(m, "ctrl+s")
			m = run(t, m, cmd)
			require.Error(t, m.err)
			assert.Equal(t, tt.errMsg, m.err.Error())
			assert.NotNil(t, m.editor)
			assert.Contains(t, m.View(), tt.errMsg)
		})
	}
}

func TestTestSend(t *testing.T) {
	b := newBackend()
	m := newModel(t, b, auth.AllowAll, nil)

	m, cmd := press(m, "e")
	m = run(t, m, cmd)
	m, cmd = press(m, "ctrl+t")
	m = run(t, m, cmd)

	require.NoError(t, m.err)
	assert.Equal(t, "Test message sent", m.status)
	assert.NotNil(t, m.editor)
	require.Len(t, b.tested, 1)
	assert.Equal(t, "hook", b.tested[0].Name)
}

func TestEditorFocusCycles(t *testing.T) {
	m := newModel(t, newBackend(), auth.AllowAll, nil)
	m, cmd := press(m, "n")
	m = run(t, m, cmd)

	for want := 1; want <= fieldCount; want++ {
		m, _ = press(m, "tab")
		assert.Equal(t, want%fieldCount, m.editor.focus)
	}
	m, _ = press(m, "up")
	assert.Equal(t, fieldParams, m.editor.focus)
}

type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func TestDeleteThroughModal(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   int
	}{
		{name: "confirmed", answer: "y", want: 1},
		{name: "declined", answer: "n", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			confirmer := NewConfirmer()
			sent := make(chanSender, 1)
			confirmer.Attach(sent)
			m := newModel(t, b, auth.AllowAll, confirmer)

			m, cmd := press(m, "d")
			require.NotNil(t, cmd)
			result := make(chan tea.Msg, 1)
			go func() { result <- cmd() }()

			var msg tea.Msg
			select {
			case msg = <-sent:
			case <-time.After(2 * time.Second):
				t.Fatal("no confirmation requested")
			}
			next, _ := m.Update(msg)
			m = next.(Model)
			out := m.View()
			assert.Contains(t, out, "Are you sure you want to delete this alert instance?")
			assert.Contains(t, out, "[y] Confirm")

			m, _ = press(m, tt.answer)
			assert.Nil(t, m.confirm)

			select {
			case msg = <-result:
			case <-time.After(2 * time.Second):
				t.Fatal("delete did not finish")
			}
			next, _ = m.Update(msg)
			m = next.(Model)
			require.NoError(t, m.err)
			assert.Len(t, m.view.Instances, tt.want)
		})
	}
}

func TestConfirmer(t *testing.T) {
	t.Run("not attached", func(t *testing.T) {
		ok, err := NewConfirmer().Confirm(context.Background(), console.Dialog{})
		assert.False(t, ok)
		assert.Error(t, err)
	})

	t.Run("context cancelled", func(t *testing.T) {
		c := NewConfirmer()
		c.Attach(make(chanSender, 1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ok, err := c.Confirm(ctx, console.Dialog{})
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestQuit(t *testing.T) {
	m := newModel(t, newBackend(), auth.AllowAll, nil)
	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
