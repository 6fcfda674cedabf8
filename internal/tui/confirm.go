package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/console"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

type confirmMsg struct {
	dialog console.Dialog
	reply  chan bool
}

// Confirmer shows console dialogs as a modal inside the program and blocks
// until the user answers. It must be attached before the first Confirm.
type Confirmer struct {
	mu     sync.Mutex
	sender Sender
}

func NewConfirmer() *Confirmer {
	return &Confirmer{}
}

func (c *Confirmer) Attach(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = s
}

func (c *Confirmer) Confirm(ctx context.Context, d console.Dialog) (bool, error) {
	c.mu.Lock()
	s := c.sender
	c.mu.Unlock()
	if s == nil {
		return false, errors.New("confirmer is not attached to a program")
	}

	reply := make(chan bool, 1)
	s.Send(confirmMsg{dialog: d, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
