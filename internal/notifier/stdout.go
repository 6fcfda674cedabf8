package notifier

import (
	"context"
	"fmt"
	"io"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// StdoutNotifier writes messages instead of delivering them. Used for dry runs.
type StdoutNotifier struct {
	name string
	kind instance.Type
	out  io.Writer
}

func NewStdoutNotifier(name string, kind instance.Type, out io.Writer) *StdoutNotifier {
	return &StdoutNotifier{name: name, kind: kind, out: out}
}

func (sout *StdoutNotifier) Name() string {
	return sout.name
}

func (sout *StdoutNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(sout.out, "[dry-run] %s %q: %s\n%s\n", sout.kind, sout.name, msg.Title, msg.Content)
	return err
}
