package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/client"
	"github.com/mattmezza/alertdesk/internal/console"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/server"
	"github.com/mattmezza/alertdesk/internal/tui"
)

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid alert instance id %q", raw)
	}
	return id, nil
}

func findInstance(ctx context.Context, cl *client.Client, id int) (instance.Instance, error) {
	list, err := cl.List(ctx)
	if err != nil {
		return instance.Instance{}, err
	}
	for _, inst := range list {
		if inst.ID == id {
			return inst, nil
		}
	}
	return instance.Instance{}, fmt.Errorf("alert instance %d not found", id)
}

// parseAssignments turns repeated key=value flags into params. A key given
// more than once becomes a list.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", pair)
		}
		switch prev := out[k].(type) {
		case nil:
			out[k] = v
		case string:
			out[k] = []string{prev, v}
		case []string:
			out[k] = append(prev, v)
		}
	}
	return out, nil
}

type formFlags struct {
	name    string
	typ     string
	enabled string
	params  string
	set     []string
}

func (f *formFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "instance name")
	flags.StringVar(&f.typ, "type", "", "instance type: "+strings.Join(typeNames(), ", "))
	flags.StringVar(&f.enabled, "enabled", "true", "whether the instance is enabled")
	flags.StringVar(&f.params, "params", "", "params as a JSON object, replaces the current params")
	flags.StringArrayVarP(&f.set, "param", "p", nil, "set a single param as key=value, repeat a key for lists")
}

func typeNames() []string {
	names := make([]string, 0, len(instance.Types()))
	for _, t := range instance.Types() {
		names = append(names, string(t))
	}
	return names
}

// apply overlays the flags the user set on form.
func (f *formFlags) apply(cmd *cobra.Command, form *instance.Form) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		form.Name = f.name
	}
	if flags.Changed("type") {
		t, err := instance.ParseType(f.typ)
		if err != nil {
			return err
		}
		form.Type = t
	}
	if flags.Changed("enabled") {
		b, err := strconv.ParseBool(f.enabled)
		if err != nil {
			return fmt.Errorf("invalid --enabled value %q", f.enabled)
		}
		form.Enabled = b
	}
	if flags.Changed("params") {
		params := map[string]any{}
		if err := json.Unmarshal([]byte(f.params), &params); err != nil {
			return errors.Wrap(err, "invalid --params")
		}
		form.Params = params
	}
	set, err := parseAssignments(f.set)
	if err != nil {
		return err
	}
	if form.Params == nil {
		form.Params = map[string]any{}
	}
	for k, v := range set {
		form.Params[k] = v
	}
	return nil
}

func (a *app) save(ctx context.Context, out io.Writer, form instance.Form) error {
	inst, err := instance.Transform(form)
	if err != nil {
		return err
	}
	cl, err := a.client()
	if err != nil {
		return err
	}
	ok, res, err := cl.Save(ctx, inst)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("alert instance rejected: %s", res.Msg)
	}
	fmt.Fprintf(out, "saved alert instance %d (%s)\n", res.Instance.ID, res.Instance.Name)
	return nil
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alert instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := a.client()
			if err != nil {
				return err
			}
			list, err := cl.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if list == nil {
					list = []instance.Instance{}
				}
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, a.loc.T(i18n.KeyEmpty))
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tENABLED")
			for _, inst := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", inst.ID, inst.Name, console.TagText(inst), inst.Enabled)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw instances as JSON")
	return cmd
}

func newCreateCmd(a *app) *cobra.Command {
	var ff formFlags
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an alert instance",
		Example: "  alertdesk create --name ops-hook --type Http -p url=https://hooks.example.com/alert",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(auth.PermAlertInstanceNew); err != nil {
				return err
			}
			form := instance.Form{Enabled: true, Params: map[string]any{}}
			if err := ff.apply(cmd, &form); err != nil {
				return err
			}
			return a.save(cmd.Context(), cmd.OutOrStdout(), form)
		},
	}
	ff.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var ff formFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update an alert instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(auth.PermAlertInstanceEdit); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := a.client()
			if err != nil {
				return err
			}
			inst, err := findInstance(cmd.Context(), cl, id)
			if err != nil {
				return err
			}
			form, err := instance.FormOf(inst)
			if err != nil {
				return err
			}
			if err := ff.apply(cmd, &form); err != nil {
				return err
			}
			return a.save(cmd.Context(), cmd.OutOrStdout(), form)
		},
	}
	ff.register(cmd)
	return cmd
}

// promptConfirmer asks on the command's stdin. Anything but y/yes declines.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, d console.Dialog) (bool, error) {
	fmt.Fprintf(p.out, "%s\n%s [y/N]: ", d.Title, d.Content)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an alert instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(auth.PermAlertInstanceDelete); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := a.client()
			if err != nil {
				return err
			}
			var confirmer console.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if yes {
				confirmer = console.ConfirmerFunc(func(context.Context, console.Dialog) (bool, error) { return true, nil })
			}
			screen := console.NewScreen(cl, console.Options{
				Authorizer: a.authz,
				Localizer:  a.loc,
				Confirmer:  confirmer,
				Logger:     a.logger,
			})
			done, err := screen.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !done {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted alert instance %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newEnableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Toggle the enabled flag of an alert instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := a.client()
			if err != nil {
				return err
			}
			if err := cl.ToggleEnabled(cmd.Context(), id); err != nil {
				return err
			}
			inst, err := findInstance(cmd.Context(), cl, id)
			if err != nil {
				return err
			}
			state := "disabled"
			if inst.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", inst.Name, state)
			return nil
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>...",
		Short: "Send a test message through one or more alert instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := a.client()
			if err != nil {
				return err
			}
			list, err := cl.List(cmd.Context())
			if err != nil {
				return err
			}
			byID := make(map[int]instance.Instance, len(list))
			for _, inst := range list {
				byID[inst.ID] = inst
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, arg := range args {
				id, err := parseID(arg)
				if err == nil {
					inst, ok := byID[id]
					if !ok {
						err = fmt.Errorf("alert instance %d not found", id)
					} else if err = cl.SendTest(cmd.Context(), inst); err == nil {
						fmt.Fprintf(out, "✅ %s: %s\n", inst.Name, a.loc.T(i18n.KeyTestSent))
						continue
					}
				}
				failed++
				fmt.Fprintf(out, "❌ %s: %v\n", arg, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d test messages failed", failed, len(args))
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show recent deliveries of an alert instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := a.client()
			if err != nil {
				return err
			}
			records, err := cl.History(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no deliveries recorded")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRESULT\tTEST\tMESSAGE")
			for _, rec := range records {
				result := "ok"
				if !rec.Success {
					result = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", rec.Timestamp.Format(server.TimeLayout), result, rec.Test, rec.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n records, 0 for all")
	return cmd
}

func newConsoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open the interactive alert instance console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := a.client()
			if err != nil {
				return err
			}
			confirmer := tui.NewConfirmer()
			screen := console.NewScreen(cl, console.Options{
				Authorizer: a.authz,
				Localizer:  a.loc,
				Confirmer:  confirmer,
				Logger:     a.logger.Named("console"),
			})
			return tui.Run(cmd.Context(), screen, a.loc, confirmer,
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
		},
	}
}
