package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	gotexttemplate "text/template"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// Message is what a notifier delivers.
type Message struct {
	Title   string
	Content string
}

// MessageData is the data passed to templates.
type MessageData struct {
	InstanceName string
	Type         instance.Type
	Time         time.Time
	Hostname     string
}

type Templates struct {
	TestTitle   string
	TestContent string
}

const (
	DefaultTestTitle   = `alertdesk test: {{.InstanceName}}`
	DefaultTestContent = `This is a test message for alert instance {{.InstanceName}} ({{.Type}}) sent from {{.Hostname}} at {{.Time.Format "2006-01-02 15:04:05"}}.`
)

// Notifier is the interface for all alert instance types.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string // Returns the instance name
}

// Options tune how notifiers are built.
type Options struct {
	HTTPClient *http.Client
	// MaxRetries bounds retries of transient HTTP failures.
	MaxRetries uint64
	// DryRun replaces every notifier with one that writes to Out.
	DryRun bool
	Out    io.Writer
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New builds the notifier for an instance from its typed params.
func New(inst instance.Instance, opts Options) (Notifier, error) {
	opts = opts.withDefaults()
	p, err := inst.DecodedParams()
	if err != nil {
		return nil, err
	}
	if err := instance.ValidateParams(p); err != nil {
		return nil, err
	}
	if opts.DryRun {
		return NewStdoutNotifier(inst.Name, inst.Type, opts.Out), nil
	}
	h := newHTTPSender(opts)
	switch p := p.(type) {
	case *instance.DingTalkParams:
		return &DingTalkNotifier{name: inst.Name, params: *p, http: h}, nil
	case *instance.WeChatParams:
		return &WeChatNotifier{name: inst.Name, params: *p, http: h}, nil
	case *instance.FeiShuParams:
		return &FeiShuNotifier{name: inst.Name, params: *p, http: h}, nil
	case *instance.EmailParams:
		return NewEmailNotifier(inst.Name, *p)
	case *instance.SmsParams:
		return &SmsNotifier{name: inst.Name, params: *p, http: h}, nil
	case *instance.HttpParams:
		return &HttpNotifier{name: inst.Name, params: *p, http: h}, nil
	case *instance.TelegramParams:
		return NewTelegramNotifier(inst.Name, *p, h)
	default:
		return nil, fmt.Errorf("no notifier for alert instance type %q", inst.Type)
	}
}

// TestMessage renders the test message for an instance.
func TestMessage(inst instance.Instance, templates Templates, now time.Time) (Message, error) {
	if templates.TestTitle == "" {
		templates.TestTitle = DefaultTestTitle
	}
	if templates.TestContent == "" {
		templates.TestContent = DefaultTestContent
	}
	hostname, _ := os.Hostname()
	data := MessageData{
		InstanceName: inst.Name,
		Type:         inst.Type,
		Time:         now,
		Hostname:     hostname,
	}
	title, err := renderTemplate("test_title", templates.TestTitle, data)
	if err != nil {
		return Message{}, err
	}
	content, err := renderTemplate("test_content", templates.TestContent, data)
	if err != nil {
		return Message{}, err
	}
	return Message{Title: title, Content: content}, nil
}

func renderTemplate(templateName string, templateStr string, data any) (string, error) {
	tmpl, err := gotexttemplate.New(templateName).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse notification template '%s'", templateName)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to execute notification template '%s'", templateName)
	}
	return buf.String(), nil
}
