package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// HttpNotifier calls an arbitrary webhook. The body is a template over
// Message; without one a JSON document with title and content is sent.
type HttpNotifier struct {
	name   string
	params instance.HttpParams
	http   *httpSender
}

func (n *HttpNotifier) Name() string { return n.name }

func (n *HttpNotifier) body(msg Message) (string, error) {
	if n.params.Body == "" {
		data, err := json.Marshal(map[string]string{"title": msg.Title, "content": msg.Content})
		return string(data), err
	}
	return renderTemplate("http_body", n.params.Body, msg)
}

func (n *HttpNotifier) Send(ctx context.Context, msg Message) error {
	body, err := n.body(msg)
	if err != nil {
		return err
	}
	method := n.params.Method
	if method == "" {
		method = http.MethodPost
	}
	return n.http.do(ctx, n.name, func(ctx context.Context) (*http.Request, error) {
		var req *http.Request
		var err error
		if method == http.MethodGet {
			req, err = http.NewRequestWithContext(ctx, method, n.params.URL, nil)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, n.params.URL, strings.NewReader(body))
		}
		if err != nil {
			return nil, err
		}
		if method != http.MethodGet {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range n.params.Headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}, nil)
}
