package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/history"
	"github.com/mattmezza/alertdesk/internal/instance"
)

const DefaultUserAgent = "AlertdeskClient"

const (
	listPath     = "/api/alertInstance/list"
	deletePath   = "/api/alertInstance/delete"
	enablePath   = "/api/alertInstance/enable"
	savePath     = "/api/alertInstance"
	sendTestPath = "/api/alertInstance/sendTest"
	historyPath  = "/api/alertInstance/history"
)

type Config struct {
	// The URL of the alertdesk server.
	URL string

	// Timeout for API requests, defaults to no timeout.
	Timeout time.Duration

	// UserAgent is the http User Agent, defaults to "AlertdeskClient".
	UserAgent string

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client talks to the alert instance REST API.
type Client struct {
	url        *url.URL
	userAgent  string
	httpClient *http.Client
}

func New(conf Config) (*Client, error) {
	if conf.UserAgent == "" {
		conf.UserAgent = DefaultUserAgent
	}
	u, err := url.Parse(strings.TrimRight(conf.URL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse server url")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf(
			"unsupported protocol scheme: %q, the address must start with http:// or https://",
			u.Scheme,
		)
	}
	hc := conf.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: conf.Timeout}
	}
	return &Client{url: u, userAgent: conf.UserAgent, httpClient: hc}, nil
}

// APIError is a failure reported by the server.
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alertdesk: %s (status %d)", e.Msg, e.StatusCode)
}

type envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Time    string          `json:"time"`
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.url
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

// do sends the request and decodes the envelope. Non-2xx responses become
// an *APIError carrying the server message.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any) (*envelope, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	env := &envelope{}
	decodeErr := json.Unmarshal(raw, env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Msg
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Msg: msg}
	}
	if decodeErr != nil {
		return nil, errors.Wrapf(decodeErr, "invalid response: code %d: body: %s", resp.StatusCode, string(raw))
	}
	return env, nil
}

func idQuery(id int) url.Values {
	return url.Values{"id": {strconv.Itoa(id)}}
}

// List returns every alert instance in server order.
func (c *Client) List(ctx context.Context) ([]instance.Instance, error) {
	env, err := c.do(ctx, http.MethodGet, listPath, nil, nil)
	if err != nil {
		return nil, err
	}
	var list []instance.Instance
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, errors.Wrap(err, "decode alert instances")
	}
	return list, nil
}

func (c *Client) Delete(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, deletePath, idQuery(id), nil)
	return err
}

// ToggleEnabled flips the enabled flag of an instance.
func (c *Client) ToggleEnabled(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodPut, enablePath, idQuery(id), nil)
	return err
}

// SaveOrUpdate creates inst when its id is 0 and updates it otherwise. It
// reports whether the server accepted the payload; a rejection is not an error.
func (c *Client) SaveOrUpdate(ctx context.Context, inst instance.Instance) (bool, error) {
	ok, _, err := c.Save(ctx, inst)
	return ok, err
}

// Save is SaveOrUpdate returning the stored instance, or the server message
// when the payload was rejected.
func (c *Client) Save(ctx context.Context, inst instance.Instance) (bool, SaveResult, error) {
	env, err := c.do(ctx, http.MethodPut, savePath, nil, inst)
	if err != nil {
		return false, SaveResult{}, err
	}
	res := SaveResult{Msg: env.Msg}
	if !env.Success {
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, &res.Fields); err != nil {
				return false, res, errors.Wrap(err, "decode rejected fields")
			}
		}
		return false, res, nil
	}
	if err := json.Unmarshal(env.Data, &res.Instance); err != nil {
		return true, res, errors.Wrap(err, "decode saved alert instance")
	}
	return true, res, nil
}

// SaveOrExplain is SaveOrUpdate also returning the server message when the
// payload was rejected.
func (c *Client) SaveOrExplain(ctx context.Context, inst instance.Instance) (bool, string, error) {
	ok, res, err := c.Save(ctx, inst)
	if err != nil || ok {
		return ok, "", err
	}
	return false, res.Msg, nil
}

type SaveResult struct {
	Instance instance.Instance
	Msg      string
	Fields   []instance.FieldError
}

// SendTest asks the server to send a test message through inst.
func (c *Client) SendTest(ctx context.Context, inst instance.Instance) error {
	env, err := c.do(ctx, http.MethodPost, sendTestPath, nil, inst)
	if err != nil {
		return err
	}
	if !env.Success {
		return &APIError{StatusCode: http.StatusOK, Msg: env.Msg}
	}
	return nil
}

// History returns up to limit recent delivery records for an instance,
// newest first. A limit of 0 returns everything the server retains.
func (c *Client) History(ctx context.Context, id, limit int) ([]history.Record, error) {
	q := idQuery(id)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	env, err := c.do(ctx, http.MethodGet, historyPath, q, nil)
	if err != nil {
		return nil, err
	}
	var records []history.Record
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	return records, nil
}
