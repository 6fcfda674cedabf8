package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/alertdesk/internal/history"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/notifier"
	"github.com/mattmezza/alertdesk/internal/store"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type rawResult struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Time    string          `json:"time"`
}

type testEnv struct {
	srv   *Server
	http  *httptest.Server
	store store.Store
	out   *bytes.Buffer
	hist  *history.DeliveryBuffer
}

func newEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	out := &bytes.Buffer{}
	st := store.NewMem()
	hist := history.NewDeliveryBuffer(5)
	opts := Options{
		Store:         st,
		History:       hist,
		Notify:        notifier.Options{DryRun: true, Out: out},
		TestRateLimit: 100,
		TestBurst:     100,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := New(opts)
	srv.now = func() time.Time { return fixedNow }
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return &testEnv{srv: srv, http: hs, store: st, out: out, hist: hist}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, rawResult, http.Header) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res rawResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res, resp.Header
}

func (e *testEnv) seed(t *testing.T, inst instance.Instance) instance.Instance {
	t.Helper()
	saved, err := e.store.Save(context.Background(), inst)
	require.NoError(t, err)
	return saved
}

var hook = instance.Instance{Name: "hook", Type: instance.TypeHttp, Enabled: true, Params: `{"url":"https://hooks.example.com","method":"POST"}`}

func TestListReturnsEnvelope(t *testing.T) {
	env := newEnv(t, nil)

	status, res, hdr := env.do(t, http.MethodGet, PathList, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, "2024-03-01 09:30:00", res.Time)
	assert.JSONEq(t, `[]`, string(res.Data))
	assert.NotEmpty(t, hdr.Get(RequestIDHeader))

	env.seed(t, hook)
	env.seed(t, instance.Instance{Name: "mail", Type: instance.TypeEmail, Params: `{}`})
	_, res, _ = env.do(t, http.MethodGet, PathList, nil)
	var list []instance.Instance
	require.NoError(t, json.Unmarshal(res.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "hook", list[0].Name)
	assert.Equal(t, "mail", list[1].Name)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newEnv(t, nil)
	req, err := http.NewRequest(http.MethodGet, env.http.URL+PathList, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestSave(t *testing.T) {
	env := newEnv(t, nil)

	status, res, _ := env.do(t, http.MethodPut, PathSave, instance.Instance{
		Name: " hook ", Type: instance.TypeHttp, Enabled: true, Params: `{"url":"https://hooks.example.com","junk":1}`,
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success, res.Msg)
	var created instance.Instance
	require.NoError(t, json.Unmarshal(res.Data, &created))
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "hook", created.Name)
	assert.JSONEq(t, `{"url":"https://hooks.example.com","method":"POST"}`, created.Params)

	created.Params = `{"url":"https://hooks.example.com/v2","method":"PUT"}`
	_, res, _ = env.do(t, http.MethodPut, PathSave, created)
	require.True(t, res.Success, res.Msg)
	got, err := env.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, got.Params, "/v2")

	testCases := []struct {
		name    string
		payload any
		status  int
		msg     string
	}{
		{"validation_error", instance.Instance{Name: "bad", Type: instance.TypeHttp, Params: `{"url":"nope"}`}, http.StatusOK, "url"},
		{"unknown_type", instance.Instance{Name: "bad", Type: "Pager"}, http.StatusOK, "type"},
		{"malformed_params", instance.Instance{Name: "bad", Type: instance.TypeHttp, Params: `{"url":`}, http.StatusOK, "params"},
		{"duplicate_name", instance.Instance{Name: "HOOK", Type: instance.TypeHttp, Params: `{"url":"https://x.example.com"}`}, http.StatusOK, "already exists"},
		{"unknown_id", instance.Instance{ID: 42, Name: "ghost", Type: instance.TypeHttp, Params: `{"url":"https://x.example.com"}`}, http.StatusNotFound, "does not exist"},
		{"not_json", "plain", http.StatusBadRequest, "decode"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, res, _ := env.do(t, http.MethodPut, PathSave, tc.payload)
			assert.Equal(t, tc.status, status)
			assert.False(t, res.Success)
			assert.Equal(t, CodeFailure, res.Code)
			assert.Contains(t, res.Msg, tc.msg)
		})
	}
}

func TestDeleteAndEnable(t *testing.T) {
	env := newEnv(t, nil)
	saved := env.seed(t, hook)
	env.hist.Add(saved.ID, history.Record{Timestamp: fixedNow, Success: true})

	status, res, _ := env.do(t, http.MethodPut, PathEnable+"?id=1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
	var toggled instance.Instance
	require.NoError(t, json.Unmarshal(res.Data, &toggled))
	assert.False(t, toggled.Enabled)

	status, res, _ = env.do(t, http.MethodDelete, PathDelete+"?id=1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
	_, ok := env.hist.Latest(saved.ID)
	assert.False(t, ok)

	testCases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"delete_missing_id", http.MethodDelete, PathDelete, http.StatusBadRequest},
		{"delete_bad_id", http.MethodDelete, PathDelete + "?id=x", http.StatusBadRequest},
		{"delete_unknown", http.MethodDelete, PathDelete + "?id=1", http.StatusNotFound},
		{"enable_unknown", http.MethodPut, PathEnable + "?id=9", http.StatusNotFound},
		{"enable_zero", http.MethodPut, PathEnable + "?id=0", http.StatusBadRequest},
		{"wrong_method", http.MethodGet, PathDelete + "?id=1", http.StatusMethodNotAllowed},
		{"unknown_route", http.MethodGet, "/api/nothing", http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, res, _ := env.do(t, tc.method, tc.path, nil)
			assert.Equal(t, tc.status, status)
			assert.False(t, res.Success)
		})
	}
}

func TestSendTestDryRun(t *testing.T) {
	env := newEnv(t, nil)
	saved := env.seed(t, hook)

	status, res, _ := env.do(t, http.MethodPost, PathSendTest, saved)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success, res.Msg)
	assert.Contains(t, env.out.String(), `[dry-run] Http "hook": alertdesk test: hook`)

	_, res, _ = env.do(t, http.MethodGet, PathHistory+"?id=1", nil)
	var records []history.Record
	require.NoError(t, json.Unmarshal(res.Data, &records))
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.True(t, records[0].Test)

	unsaved := hook
	unsaved.Name = "draft"
	_, res, _ = env.do(t, http.MethodPost, PathSendTest, unsaved)
	assert.True(t, res.Success)
	assert.Empty(t, env.hist.Recent(0, 0))
}

func TestSendTestFailureIsRecorded(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "bad token")
	}))
	defer target.Close()

	env := newEnv(t, func(o *Options) { o.Notify = notifier.Options{} })
	saved := env.seed(t, instance.Instance{Name: "remote", Type: instance.TypeHttp, Params: `{"url":"` + target.URL + `"}`})

	status, res, _ := env.do(t, http.MethodPost, PathSendTest, saved)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, res.Success)
	assert.Contains(t, res.Msg, "bad token")

	rec, ok := env.hist.Latest(saved.ID)
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Message, "401")
}

func TestSendTestRateLimited(t *testing.T) {
	env := newEnv(t, func(o *Options) {
		o.TestRateLimit = 0.001
		o.TestBurst = 1
	})
	saved := env.seed(t, hook)

	status, _, _ := env.do(t, http.MethodPost, PathSendTest, saved)
	assert.Equal(t, http.StatusOK, status)
	status, res, _ := env.do(t, http.MethodPost, PathSendTest, saved)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.False(t, res.Success)
}

func TestHistoryValidation(t *testing.T) {
	env := newEnv(t, nil)
	status, _, _ := env.do(t, http.MethodGet, PathHistory, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _, _ = env.do(t, http.MethodGet, PathHistory+"?id=1&limit=-2", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, res, _ := env.do(t, http.MethodGet, PathHistory+"?id=1&limit=2", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(res.Data))
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t, nil)
	env.do(t, http.MethodGet, PathList, nil)

	resp, err := http.Get(env.http.URL + PathHealth)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(env.http.URL + PathMetrics)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(body)
	assert.True(t, strings.Contains(text, `alertdesk_http_requests_total{code="200",method="GET",route="/api/alertInstance/list"} 1`), text)
	assert.Contains(t, text, "alertdesk_instances 0")
}

func TestRecoverer(t *testing.T) {
	env := newEnv(t, nil)
	env.srv.router.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	status, res, _ := env.do(t, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, res.Success)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(Options{Store: store.NewMem()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe(ctx, ListenOptions{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
