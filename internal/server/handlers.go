package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mattmezza/alertdesk/internal/history"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/notifier"
	"github.com/mattmezza/alertdesk/internal/store"
)

const maxBodyBytes = 1 << 20

func queryID(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, errors.New("missing id")
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func decodeInstance(w http.ResponseWriter, r *http.Request) (instance.Instance, error) {
	var inst instance.Instance
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&inst); err != nil {
		if err == io.EOF {
			return inst, errors.New("empty request body")
		}
		return inst, errors.Wrap(err, "decode alert instance")
	}
	return inst, nil
}

// normalize runs the payload through the same transform the editor uses.
func normalize(inst instance.Instance) (instance.Instance, error) {
	form, err := instance.FormOf(inst)
	if err != nil {
		return instance.Instance{}, &instance.ValidationError{Fields: []instance.FieldError{{Field: "params", Rule: "json"}}}
	}
	return instance.Transform(form)
}

func (s *Server) storeStatus(err error) int {
	switch errors.Cause(err) {
	case store.ErrNotFound:
		return http.StatusNotFound
	case store.ErrNameExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list alert instances", zap.Error(err))
		s.fail(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if list == nil {
		list = []instance.Instance{}
	}
	s.metrics.instances.Set(float64(len(list)))
	s.succeed(w, "", list)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	err = s.store.Delete(r.Context(), id)
	s.metrics.mutations.WithLabelValues("delete", result(err)).Inc()
	if err != nil {
		s.logger.Warn("failed to delete alert instance", zap.Int("id", id), zap.Error(err))
		s.fail(w, s.storeStatus(err), err.Error(), nil)
		return
	}
	s.history.Forget(id)
	s.logger.Info("deleted alert instance", zap.Int("id", id))
	s.succeed(w, "deleted", nil)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	inst, err := s.store.ToggleEnabled(r.Context(), id)
	s.metrics.mutations.WithLabelValues("enable", result(err)).Inc()
	if err != nil {
		s.logger.Warn("failed to toggle alert instance", zap.Int("id", id), zap.Error(err))
		s.fail(w, s.storeStatus(err), err.Error(), nil)
		return
	}
	s.logger.Info("toggled alert instance", zap.Int("id", id), zap.Bool("enabled", inst.Enabled))
	s.succeed(w, "updated", inst)
}

// handleSave creates (id 0) or updates an instance. Rejected payloads are
// reported with success=false and status 200 so the caller keeps its editor open.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeInstance(w, r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	inst, err := normalize(payload)
	if err != nil {
		var ve *instance.ValidationError
		if errors.As(err, &ve) {
			s.metrics.mutations.WithLabelValues("save", "rejected").Inc()
			s.fail(w, http.StatusOK, ve.Error(), ve.Fields)
			return
		}
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	saved, err := s.store.Save(r.Context(), inst)
	if errors.Cause(err) == store.ErrNameExists {
		s.metrics.mutations.WithLabelValues("save", "rejected").Inc()
		s.fail(w, http.StatusOK, err.Error(), nil)
		return
	}
	s.metrics.mutations.WithLabelValues("save", result(err)).Inc()
	if err != nil {
		s.logger.Error("failed to save alert instance", zap.String("name", inst.Name), zap.Error(err))
		s.fail(w, s.storeStatus(err), err.Error(), nil)
		return
	}
	s.logger.Info("saved alert instance", zap.Int("id", saved.ID), zap.String("name", saved.Name), zap.Bool("created", inst.IsNew()))
	s.succeed(w, "saved", saved)
}

func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		s.fail(w, http.StatusTooManyRequests, "too many test messages, try again later", nil)
		return
	}
	payload, err := decodeInstance(w, r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	inst, err := normalize(payload)
	if err != nil {
		var ve *instance.ValidationError
		if errors.As(err, &ve) {
			s.fail(w, http.StatusOK, ve.Error(), ve.Fields)
			return
		}
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	err = s.sendTest(r, inst)
	s.metrics.testSends.WithLabelValues(string(inst.Type), result(err)).Inc()
	if inst.ID > 0 {
		rec := history.Record{Timestamp: s.now(), Success: err == nil, Message: "test message sent", Test: true}
		if err != nil {
			rec.Message = err.Error()
		}
		s.history.Add(inst.ID, rec)
	}
	if err != nil {
		s.logger.Warn("test message failed", zap.String("name", inst.Name), zap.String("type", string(inst.Type)), zap.Error(err))
		s.fail(w, http.StatusOK, err.Error(), nil)
		return
	}
	s.logger.Info("test message sent", zap.String("name", inst.Name), zap.String("type", string(inst.Type)))
	s.succeed(w, "test message sent", nil)
}

func (s *Server) sendTest(r *http.Request, inst instance.Instance) error {
	n, err := notifier.New(inst, s.notify)
	if err != nil {
		return err
	}
	msg, err := notifier.TestMessage(inst, s.templates, s.now())
	if err != nil {
		return err
	}
	return n.Send(r.Context(), msg)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw), nil)
			return
		}
	}
	records := s.history.Recent(id, limit)
	if records == nil {
		records = []history.Record{}
	}
	s.succeed(w, "", records)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}
