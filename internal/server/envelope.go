package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Result codes carried in the envelope.
const (
	CodeSuccess = 0
	CodeFailure = 1
)

// TimeLayout formats the envelope time.
const TimeLayout = "2006-01-02 15:04:05"

// Result is the response envelope of every API route.
type Result struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    any    `json:"data"`
	Time    string `json:"time"`
}

func (s *Server) writeResult(w http.ResponseWriter, status int, res Result) {
	res.Time = s.now().Format(TimeLayout)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) succeed(w http.ResponseWriter, msg string, data any) {
	s.writeResult(w, http.StatusOK, Result{Code: CodeSuccess, Success: true, Msg: msg, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, data any) {
	s.writeResult(w, status, Result{Code: CodeFailure, Success: false, Msg: msg, Data: data})
}
