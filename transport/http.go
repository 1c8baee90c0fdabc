package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-proposal-sync/core"
)

const maxEventBodyBytes int64 = 1 << 20

// EventReceiver accepts one raw delivery; the inbound receiver satisfies
// it.
type EventReceiver interface {
	Receive(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// ServiceAPI is the read surface the HTTP layer exposes next to event
// ingestion.
type ServiceAPI interface {
	MappingSummary() (core.MappingSummary, error)
	ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type Server struct {
	receiver EventReceiver
	service  ServiceAPI
	logger   core.Logger
}

func NewServer(receiver EventReceiver, service ServiceAPI, logger core.Logger) *Server {
	if logger == nil {
		logger = glog.Nop()
	}
	return &Server{
		receiver: receiver,
		service:  service,
		logger:   logger,
	}
}

// Handler wires the routes onto a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events", s.handleEvent)
	mux.HandleFunc("GET /v1/stages", s.handleStages)
	mux.HandleFunc("GET /v1/activity", s.handleActivity)
	return mux
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.receiver == nil {
		s.writeError(w, transportError(
			"transport: event receiver is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes+1))
	if err != nil {
		s.writeError(w, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: read request body",
			http.StatusBadRequest,
			nil,
		))
		return
	}
	if int64(len(body)) > maxEventBodyBytes {
		s.writeError(w, transportError(
			"transport: request body exceeds limit",
			goerrors.CategoryBadInput,
			http.StatusRequestEntityTooLarge,
			map[string]any{"limit_bytes": maxEventBodyBytes},
		))
		return
	}

	result, err := s.receiver.Receive(r.Context(), core.InboundRequest{
		SourceID: firstNonEmpty(r.Header.Get("x-source-id"), "default"),
		Body:     body,
		Headers:  flattenHeaders(r.Header),
		TraceID:  strings.TrimSpace(r.Header.Get("x-trace-id")),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	s.writeJSON(w, status, map[string]any{
		"accepted": result.Accepted,
		"outcome":  result.Outcome,
		"metadata": result.Metadata,
	})
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.writeError(w, transportError(
			"transport: service is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		))
		return
	}
	summary, err := s.service.MappingSummary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.writeError(w, transportError(
			"transport: service is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		))
		return
	}
	query := r.URL.Query()
	filter := core.ActivityFilter{
		ProposalID: strings.TrimSpace(query.Get("proposal_id")),
		Status:     strings.TrimSpace(query.Get("status")),
		Page:       intParam(query.Get("page")),
		PerPage:    intParam(query.Get("per_page")),
	}
	page, err := s.service.ListActivity(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	envelope := EnvelopeFor(err)
	if !envelope.IsClientError() {
		s.logger.Error("request failed",
			"status", envelope.StatusCode,
			"text_code", envelope.TextCode,
			"error", envelope.Message,
		)
	}
	s.writeJSON(w, envelope.StatusCode, errorResponse{Error: envelope})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err.Error())
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func intParam(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
