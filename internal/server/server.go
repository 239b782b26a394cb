// Package server implements the beacond HTTP surface: the ingest API, the
// operator web views, the health endpoint, and the live broadcast channel.
package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/store"
)

// Broadcaster pushes accepted records to live viewers. A nil Broadcaster
// disables the live channel.
type Broadcaster interface {
	Broadcast(entry store.Entry)
}

// Server routes beacon traffic into the store and renders the web views.
type Server struct {
	logger *slog.Logger
	store  store.Store
	hub    Broadcaster
	now    func() time.Time
}

// New builds a Server. hub may be nil.
func New(logger *slog.Logger, st store.Store, hub Broadcaster) *Server {
	return &Server{
		logger: logger,
		store:  st,
		hub:    hub,
		now:    time.Now,
	}
}

// Handler returns the full route table as an http.Handler.
func (s *Server) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/receive", s.handleReceive)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /history/{id}", s.handleHistory)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// apiResponse is the JSON envelope of every API reply.
type apiResponse struct {
	RequestID string `json:"RequestId"`
	Code      string `json:"Code"`
	Message   string `json:"Message,omitempty"`
}

// handleReceive accepts one beacon message. Messages whose position frame
// fails to decode are still stored; only transport-level problems (wrong
// content type, bad JSON, missing fields) are rejected.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(beacon.FieldRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := s.logger.With("requestID", requestID, "remoteAddr", r.RemoteAddr)

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		logger.Warn("Rejected message with wrong content type.", "contentType", contentType)
		s.writeJSON(w, http.StatusBadRequest, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "Content-Type must be application/json",
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("Failed to read request body.", "error", err)
		s.writeJSON(w, http.StatusBadRequest, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "failed to read request body",
		})
		return
	}

	var raw map[string]any
	if err := sonic.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		logger.Warn("Rejected message with malformed JSON.", "error", err)
		s.writeJSON(w, http.StatusBadRequest, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "failed to parse JSON body",
		})
		return
	}

	if missing := beacon.MissingFields(raw); len(missing) > 0 {
		logger.Warn("Rejected message with missing fields.", "missing", missing)
		s.writeJSON(w, http.StatusBadRequest, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "missing required fields: " + strings.Join(missing, ", "),
		})
		return
	}

	id, ok := beacon.IDNumber(raw)
	if !ok {
		logger.Warn("Rejected message with non-string IdNumber.")
		s.writeJSON(w, http.StatusBadRequest, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "IdNumber must be a non-empty string",
		})
		return
	}

	rec := beacon.NewRecord(raw, s.now())
	if err := s.store.Append(r.Context(), id, rec); err != nil {
		logger.Error("Failed to store message.", "idNumber", id, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, apiResponse{
			RequestID: requestID,
			Code:      "error",
			Message:   "failed to store message",
		})
		return
	}

	if !rec.Parsed.Valid() {
		logger.Warn("Stored message with undecodable content.", "idNumber", id, "parseError", rec.Parsed.Err)
	} else {
		logger.Info("Message accepted.", "idNumber", id, "fixTime", rec.Parsed.FixTime)
	}

	if s.hub != nil {
		s.hub.Broadcast(store.Entry{IDNumber: id, Record: rec})
	}

	s.writeJSON(w, http.StatusOK, apiResponse{RequestID: requestID, Code: "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK\n")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	data, err := sonic.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to marshal API response.", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
