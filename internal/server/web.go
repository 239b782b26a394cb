package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// recordView is the template-facing shape of one stored record.
type recordView struct {
	IDNumber    string
	ReceiveTime string
	Status      string
	Warning     string
	FixTime     string
	Latitude    string
	Longitude   string
	Elevation   string
	Payload     string
	RawJSON     string
}

func newRecordView(id string, rec beacon.Record) recordView {
	view := recordView{
		IDNumber:    id,
		ReceiveTime: rec.ReceiveTime,
	}

	if raw, err := sonic.MarshalIndent(rec.Raw, "", "  "); err == nil {
		view.RawJSON = string(raw)
	}

	frame := rec.Parsed
	if frame == nil {
		view.Status = "no content"
		return view
	}
	if !frame.Valid() {
		view.Status = "decode failed: " + frame.Err
		return view
	}

	view.Status = "decoded"
	view.Warning = frame.Warning
	view.FixTime = frame.FixTime
	view.Latitude = frame.Latitude()
	view.Longitude = frame.Longitude()
	view.Elevation = frame.Elevation
	view.Payload = frame.Payload
	return view
}

// handleIndex renders the latest record of every device, newest first.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Latest(r.Context())
	if err != nil {
		s.logger.Error("Failed to load latest records.", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]recordView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, newRecordView(entry.IDNumber, entry.Record))
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{"Records": views})
}

// handleHistory renders a device's full history, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	records, err := s.store.History(r.Context(), id)
	if errors.Is(err, store.ErrUnknownDevice) {
		s.render(w, http.StatusNotFound, "notfound.html", map[string]any{"IDNumber": id})
		return
	}
	if err != nil {
		s.logger.Error("Failed to load history.", "idNumber", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Stored oldest first, shown newest first.
	views := make([]recordView, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		views = append(views, newRecordView(id, records[i]))
	}

	s.render(w, http.StatusOK, "history.html", map[string]any{"IDNumber": id, "Records": views})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template.", "template", name, "error", err)
	}
}
