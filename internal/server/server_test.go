package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/store"
	"github.com/vk/beacongrid/internal/wire"
)

// captureHub records broadcasts instead of pushing them anywhere.
type captureHub struct {
	entries []store.Entry
}

func (h *captureHub) Broadcast(entry store.Entry) {
	h.entries = append(h.entries, entry)
}

func newTestServer(t *testing.T) (*Server, *store.Memory, *captureHub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	hub := &captureHub{}
	return New(logger, st, hub), st, hub
}

func validBody(t *testing.T, idNumber, messageID string) []byte {
	t.Helper()
	content, err := wire.Position{
		FixTime:   "07:46:20",
		Latitude:  "N3929.37710",
		Longitude: "E11557.93466",
		Elevation: "01024.50",
		Payload:   "patrol-1",
	}.Encode()
	require.NoError(t, err)

	body, err := sonic.Marshal(beacon.Message{
		IDNumber:      idNumber,
		MessageID:     messageID,
		Content:       content,
		Time:          "2021-12-16 10:30:33",
		DeliveryCount: 1,
		NetworkMode:   1,
	})
	require.NoError(t, err)
	return body
}

func postReceive(srv *Server, body []byte, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/receive", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestReceive_AcceptsAndStores(t *testing.T) {
	t.Parallel()
	srv, st, hub := newTestServer(t)

	rec := postReceive(srv, validBody(t, "2019070111201", "1"), func(r *http.Request) {
		r.Header.Set("RequestId", "req-42")
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Equal(t, "ok", resp.Code)
	require.Equal(t, "req-42", resp.RequestID, "RequestId header must be echoed")

	history, err := st.History(context.Background(), "2019070111201")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Parsed.Valid())
	require.Equal(t, "07:46:20", history[0].Parsed.FixTime)

	require.Len(t, hub.entries, 1)
	require.Equal(t, "2019070111201", hub.entries[0].IDNumber)
}

func TestReceive_GeneratesRequestIDWhenAbsent(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	rec := postReceive(srv, validBody(t, "2019070111201", "1"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeResponse(t, rec).RequestID)
}

func TestReceive_RejectsWrongContentType(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t)

	rec := postReceive(srv, validBody(t, "2019070111201", "1"), func(r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.Equal(t, "error", resp.Code)
	require.Contains(t, resp.Message, "application/json")

	_, err := st.History(context.Background(), "2019070111201")
	require.ErrorIs(t, err, store.ErrUnknownDevice)
}

func TestReceive_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	rec := postReceive(srv, []byte("{ not json"), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", decodeResponse(t, rec).Code)
}

func TestReceive_ReportsMissingFieldsByName(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	body, err := sonic.Marshal(map[string]any{
		beacon.FieldIDNumber: "2019070111201",
		beacon.FieldTime:     "2021-12-16 10:30:33",
	})
	require.NoError(t, err)

	rec := postReceive(srv, body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.Equal(t, "error", resp.Code)
	require.Contains(t, resp.Message, beacon.FieldContent)
	require.Contains(t, resp.Message, beacon.FieldNetworkMode)
}

func TestReceive_StoresUndecodableContent(t *testing.T) {
	t.Parallel()
	srv, st, _ := newTestServer(t)

	body, err := sonic.Marshal(map[string]any{
		beacon.FieldIDNumber:      "2019070111201",
		beacon.FieldMessageID:     "1",
		beacon.FieldContent:       "definitely not hex",
		beacon.FieldTime:          "2021-12-16 10:30:33",
		beacon.FieldDeliveryCount: 1,
		beacon.FieldNetworkMode:   1,
	})
	require.NoError(t, err)

	rec := postReceive(srv, body, nil)

	require.Equal(t, http.StatusOK, rec.Code, "undecodable content is stored, not rejected")

	history, err := st.History(context.Background(), "2019070111201")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.False(t, history[0].Parsed.Valid())
}

func TestIndex_ShowsLatestPerDevice(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)
	postReceive(srv, validBody(t, "2019070111201", "1"), nil)
	postReceive(srv, validBody(t, "2019070111202", "1"), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	require.Contains(t, page, "2019070111201")
	require.Contains(t, page, "2019070111202")
	require.Contains(t, page, "/history/2019070111201")
}

func TestHistory_RendersKnownDevice(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)
	postReceive(srv, validBody(t, "2019070111201", "1"), nil)
	postReceive(srv, validBody(t, "2019070111201", "2"), nil)

	req := httptest.NewRequest(http.MethodGet, "/history/2019070111201", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "History for 2019070111201")
}

func TestHistory_UnknownDeviceIs404(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/history/unknown-device", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown-device")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK\n", rec.Body.String())
}
