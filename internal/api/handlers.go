package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/persistence"
	"github.com/skobkin/wedgego/internal/scanner"
)

const (
	maxListLimit   = 500
	maxConfigBytes = 64 << 10
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

type healthResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type scanResponse struct {
	Barcode string `json:"barcode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Active        bool                         `json:"active"`
	Continuous    bool                         `json:"continuous"`
	SinglePending bool                         `json:"single_pending"`
	MultiPending  bool                         `json:"multi_pending"`
	Scanner       *connectors.ScannerStatus    `json:"scanner,omitempty"`
	Version       *connectors.VersionInfo      `json:"version,omitempty"`
	Link          *connectors.ConnectionStatus `json:"link,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Name:    h.deps.Name,
		Version: h.deps.Version,
	})
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	snap := h.deps.Session.Status()
	resp := statusResponse{
		Active:        snap.Active,
		Continuous:    snap.Continuous,
		SinglePending: snap.SinglePending,
		MultiPending:  snap.MultiPending,
	}
	if snap.Scanner.Status != "" {
		resp.Scanner = &snap.Scanner
	}
	if snap.Version.DataWedge != "" {
		resp.Version = &snap.Version
	}
	if h.deps.ConnStatus != nil {
		if link, ok := h.deps.ConnStatus(); ok {
			resp.Link = &link
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) testScan(w http.ResponseWriter, r *http.Request) {
	success := true
	if raw := strings.TrimSpace(r.URL.Query().Get("success")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "success must be a boolean")
			return
		}
		success = parsed
	}

	result, err := h.deps.Session.TestScan(success)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (h *handlers) scanOnce(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.await(w, r, h.deps.Session.ScanOnce(), timeout)
}

func (h *handlers) startScanning(w http.ResponseWriter, r *http.Request) {
	timeout, err := parseTimeout(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.await(w, r, h.deps.Session.StartScanning(), timeout)
}

func (h *handlers) stopScanning(w http.ResponseWriter, _ *http.Request) {
	h.deps.Session.StopScanning()
	w.WriteHeader(http.StatusNoContent)
}

// await blocks on req until it settles, the timeout fires or the client goes
// away. In the last two cases the request is cancelled to free its slot.
func (h *handlers) await(w http.ResponseWriter, r *http.Request, req *scanner.Request, timeout time.Duration) {
	ctx := r.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	barcode, err := req.Wait(ctx)
	if err == nil {
		writeJSON(w, http.StatusOK, scanResponse{Barcode: barcode})
		return
	}
	if ctx.Err() != nil {
		req.Cancel()
	}
	if r.Context().Err() != nil {
		h.logger.Debug("client went away before scan", "kind", req.Kind(), "request_id", RequestID(r.Context()))
		return
	}

	writeError(w, scanErrorStatus(err), err.Error())
}

func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, scanner.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, scanner.ErrSuperseded),
		errors.Is(err, scanner.ErrScanningStopped),
		errors.Is(err, context.Canceled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseTimeout(r *http.Request) (time.Duration, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("timeout"))
	if raw == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}

	return timeout, nil
}

// events streams BarcodeScanned as server-sent events until the client
// disconnects or the session closes.
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.deps.Session.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("failed to encode scan event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: BarcodeScanned\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handlers) listScans(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scans == nil {
		writeError(w, http.StatusNotFound, "scan journal is disabled")
		return
	}

	limit := persistence.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	entries, err := h.deps.Scans.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list scans", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if entries == nil {
		entries = []persistence.ScanEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) clearScans(w http.ResponseWriter, r *http.Request) {
	if h.deps.ClearScans == nil {
		writeError(w, http.StatusNotFound, "scan journal is disabled")
		return
	}
	if err := h.deps.ClearScans(r.Context()); err != nil {
		h.logger.Warn("clear scan journal failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "clear scans failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getConfig(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Config == nil {
		writeError(w, http.StatusNotFound, "config is not available")
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Config.CurrentConfig())
}

// putConfig replaces the whole config. Omitted fields take their defaults.
func (h *handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	if h.deps.Config == nil {
		writeError(w, http.StatusNotFound, "config is not available")
		return
	}

	var cfg config.AppConfig
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode config: %v", err))
		return
	}
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.deps.Config.SaveAndApplyConfig(cfg); err != nil {
		h.logger.Warn("apply config failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "apply config failed")
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Config.CurrentConfig())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
