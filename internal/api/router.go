package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/persistence"
	"github.com/skobkin/wedgego/internal/scanner"
)

// ScanSession is the part of scanner.Session the HTTP surface drives.
type ScanSession interface {
	ScanOnce() *scanner.Request
	StartScanning() *scanner.Request
	StopScanning()
	Subscribe() *scanner.Subscription
	TestScan(success bool) (string, error)
	Status() scanner.Snapshot
}

// ScanLister reads the scan journal.
type ScanLister interface {
	ListRecent(ctx context.Context, limit int) ([]persistence.ScanEntry, error)
}

// ConfigStore reads and replaces the persisted application config.
type ConfigStore interface {
	CurrentConfig() config.AppConfig
	SaveAndApplyConfig(cfg config.AppConfig) error
}

// Deps wires the router to the running bridge. Scans and ClearScans are nil
// when the journal is disabled. ConnStatus is nil without a relay link and
// Config is nil when the config is not editable.
type Deps struct {
	Session    ScanSession
	ConnStatus func() (connectors.ConnectionStatus, bool)
	Scans      ScanLister
	ClearScans func(ctx context.Context) error
	Config     ConfigStore
	Name       string
	Version    string
	Logger     *slog.Logger
}

func NewRouter(deps Deps) *mux.Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps, logger: deps.Logger}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(deps.Logger))

	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/status", h.status).Methods("GET")
	r.HandleFunc("/scan/test", h.testScan).Methods("POST")
	r.HandleFunc("/scan/once", h.scanOnce).Methods("POST")
	r.HandleFunc("/scan/start", h.startScanning).Methods("POST")
	r.HandleFunc("/scan/stop", h.stopScanning).Methods("POST")
	r.HandleFunc("/events", h.events).Methods("GET")
	r.HandleFunc("/scans", h.listScans).Methods("GET")
	r.HandleFunc("/scans", h.clearScans).Methods("DELETE")
	r.HandleFunc("/config", h.getConfig).Methods("GET")
	r.HandleFunc("/config", h.putConfig).Methods("PUT")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
