package app

import (
	"github.com/skobkin/wedgego/internal/api"
)

// StartAPI serves the HTTP surface on the configured address until the
// runtime closes. It is a no-op when the API is disabled.
func (r *Runtime) StartAPI() error {
	cfg := r.CurrentConfig().API
	if !cfg.Enabled {
		return nil
	}

	logger := r.LogManager.Logger("api")
	deps := api.Deps{
		Session:    r.Session,
		ConnStatus: r.CurrentConnStatus,
		Config:     r,
		Name:       Name,
		Version:    BuildVersionWithDate(),
		Logger:     logger,
	}
	if r.ScanRepo != nil {
		deps.Scans = r.ScanRepo
		deps.ClearScans = r.ClearHistory
	}

	srv, err := api.Listen(cfg.Listen, api.NewRouter(deps), logger)
	if err != nil {
		return err
	}
	srv.Serve(r.Ctx)

	r.mu.Lock()
	r.APIServer = srv
	r.mu.Unlock()

	return nil
}
