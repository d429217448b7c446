package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/iis-server-builder/internal/catalog"
	"github.com/oshokin/iis-server-builder/internal/domain/build"
	"github.com/oshokin/iis-server-builder/internal/logger"
	"github.com/oshokin/iis-server-builder/internal/repository/buildinfo"
)

// Pipeline is the slice of the orchestrator the HTTP layer consumes:
// snapshots, probes and fire-and-forget build triggers.
type Pipeline interface {
	Status() *build.State
	CheckForUpdate(ctx context.Context) (*catalog.VersionProbe, error)
	RequestBuild(probe *catalog.VersionProbe)
}

// handler glues the pipeline and the published artifacts to HTTP.
type handler struct {
	// pipeline exposes the build state machine.
	pipeline Pipeline
	// repo serves the build manifest.
	repo *buildinfo.Repository
	// archivePath is the canonical location of the published pack.
	archivePath string
}

// buildResponse is returned by the build trigger endpoint.
type buildResponse struct {
	// Accepted reports whether a build was started (or joined).
	Accepted bool `json:"accepted"`
	// Probe carries the update check result the decision was based on.
	Probe *catalog.VersionProbe `json:"probe"`
}

// errorResponse is the JSON shape of failures.
type errorResponse struct {
	Error string `json:"error"`
}

// newRouter assembles the HTTP surface.
func newRouter(h *handler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/api/status", h.status)
	router.Post("/api/build", h.triggerBuild)
	router.Get("/api/manifest", h.manifest)
	router.Get("/download", h.download)

	return router
}

// status returns a read-only snapshot of the progress record.
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.pipeline.Status())
}

// triggerBuild probes the catalog and starts a build when one is due.
// Probe failures surface here so the caller can keep serving the
// previously built artifact.
func (h *handler) triggerBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	probe, err := h.pipeline.CheckForUpdate(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Update check failed", "error", err)
		writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Error: err.Error()})

		return
	}

	accepted := probe.HasUpdate || !h.archiveExists()
	if accepted {
		h.pipeline.RequestBuild(probe)
	}

	writeJSON(ctx, w, http.StatusAccepted, buildResponse{
		Accepted: accepted,
		Probe:    probe,
	})
}

// manifest returns the build manifest of the published archive.
func (h *handler) manifest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	manifest, err := h.repo.LoadManifest(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, buildinfo.ErrNotFound) {
			status = http.StatusNotFound
		}

		writeJSON(ctx, w, status, errorResponse{Error: err.Error()})

		return
	}

	writeJSON(ctx, w, http.StatusOK, manifest)
}

// download serves the published archive, 404 until the first successful build.
func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	if !h.archiveExists() {
		writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: "no archive built yet"})
		return
	}

	http.ServeFile(w, r, h.archivePath)
}

// archiveExists reports whether a published archive is on disk.
func (h *handler) archiveExists() bool {
	_, err := os.Stat(h.archivePath)

	return err == nil
}

// writeJSON encodes the payload with the provided status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warnf(ctx, "Could not encode response: %v", err)
	}
}
