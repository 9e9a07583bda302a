// Package server answers HTTP download requests for a finished archive.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/meridianmc/worldpack"
)

// Config configures the download handler.
type Config struct {
	// HostPath is the URL path the archive is served on, without the
	// leading slash.
	HostPath string

	// Logger receives per-request diagnostics. If nil, logging is
	// disabled.
	Logger *slog.Logger
}

// New returns a handler serving the archive described by desc.
//
// GET and HEAD on the configured path stream the archive with
// Content-Length, Content-Type derived from the archive extension, a
// Content-Disposition attachment name, and the archive digest as ETag.
// Range and conditional requests are honored. The archive file is opened
// read-only per request and never written, so any number of concurrent
// downloads can share it. A missing archive is a per-request 404, never
// a server failure.
func New(desc *worldpack.ArchiveDescriptor, cfg Config) http.Handler {
	return &handler{
		desc:   desc,
		route:  "/" + strings.TrimPrefix(cfg.HostPath, "/"),
		logger: cfg.Logger,
	}
}

type handler struct {
	desc   *worldpack.ArchiveDescriptor
	route  string
	logger *slog.Logger
}

func (h *handler) log() *slog.Logger {
	if h.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/ping":
		fmt.Fprint(w, "Pong!")
	case h.route:
		h.serveArchive(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *handler) serveArchive(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.desc.Path)
	if err != nil {
		h.log().Warn("archive not available", "path", h.desc.Path, "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		h.log().Error("stat archive", "path", h.desc.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", h.desc.Format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(h.desc.Path)))
	if h.desc.Digest != "" {
		w.Header().Set("ETag", `"`+h.desc.Digest.Encoded()+`"`)
	}

	h.log().Info("serving archive", "remote", r.RemoteAddr, "method", r.Method, "bytes", fi.Size())
	http.ServeContent(w, r, "", fi.ModTime(), f)
}
