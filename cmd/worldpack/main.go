// Command worldpack archives a Minecraft world save and serves the
// archive over HTTP for download.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/meridianmc/worldpack"
	"github.com/meridianmc/worldpack/archive"
	"github.com/meridianmc/worldpack/layout"
	"github.com/meridianmc/worldpack/server"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "worldpack:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "worldpack:", err)
		os.Exit(1)
	}
}

func run(cfg *config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	roots, skip, err := layout.Resolve(cfg.worldPath, cfg.worldName, layout.Options{
		Bukkit:           cfg.bukkit,
		IncludeOverworld: cfg.includeOverworld,
		IncludeNether:    cfg.includeNether,
		IncludeEnd:       cfg.includeEnd,
	})
	if err != nil {
		return err
	}

	dest := cfg.fileName + "." + cfg.format.Extension()
	opts := []archive.Option{
		archive.WithFormat(cfg.format),
		archive.WithWorkers(cfg.threads),
		archive.WithMemoryLimit(cfg.memoryLimitMiB << 20),
		archive.WithLogger(logger),
		archive.WithProgress(progressLogger(logger)),
	}
	if cfg.levelSet {
		opts = append(opts, archive.WithLevel(cfg.level))
	}
	if skip != nil {
		opts = append(opts, archive.WithSkip(skip))
	}

	desc, err := archive.Build(context.Background(), roots, dest, opts...)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	addr := net.JoinHostPort(cfg.bind, strconv.Itoa(int(cfg.port)))
	logger.Info("hosting world download",
		"addr", addr,
		"path", "/"+cfg.hostPath,
		"archive", desc.Path,
		"size", humanize.IBytes(desc.TotalBytes),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(desc, server.Config{HostPath: cfg.hostPath, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// progressLogger logs each build stage once as it begins.
func progressLogger(logger *slog.Logger) worldpack.ProgressFunc {
	var last atomic.Int32
	last.Store(-1)
	return func(ev worldpack.ProgressEvent) {
		for {
			cur := last.Load()
			if int32(ev.Stage) <= cur {
				return
			}
			if last.CompareAndSwap(cur, int32(ev.Stage)) {
				break
			}
		}
		switch ev.Stage {
		case worldpack.StageScanning:
			logger.Info("scanning world directories")
		case worldpack.StageCompressing:
			logger.Info("compressing",
				"files", ev.FilesTotal,
				"bytes", humanize.IBytes(ev.BytesTotal),
			)
		case worldpack.StageAssembling:
			logger.Info("writing archive", "files", ev.FilesTotal)
		case worldpack.StageComplete:
			logger.Info("archive created", "size", humanize.IBytes(ev.BytesTotal))
		}
	}
}
