package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/meridianmc/worldpack"
)

type config struct {
	worldPath        string
	worldName        string
	includeOverworld bool
	includeNether    bool
	includeEnd       bool
	bukkit           bool
	format           worldpack.Format
	level            int
	levelSet         bool
	threads          int
	fileName         string
	bind             string
	port             uint16
	hostPath         string
	memoryLimitMiB   uint64
	verbose          bool
}

func parseFlags(args []string) (*config, error) {
	fs := pflag.NewFlagSet("worldpack", pflag.ContinueOnError)

	worldPath := fs.StringP("world-path", "w", ".", "path to the server or saves directory containing the world directories")
	worldName := fs.StringP("world-name", "N", "world", "world directory name (directory prefix for bukkit layouts)")
	overworld := fs.BoolP("include-overworld", "o", false, "include the Overworld")
	nether := fs.BoolP("include-nether", "n", false, "include the Nether")
	end := fs.BoolP("include-end", "e", false, "include the End")
	bukkit := fs.Bool("bukkit", false, "bukkit-style layout: dimensions live in separate world_nether and world_the_end directories")
	format := fs.StringP("format", "F", "zstd", "archive format: zstd or zip")
	level := fs.IntP("level", "l", 0, "compression level: zstd -7..22, zip 0-9 (defaults: zstd -7, zip 6)")
	threads := fs.IntP("threads", "t", 0, "compression workers (0 = all CPUs)")
	fileName := fs.StringP("file-name", "f", "world", "archive name; the format extension is appended")
	bind := fs.String("bind", "0.0.0.0", "IP address to serve the download on")
	port := fs.Uint16P("port", "p", 3000, "port to serve the download on")
	hostPath := fs.StringP("host-path", "H", "world", "URL path the download is served on")
	memoryLimit := fs.Uint64("memory-limit", 1024, "MiB of compressed chunk data buffered in memory before spilling to disk")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	f, err := worldpack.ParseFormat(*format)
	if err != nil {
		return nil, err
	}

	return &config{
		worldPath:        *worldPath,
		worldName:        *worldName,
		includeOverworld: *overworld,
		includeNether:    *nether,
		includeEnd:       *end,
		bukkit:           *bukkit,
		format:           f,
		level:            *level,
		levelSet:         fs.Changed("level"),
		threads:          *threads,
		fileName:         *fileName,
		bind:             *bind,
		port:             *port,
		hostPath:         *hostPath,
		memoryLimitMiB:   *memoryLimit,
		verbose:          *verbose,
	}, nil
}
