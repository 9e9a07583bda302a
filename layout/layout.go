// Package layout resolves where a world's dimension data lives on disk.
//
// Bukkit-family servers (Bukkit, Spigot, Paper) split dimensions into
// sibling directories: world, world_nether, world_the_end. Vanilla and
// Fabric keep everything inside the world directory, with the Nether in
// DIM-1 and the End in DIM1. Resolve flattens either convention into the
// plain root list and skip rules the manifest builder consumes.
package layout

import (
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/meridianmc/worldpack"
)

// ErrNothingSelected is returned when every dimension is excluded.
var ErrNothingSelected = errors.New("no dimensions selected")

// Options selects the layout convention and the dimensions to include.
type Options struct {
	Bukkit           bool
	IncludeOverworld bool
	IncludeNether    bool
	IncludeEnd       bool
}

// Vanilla directories holding overworld terrain under the world root.
var overworldDirs = map[string]bool{
	"region":   true,
	"entities": true,
	"poi":      true,
}

// Resolve returns the root directories to archive and an optional skip
// rule pruning excluded dimension subtrees. base is the server or saves
// directory; worldName is the world directory name (the directory prefix
// for bukkit layouts).
func Resolve(base, worldName string, opts Options) ([]string, worldpack.SkipFunc, error) {
	if !opts.IncludeOverworld && !opts.IncludeNether && !opts.IncludeEnd {
		return nil, nil, ErrNothingSelected
	}

	if opts.Bukkit {
		var roots []string
		if opts.IncludeOverworld {
			roots = append(roots, filepath.Join(base, worldName))
		}
		if opts.IncludeNether {
			roots = append(roots, filepath.Join(base, worldName+"_nether"))
		}
		if opts.IncludeEnd {
			roots = append(roots, filepath.Join(base, worldName+"_the_end"))
		}
		return roots, nil, nil
	}

	roots := []string{filepath.Join(base, worldName)}
	skip := func(relPath string, d fs.DirEntry) bool {
		if !d.IsDir() {
			return false
		}
		dir, name := path.Split(relPath)
		if strings.Trim(dir, "/") != worldName {
			return false
		}
		switch {
		case name == "DIM-1" && !opts.IncludeNether:
			return true
		case name == "DIM1" && !opts.IncludeEnd:
			return true
		case overworldDirs[name] && !opts.IncludeOverworld:
			return true
		}
		return false
	}
	return roots, skip, nil
}
