package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"comicloader/internal/archive"
	"comicloader/internal/core/types"
)

// FSLister lists the child comics of a library directory on the local disk.
type FSLister struct{}

// Children returns up to limit archives directly inside dir, in ordinal
// name order. Sub-directories are not descended into.
func (FSLister) Children(ctx context.Context, dir *types.Entry, limit int) ([]*types.Entry, error) {
	entries, err := os.ReadDir(dir.Identity)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !archive.IsArchive(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.SortFunc(names, strings.Compare)

	var out []*types.Entry
	for _, name := range names {
		if limit > 0 && len(out) == limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, types.NewEntry(filepath.Join(dir.Identity, name), false))
	}
	return out, nil
}

// WalkFunc receives every comic and every directory holding comics.
type WalkFunc func(entry *types.Entry) error

// Walk visits root depth-first. Archives are reported as they are found;
// a directory is reported after its contents when it directly holds at
// least one archive.
func Walk(ctx context.Context, root string, fn WalkFunc) error {
	// number of archives directly inside each directory seen so far
	counts := make(map[string]int)
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for len(dirs) > 0 && !isWithin(path, dirs[len(dirs)-1]) {
			if err := flushDir(&dirs, counts, fn); err != nil {
				return err
			}
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if !archive.IsArchive(d.Name()) {
			return nil
		}
		counts[filepath.Dir(path)]++
		return fn(types.NewEntry(path, false))
	})
	if err != nil {
		return err
	}
	for len(dirs) > 0 {
		if err := flushDir(&dirs, counts, fn); err != nil {
			return err
		}
	}
	return nil
}

func flushDir(dirs *[]string, counts map[string]int, fn WalkFunc) error {
	dir := (*dirs)[len(*dirs)-1]
	*dirs = (*dirs)[:len(*dirs)-1]
	if counts[dir] == 0 {
		return nil
	}
	return fn(types.NewEntry(dir, true))
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
