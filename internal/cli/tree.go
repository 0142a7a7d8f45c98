package cli

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"comicloader/internal/archive"
	"comicloader/internal/core/types"
	"comicloader/internal/library"

	"github.com/disiqueira/gotree/v3"
)

// pathTree renders slash separated paths as a tree, creating one node per
// directory on first use.
type pathTree struct {
	root gotree.Tree
	dirs map[string]gotree.Tree
}

func newPathTree(label string) pathTree {
	return pathTree{root: gotree.New(label), dirs: make(map[string]gotree.Tree)}
}

func (t pathTree) dir(dir string) gotree.Tree {
	if dir == "." || dir == "/" || dir == "" {
		return t.root
	}
	node, ok := t.dirs[dir]
	if !ok {
		node = t.dir(path.Dir(dir)).Add(path.Base(dir))
		t.dirs[dir] = node
	}
	return node
}

func (t pathTree) insert(name, label string) {
	t.dir(path.Dir(name)).Add(label)
}

func (t pathTree) String() string {
	return t.root.Print()
}

// PageNames lists the pages of entry in page order.
func (a *App) PageNames(ctx context.Context, entry *types.Entry) ([]string, error) {
	local, err := a.fetcher.Fetch(ctx, entry.Identity)
	if err != nil {
		return nil, err
	}
	r, err := archive.OpenAs(local, archive.FormatOf(entry.Identity))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	pages := r.Pages()
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name)
	}
	return names, nil
}

// PageTree renders the pages of an archive under their folders, each
// prefixed with its page index.
func PageTree(label string, names []string) string {
	t := newPathTree(label)
	for i, name := range names {
		t.insert(name, fmt.Sprintf("[%03d] %s", i, path.Base(name)))
	}
	return t.String()
}

// LibraryTree renders recorded comics grouped by folder relative to root,
// with their page count and reading position. Comics outside root are
// listed under their full identity.
func LibraryTree(root string, comics []library.Comic) string {
	t := newPathTree(root)
	for _, c := range comics {
		position := fmt.Sprintf("(%d/%d)", c.CurrentPage, c.PageCount)
		rel, err := filepath.Rel(root, c.Identity)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			t.root.Add(c.Identity + " " + position)
			continue
		}
		name := filepath.ToSlash(rel)
		t.insert(name, path.Base(name)+" "+position)
	}
	return t.String()
}
