// Package archive reads comic archives (CBZ/ZIP and CBR/RAR) as an ordered
// sequence of page images.
//
// Pages are the image entries of an archive sorted by their full in-archive
// name using ordinal comparison. Both codecs build that order through
// indexPages so the same file names paginate identically in either format.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrCorruptArchive    = errors.New("corrupt archive")
	ErrPageOutOfRange    = errors.New("page index out of range")
)

// Format is the closed set of supported archive codecs.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatRar
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatRar:
		return "rar"
	default:
		return "unknown"
	}
}

var (
	zipExtensions   = []string{".zip", ".cbz"}
	rarExtensions   = []string{".rar", ".cbr"}
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
)

// FormatOf selects the codec from the file extension, case-insensitive.
// The query and fragment of a URL identity are ignored.
func FormatOf(name string) Format {
	if strings.Contains(name, "://") {
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	ext := strings.ToLower(path.Ext(name))
	switch {
	case slices.Contains(zipExtensions, ext):
		return FormatZip
	case slices.Contains(rarExtensions, ext):
		return FormatRar
	default:
		return FormatUnknown
	}
}

// IsArchive reports whether name has a supported archive extension.
func IsArchive(name string) bool {
	return FormatOf(name) != FormatUnknown
}

// IsImage reports whether an in-archive name is a page image.
func IsImage(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(path.Ext(name)))
}

// Page is one image entry of an archive.
type Page struct {
	Name string // full in-archive name
	Size int64  // uncompressed size, 0 if unknown

	pos int // position in archive order
}

// Reader gives page-ordered access to one archive.
type Reader interface {
	// Format returns the codec of the archive.
	Format() Format
	// Pages returns the image entries in page order.
	Pages() []Page
	// ReadPage returns the content of page index.
	ReadPage(ctx context.Context, index int) ([]byte, error)
	// ReadPages calls fn for each index in ascending order. ctx is checked
	// before each entry; fn receives a fully read entry.
	ReadPages(ctx context.Context, indices []int, fn func(index int, data []byte) error) error
	// Close releases the archive.
	Close() error
}

// Open opens the archive at name with the codec chosen by its extension.
func Open(name string) (Reader, error) {
	return OpenAs(name, FormatOf(name))
}

// OpenAs opens the archive at name with an explicit codec. Useful when the
// local file name lost the extension of the original identity.
func OpenAs(name string, format Format) (Reader, error) {
	switch format {
	case FormatZip:
		return openZip(name)
	case FormatRar:
		return openRar(name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))
	}
}

// header is the codec-neutral view of an archive entry.
type header struct {
	name  string
	size  int64
	isDir bool
}

// indexPages drops directories and non-images, then sorts by ordinal name.
func indexPages(headers []header) []Page {
	pages := make([]Page, 0, len(headers))
	for pos, h := range headers {
		if h.isDir || !IsImage(h.name) {
			continue
		}
		pages = append(pages, Page{Name: h.name, Size: h.size, pos: pos})
	}
	slices.SortStableFunc(pages, func(a, b Page) int {
		return strings.Compare(a.Name, b.Name)
	})
	return pages
}

// normalizeIndices returns the distinct indices below n in ascending order.
func normalizeIndices(indices []int, n int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func corrupt(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(name), err)
}
