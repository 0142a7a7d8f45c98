package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarReader reads CBR/RAR archives. RAR has no central directory and solid
// archives must be decompressed in order, so every read streams the archive
// from the start.
type rarReader struct {
	name  string
	pages []Page
}

func openRar(name string) (*rarReader, error) {
	rc, err := rardecode.OpenReader(name)
	if err != nil {
		return nil, corrupt(name, err)
	}
	defer rc.Close()

	var fileHeaders []*rardecode.FileHeader
	for {
		fh, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt(name, err)
		}
		fileHeaders = append(fileHeaders, fh)
	}

	return &rarReader{
		name:  name,
		pages: indexPages(rarHeaders(fileHeaders)),
	}, nil
}

func rarHeaders(files []*rardecode.FileHeader) []header {
	headers := make([]header, 0, len(files))
	for _, fh := range files {
		size := fh.UnPackedSize
		if fh.UnKnownSize {
			size = 0
		}
		headers = append(headers, header{
			name:  fh.Name,
			size:  size,
			isDir: fh.IsDir,
		})
	}
	return headers
}

func (r *rarReader) Format() Format {
	return FormatRar
}

func (r *rarReader) Pages() []Page {
	return r.pages
}

func (r *rarReader) ReadPage(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= len(r.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, len(r.pages))
	}
	var data []byte
	err := r.ReadPages(ctx, []int{index}, func(_ int, b []byte) error {
		data = b
		return nil
	})
	return data, err
}

// ReadPages streams the archive once. Entries stored out of page order are
// held in memory until every lower requested page was delivered.
func (r *rarReader) ReadPages(ctx context.Context, indices []int, fn func(index int, data []byte) error) error {
	order := normalizeIndices(indices, len(r.pages))
	if len(order) == 0 {
		return nil
	}
	wanted := make(map[int]int, len(order)) // archive position -> page index
	for _, index := range order {
		wanted[r.pages[index].pos] = index
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	rc, err := rardecode.OpenReader(r.name)
	if err != nil {
		return corrupt(r.name, err)
	}
	defer rc.Close()

	held := make(map[int][]byte)
	next := 0
	for pos := 0; next < len(order); pos++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fh, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return corrupt(r.name, fmt.Errorf("archive ended before page %d", order[next]))
		}
		if err != nil {
			return corrupt(r.name, err)
		}
		index, ok := wanted[pos]
		if !ok {
			continue
		}
		data, err := io.ReadAll(rc)
		if err != nil {
			return corrupt(r.name, fmt.Errorf("read %s: %w", fh.Name, err))
		}
		held[index] = data

		for next < len(order) {
			data, ok := held[order[next]]
			if !ok {
				break
			}
			delete(held, order[next])
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(order[next], data); err != nil {
				return err
			}
			next++
		}
	}
	return nil
}

func (r *rarReader) Close() error {
	return nil
}
