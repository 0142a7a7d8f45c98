package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
)

// zipReader reads CBZ/ZIP archives. The central directory gives random access.
type zipReader struct {
	name  string
	rc    *zip.ReadCloser
	pages []Page
}

func openZip(name string) (*zipReader, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, corrupt(name, err)
	}
	return &zipReader{
		name:  name,
		rc:    rc,
		pages: indexPages(zipHeaders(rc.File)),
	}, nil
}

func zipHeaders(files []*zip.File) []header {
	headers := make([]header, 0, len(files))
	for _, f := range files {
		headers = append(headers, header{
			name:  f.Name,
			size:  int64(f.UncompressedSize64),
			isDir: f.FileInfo().IsDir(),
		})
	}
	return headers
}

func (z *zipReader) Format() Format {
	return FormatZip
}

func (z *zipReader) Pages() []Page {
	return z.pages
}

func (z *zipReader) ReadPage(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= len(z.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, len(z.pages))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := z.rc.File[z.pages[index].pos]
	r, err := f.Open()
	if err != nil {
		return nil, corrupt(z.name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, corrupt(z.name, fmt.Errorf("read %s: %w", f.Name, err))
	}
	return data, nil
}

func (z *zipReader) ReadPages(ctx context.Context, indices []int, fn func(index int, data []byte) error) error {
	for _, index := range normalizeIndices(indices, len(z.pages)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := z.ReadPage(ctx, index)
		if err != nil {
			return err
		}
		if err := fn(index, data); err != nil {
			return err
		}
	}
	return nil
}

func (z *zipReader) Close() error {
	return z.rc.Close()
}
