// Package source resolves archive identities to local files. Plain paths and
// file:// URIs are used in place; s3:// and http(s):// archives are copied
// into a spool directory once and reused afterwards.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/metrics"
	"comicloader/internal/transfer"
	"comicloader/internal/transport"

	"golang.org/x/time/rate"
)

var ErrUnsupportedScheme = errors.New("unsupported source scheme")

const defaultHTTPTimeout = 5 * time.Minute

// Kind is how an identity is reached.
type Kind int

const (
	KindLocal Kind = iota
	KindS3
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindS3:
		return "s3"
	case KindHTTP:
		return "http"
	default:
		return "local"
	}
}

// Location is a parsed archive identity.
type Location struct {
	Kind   Kind
	Path   string // local path, object key or URL
	Bucket string
}

// Parse classifies identity.
func Parse(identity string) (Location, error) {
	scheme, rest, found := strings.Cut(identity, "://")
	if !found {
		return Location{Kind: KindLocal, Path: identity}, nil
	}
	switch strings.ToLower(scheme) {
	case "file":
		u, err := url.Parse(identity)
		if err != nil {
			return Location{}, fmt.Errorf("invalid file uri: %w", err)
		}
		return Location{Kind: KindLocal, Path: filepath.FromSlash(u.Path)}, nil
	case "s3":
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", identity)
		}
		return Location{Kind: KindS3, Bucket: bucket, Path: key}, nil
	case "http", "https":
		return Location{Kind: KindHTTP, Path: identity}, nil
	default:
		return Location{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

type FetcherOption func(*Fetcher)

func WithFetcherLogger(log *logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = log
	}
}

// WithHTTPTransfer replaces the HTTP client used for http(s) identities.
func WithFetcherMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func WithHTTPTransfer(ht *transport.HTTPTransfer) FetcherOption {
	return func(f *Fetcher) {
		f.http = ht
	}
}

// Fetcher turns identities into paths the archive codecs can open.
type Fetcher struct {
	spoolDir string
	cfg      types.SourcesConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	http     *transport.HTTPTransfer
	limiter  *rate.Limiter
	timeout  time.Duration

	mu sync.Mutex
	s3 *transport.S3Transfer
}

// NewFetcher creates a fetcher spooling remote archives into spoolDir.
func NewFetcher(cfg types.SourcesConfig, spoolDir string, opts ...FetcherOption) *Fetcher {
	timeout := types.ParseDuration(cfg.HTTP.Timeout, defaultHTTPTimeout)
	f := &Fetcher{
		spoolDir: spoolDir,
		cfg:      cfg,
		logger:   logger.Discard(),
		limiter:  transfer.NewBandwidthLimiter(cfg.RateLimit),
		timeout:  timeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.http == nil {
		f.http = transport.NewHTTPTransfer(
			transport.HTTPWithClient(transport.DefaultHTTPClient(timeout)),
			transport.HTTPWithHeaders(cfg.HTTP.Headers),
		)
	}
	return f
}

// SpoolPath is where a remote identity is copied to. The extension is kept
// so the codec can still be chosen from the name.
func (f *Fetcher) SpoolPath(identity string) string {
	ext := path.Ext(identity)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	return filepath.Join(f.spoolDir, types.Hashkey(identity)+strings.ToLower(ext))
}

// Fetch returns a local path holding the archive for identity.
func (f *Fetcher) Fetch(ctx context.Context, identity string) (string, error) {
	loc, err := Parse(identity)
	if err != nil {
		return "", err
	}
	if loc.Kind == KindLocal {
		return loc.Path, nil
	}

	dest := f.SpoolPath(identity)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(f.spoolDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.spoolDir, filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	ctx, cancel := types.NewTimeoutSubContext(ctx, f.timeout)
	defer cancel()

	rwOpts := []transfer.Option{
		transfer.WithLimiter(f.limiter),
		transfer.WithCallback(func(n int64) { f.metrics.Fetched(loc.Kind.String(), n) }),
	}
	var n int64
	switch loc.Kind {
	case KindS3:
		var s3t *transport.S3Transfer
		if s3t, err = f.s3Transfer(); err == nil {
			n, err = s3t.Download(ctx, loc.Bucket, loc.Path, transfer.WriterAt(ctx, tmp, rwOpts...))
		}
	case KindHTTP:
		n, err = f.http.Download(ctx, loc.Path, transfer.Writer(ctx, tmp, rwOpts...))
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", identity, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to rename spooled file: %w", err)
	}
	f.logger.Debug("spooled archive", "identity", identity, "kind", loc.Kind, "size", types.Bytes(n))
	return dest, nil
}

// Forget removes the spooled copy of identity, if any.
func (f *Fetcher) Forget(identity string) error {
	loc, err := Parse(identity)
	if err != nil || loc.Kind == KindLocal {
		return err
	}
	if err := os.Remove(f.SpoolPath(identity)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether identity still refers to something. Remote
// identities are assumed to exist.
func (f *Fetcher) Exists(identity string) bool {
	loc, err := Parse(identity)
	if err != nil {
		return false
	}
	if loc.Kind != KindLocal {
		return true
	}
	_, err = os.Stat(loc.Path)
	return err == nil
}

func (f *Fetcher) s3Transfer() (*transport.S3Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s3 != nil {
		return f.s3, nil
	}
	t, err := transport.NewS3Transfer(f.cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}
	f.s3 = t
	return t, nil
}
