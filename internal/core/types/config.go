package types

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration structure
type Config struct {
	Debug       bool            `yaml:"debug"`
	MetricsAddr string          `yaml:"metrics_addr"` // empty disables the metrics endpoint
	Cache       CacheConfig     `yaml:"cache"`
	Thumbnail   ThumbnailConfig `yaml:"thumbnail"`
	Library     LibraryConfig   `yaml:"library"`
	Warm        WarmConfig      `yaml:"warm"`
	Sources     SourcesConfig   `yaml:"sources"`
}

// CacheConfig holds the directories results are written to
type CacheConfig struct {
	ThumbnailDir string `yaml:"thumbnail_dir"` // covers: <dir>/<hashkey>.png
	PageDir      string `yaml:"page_dir"`      // pages: <dir>/<hashkey>.<NNN>.jpg
	SpoolDir     string `yaml:"spool_dir"`     // local copies of remote archives
	MaxPageSize  Bytes  `yaml:"max_page_size"` // page cache budget, 0 = unbounded
}

// ThumbnailConfig holds cover geometry
type ThumbnailConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	InnerWidth     int     `yaml:"inner_width"`
	InnerHeight    int     `yaml:"inner_height"`
	Border         int     `yaml:"border"`
	MosaicAngle    float64 `yaml:"mosaic_angle"`    // degrees added per layer
	MosaicChildren int     `yaml:"mosaic_children"` // child covers composed into a directory cover
	MaxDecode      Bytes   `yaml:"max_decode"`      // decoded image budget, larger images are skipped
}

// LibraryConfig holds the persistence settings
type LibraryConfig struct {
	Database string `yaml:"database"` // sqlite file recording page counts
}

// WarmConfig holds settings of library-wide cover generation
type WarmConfig struct {
	Rate float64 `yaml:"rate"` // covers requested per second, 0 = unlimited
}

// SourcesConfig holds settings for remote archive identities
type SourcesConfig struct {
	S3        S3SourceConfig   `yaml:"s3"`
	HTTP      HTTPSourceConfig `yaml:"http"`
	RateLimit Bytes            `yaml:"rate_limit"` // download bandwidth per second, 0 = unlimited
}

// S3SourceConfig configures s3:// identities
type S3SourceConfig struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"`
}

// HTTPSourceConfig configures http(s):// identities
type HTTPSourceConfig struct {
	Headers map[string]string `yaml:"headers"`
	Timeout string            `yaml:"timeout"`
}

// ParseDuration parses a duration string with fallback to default
func ParseDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	if dur, err := time.ParseDuration(durationStr); err == nil {
		return dur
	}
	return defaultDuration
}

// DefaultBaseDir returns the per-user cache root
func DefaultBaseDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "comicloader")
	}
	return filepath.Join(os.TempDir(), "comicloader")
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	base := DefaultBaseDir()
	return Config{
		Cache: CacheConfig{
			ThumbnailDir: filepath.Join(base, "thumbnails"),
			PageDir:      filepath.Join(base, "pages"),
			SpoolDir:     filepath.Join(base, "spool"),
		},
		Thumbnail: DefaultThumbnailConfig(),
		Library: LibraryConfig{
			Database: filepath.Join(base, "library.db"),
		},
		Warm: WarmConfig{
			Rate: 0,
		},
		Sources: SourcesConfig{
			HTTP: HTTPSourceConfig{
				Headers: make(map[string]string),
				Timeout: "2m",
			},
		},
	}
}

// DefaultThumbnailConfig returns default cover geometry
func DefaultThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{
		Width:          120,
		Height:         160,
		InnerWidth:     110,
		InnerHeight:    150,
		Border:         2,
		MosaicAngle:    9,
		MosaicChildren: 3,
		MaxDecode:      Bytes(96 * 1024 * 1024),
	}
}
