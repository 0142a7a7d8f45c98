package config

import (
	"fmt"
	"os"
	"path/filepath"

	"comicloader/internal/core/types"

	"github.com/goccy/go-yaml"
)

// LoadConfig loads configuration from a YAML file and applies defaults
func LoadConfig(configFile string) (*types.Config, error) {
	loaded := &types.Config{}

	if configFile != "" && fileExists(configFile) {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := yaml.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	config := mergeConfig(loaded, types.DefaultConfig())
	return &config, nil
}

// mergeConfig merges loaded config with defaults, with loaded values taking precedence
func mergeConfig(loaded *types.Config, defaults types.Config) types.Config {
	return types.Config{
		Debug:       loaded.Debug,
		MetricsAddr: coalesce(loaded.MetricsAddr, defaults.MetricsAddr),
		Cache: types.CacheConfig{
			ThumbnailDir: coalesce(loaded.Cache.ThumbnailDir, defaults.Cache.ThumbnailDir),
			PageDir:      coalesce(loaded.Cache.PageDir, defaults.Cache.PageDir),
			SpoolDir:     coalesce(loaded.Cache.SpoolDir, defaults.Cache.SpoolDir),
			MaxPageSize:  coalesce(loaded.Cache.MaxPageSize, defaults.Cache.MaxPageSize),
		},
		Thumbnail: types.ThumbnailConfig{
			Width:          coalesce(loaded.Thumbnail.Width, defaults.Thumbnail.Width),
			Height:         coalesce(loaded.Thumbnail.Height, defaults.Thumbnail.Height),
			InnerWidth:     coalesce(loaded.Thumbnail.InnerWidth, defaults.Thumbnail.InnerWidth),
			InnerHeight:    coalesce(loaded.Thumbnail.InnerHeight, defaults.Thumbnail.InnerHeight),
			Border:         coalesce(loaded.Thumbnail.Border, defaults.Thumbnail.Border),
			MosaicAngle:    coalesce(loaded.Thumbnail.MosaicAngle, defaults.Thumbnail.MosaicAngle),
			MosaicChildren: coalesce(loaded.Thumbnail.MosaicChildren, defaults.Thumbnail.MosaicChildren),
			MaxDecode:      coalesce(loaded.Thumbnail.MaxDecode, defaults.Thumbnail.MaxDecode),
		},
		Library: types.LibraryConfig{
			Database: coalesce(loaded.Library.Database, defaults.Library.Database),
		},
		Warm: types.WarmConfig{
			Rate: coalesce(loaded.Warm.Rate, defaults.Warm.Rate),
		},
		Sources: types.SourcesConfig{
			S3: types.S3SourceConfig{
				Region:   coalesce(loaded.Sources.S3.Region, defaults.Sources.S3.Region),
				Profile:  coalesce(loaded.Sources.S3.Profile, defaults.Sources.S3.Profile),
				Endpoint: coalesce(loaded.Sources.S3.Endpoint, defaults.Sources.S3.Endpoint),
			},
			HTTP: types.HTTPSourceConfig{
				Headers: coalesceMap(loaded.Sources.HTTP.Headers, defaults.Sources.HTTP.Headers),
				Timeout: coalesce(loaded.Sources.HTTP.Timeout, defaults.Sources.HTTP.Timeout),
			},
			RateLimit: coalesce(loaded.Sources.RateLimit, defaults.Sources.RateLimit),
		},
	}
}

// Helper functions to reduce repetitive conditional logic
func coalesce[T comparable](loaded, defaultVal T) T {
	var zero T
	if loaded != zero {
		return loaded
	}
	return defaultVal
}

func coalesceMap[K comparable, V any](loaded, defaultVal map[K]V) map[K]V {
	if len(loaded) > 0 {
		return loaded
	}
	return defaultVal
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// ResolveConfigPath resolves a config file path, checking common locations
func ResolveConfigPath(configFile string) string {
	if configFile != "" {
		if filepath.IsAbs(configFile) || fileExists(configFile) {
			return configFile
		}
	}

	commonPaths := []string{
		"comicloader.yaml",
		"config.yaml",
		"config.yml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(dir, "comicloader", "config.yaml"))
	}

	for _, path := range commonPaths {
		if fileExists(path) {
			return path
		}
	}

	return configFile // Return original even if it doesn't exist
}
