package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"comicloader/internal/cli"
	"comicloader/internal/config"
	"comicloader/internal/core/logger"
	"comicloader/internal/core/progress"
	"comicloader/internal/core/types"
	"comicloader/internal/loader"

	"github.com/alecthomas/kong"
)

type CoverCmd struct {
	Identities []string `arg:"" help:"Comic archives or library directories (path, file://, s3:// or http(s)://)"`
}

type PagesCmd struct {
	Identity string `arg:"" help:"Comic archive"`
	Start    int    `short:"s" long:"start" default:"-1" help:"First page, defaults to the last reading position"`
	Count    int    `short:"n" long:"count" default:"10" help:"Number of pages"`
}

type ListCmd struct {
	Identity string `arg:"" optional:"" help:"Comic archive to list pages of; lists the library when omitted"`
	Root     string `short:"r" long:"root" default:"." help:"Library root used to shorten paths"`
}

type WarmCmd struct {
	Root string `arg:"" type:"existingdir" help:"Library directory"`
	Rate float64 `long:"rate" default:"-1" help:"Covers per second, overrides the configured rate"`
}

type EvictCmd struct {
	Identities []string `arg:"" help:"Comics to drop from the caches"`
}

type PruneCmd struct{}

type StatsCmd struct{}

type TrimCmd struct {
	Max string `arg:"" optional:"" help:"Page cache budget such as 500MiB, defaults to cache.max_page_size"`
}

type ConfigCmd struct {
	Write string `short:"w" long:"write" help:"Write the effective configuration to this file"`
}

type CLI struct {
	Version    kong.VersionFlag `short:"v" long:"version" help:"Print version and exit"`
	ConfigFile string           `short:"c" long:"config" default:"${config_file}" help:"Path to config file"`
	Debug      bool             `short:"d" long:"debug" help:"Enable debug logging"`
	NoColor    bool             `long:"no-color" help:"Disable colored log output"`

	Cover  CoverCmd  `cmd:"cover" help:"Generate cover thumbnails"`
	Pages  PagesCmd  `cmd:"pages" help:"Extract pages of a comic"`
	List   ListCmd   `cmd:"list" help:"Show page order or the library"`
	Warm   WarmCmd   `cmd:"warm" help:"Generate covers for a whole library"`
	Evict  EvictCmd  `cmd:"evict" help:"Remove cached covers and pages"`
	Prune  PruneCmd  `cmd:"prune" help:"Evict comics whose archive disappeared"`
	Stats  StatsCmd  `cmd:"stats" help:"Show cache usage"`
	Trim   TrimCmd   `cmd:"trim" help:"Shrink the page cache to its budget"`
	Config ConfigCmd `cmd:"config" help:"Print the effective configuration"`
}

func (c *CLI) loadConfig() (*types.Config, error) {
	cfg, err := config.LoadConfig(config.ResolveConfigPath(c.ConfigFile))
	if err != nil {
		return nil, err
	}
	if c.Debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		logger.SetDefaultLevel(logger.LevelDebug)
	}
	return cfg, nil
}

func (c *CLI) logger() *logger.Logger {
	opts := []logger.LoggerOption{logger.WithName("comicloader")}
	if c.NoColor {
		opts = append(opts, logger.WithHandlerOptions(logger.WithNoColor(true)))
	}
	return logger.NewLogger(opts...)
}

// open loads the configuration and starts the app. The returned context is
// cancelled on SIGINT or SIGTERM.
func (c *CLI) open() (context.Context, *cli.App, func(), error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := types.DefaultSignalNotifySubContext()
	app, err := cli.New(ctx, cfg, cli.WithLogger(c.logger()))
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
		cancel()
	}
	return ctx, app, closeFn, nil
}

func (c *CoverCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	var errs []error
	for _, identity := range c.Identities {
		entry, err := app.Entry(ctx, identity)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		path, err := app.Cover(ctx, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Printf("%s\t%s\n", entry, path)
	}
	return errors.Join(errs...)
}

func (c *PagesCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	entry, err := app.Entry(ctx, c.Identity)
	if err != nil {
		return err
	}
	start := c.Start
	if start < 0 {
		start = entry.CurrentPage
	}

	bars := progress.NewProgress()
	bars.AddBar(entry.Hashkey, filepath.Base(entry.Identity), int64(c.Count))
	last := time.Now()
	var paths []string
	f, err := app.Pages(ctx, entry, start, c.Count, func(p loader.Progress) {
		if p.Total > 0 {
			bars.SetTotal(entry.Hashkey, int64(min(c.Count, max(0, p.Total-start))))
		}
		bars.IncrementBar(entry.Hashkey, 1, time.Since(last))
		last = time.Now()
		paths = append(paths, p.Path)
	})
	bars.CloseBar(entry.Hashkey)
	bars.Wait()
	if err != nil {
		return err
	}

	for _, path := range paths {
		fmt.Println(path)
	}
	fmt.Fprintf(os.Stderr, "%d of %d pages from %s\n", len(paths), f.Pages, entry)
	return nil
}

func (c *ListCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	if c.Identity == "" {
		comics, err := app.Comics(ctx)
		if err != nil {
			return err
		}
		base, err := filepath.Abs(c.Root)
		if err != nil {
			return err
		}
		fmt.Print(cli.LibraryTree(base, comics))
		return nil
	}

	entry, err := app.Entry(ctx, c.Identity)
	if err != nil {
		return err
	}
	names, err := app.PageNames(ctx, entry)
	if err != nil {
		return err
	}
	fmt.Print(cli.PageTree(filepath.Base(entry.Identity), names))
	return nil
}

func (c *WarmCmd) Run(root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if c.Rate >= 0 {
		cfg.Warm.Rate = c.Rate
	}
	ctx, cancel := types.DefaultSignalNotifySubContext()
	defer cancel()
	app, err := cli.New(ctx, cfg, cli.WithLogger(root.logger()))
	if err != nil {
		return err
	}
	defer app.Close()

	go func() {
		if err := app.ServeMetrics(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "metrics: %v\n", err)
		}
	}()

	const barID = "warm"
	bars := progress.NewProgress()
	bars.AddBar(barID, "covers", 0)
	var (
		mu     sync.Mutex
		queued int64
		last   = time.Now()
	)
	result, err := app.Warm(ctx, c.Root,
		func(*types.Entry) {
			queued++
			bars.SetTotal(barID, queued)
		},
		func(loader.Finished) {
			mu.Lock()
			defer mu.Unlock()
			bars.IncrementBar(barID, 1, time.Since(last))
			last = time.Now()
		},
	)
	bars.CloseBar(barID)
	bars.Wait()

	fmt.Fprintf(os.Stderr, "%d requested, %d done, %d failed, %d cancelled\n",
		result.Requested, result.Succeeded, result.Failed, result.Cancelled)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *EvictCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	var errs []error
	for _, identity := range c.Identities {
		errs = append(errs, app.Evict(ctx, identity))
	}
	return errors.Join(errs...)
}

func (c *PruneCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	pruned, err := app.Prune(ctx)
	for _, identity := range pruned {
		fmt.Println(identity)
	}
	return err
}

func (c *StatsCmd) Run(root *CLI) error {
	ctx, app, done, err := root.open()
	if err != nil {
		return err
	}
	defer done()

	stats, err := app.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("comics: %d\ncovers: %d\npages:  %d\nsize:   %s\n", stats.Comics, stats.Covers, stats.Pages, stats.Size)
	return nil
}

func (c *TrimCmd) Run(root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	limit := cfg.Cache.MaxPageSize
	if c.Max != "" {
		if err := limit.Set(c.Max); err != nil {
			return fmt.Errorf("invalid size %q: %w", c.Max, err)
		}
	}
	if limit == 0 {
		return errors.New("no page cache budget given or configured")
	}
	ctx, cancel := types.DefaultSignalNotifySubContext()
	defer cancel()
	app, err := cli.New(ctx, cfg, cli.WithLogger(root.logger()))
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Trim(limit)
	fmt.Printf("removed pages of %d comics, freed %s, %s left\n", res.Comics, res.Freed, res.Left)
	return err
}

func (c *ConfigCmd) Run(root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if c.Write != "" {
		return config.SaveConfig(c.Write, cfg)
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func main() {
	var c CLI
	kctx := kong.Parse(
		&c,
		kong.Vars{
			"version":     "0.1.0",
			"config_file": "comicloader.yaml",
		},
		kong.Name("comicloader"),
		kong.Description("Generate cover thumbnails and extract pages from comic archives."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	kctx.FatalIfErrorf(kctx.Run(&c))
}
