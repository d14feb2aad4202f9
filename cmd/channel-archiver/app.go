package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver"
	"github.com/alanbriolat/channel-archiver/batch"
	"github.com/alanbriolat/channel-archiver/database"
	"github.com/alanbriolat/channel-archiver/download"
	"github.com/alanbriolat/channel-archiver/internal/boltdb"
	"github.com/alanbriolat/channel-archiver/internal/prompt"
	"github.com/alanbriolat/channel-archiver/job"
	"github.com/alanbriolat/channel-archiver/maintenance"
	"github.com/alanbriolat/channel-archiver/provider/browser"
	"github.com/alanbriolat/channel-archiver/provider/youtube"
	"github.com/alanbriolat/channel-archiver/provider/ytdlp"
	"github.com/alanbriolat/channel-archiver/util"
)

const statusChoices = "all, pending, completed, failed"

// components are built from the config once flags have been parsed.
type components struct {
	store       job.Store
	discovery   *channel_archiver.DiscoveryRegistry
	prompter    *prompt.Prompter
	download    *download.Orchestrator
	runner      *batch.Runner
	maintenance *maintenance.Operations
}

func (c *components) Close() error {
	return c.store.Close()
}

// newApp builds the CLI. Operator-facing output goes to out, answers are read from in. onVerbose is called if
// --verbose is given.
func newApp(ctx context.Context, in io.Reader, out io.Writer, onVerbose func()) *cli.App {
	return &cli.App{
		Name:      "channel-archiver",
		Usage:     "discover and download every video from YouTube channels and playlists",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Aliases: []string{"c"}, Usage: "YouTube channel `URL`"},
			&cli.StringFlag{Name: "video", Aliases: []string{"v"}, Usage: "single YouTube video `URL` to download"},
			&cli.StringFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "YouTube playlist `URL` to download"},
			&cli.BoolFlag{Name: "scrape", Usage: "scrape videos from the channel"},
			&cli.BoolFlag{Name: "download", Aliases: []string{"d"}, Usage: "download pending videos"},
			&cli.StringFlag{Name: "list", Aliases: []string{"l"}, Usage: "list videos by `STATUS` (" + statusChoices + ")"},
			&cli.StringFlag{Name: "delete", Usage: "delete videos by `STATUS` (" + statusChoices + ")"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "ask how to name each file"},
			&cli.BoolFlag{Name: "use-id", Usage: "use video ID as filename instead of title"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip confirmation prompts"},
			&cli.StringFlag{Name: "db", Usage: "database `PATH` (default: " + channel_archiver.DefaultConfig.StorePath + ")"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "download `DIR` (default: " + channel_archiver.DefaultConfig.OutputDir + ")"},
			&cli.StringFlag{Name: "backend", Usage: "store `BACKEND` (sqlite, bolt)"},
			&cli.StringFlag{Name: "config", Usage: "load configuration from `FILE`"},
			&cli.BoolFlag{Name: "progress-bar", Usage: "show a progress bar instead of downloader output"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("verbose") && onVerbose != nil {
				onVerbose()
			}
			return run(ctx, c, in, out)
		},
		HideHelpCommand: true,
	}
}

func run(ctx context.Context, c *cli.Context, in io.Reader, out io.Writer) (err error) {
	if !c.Bool("scrape") && c.String("video") == "" && c.String("playlist") == "" && !c.Bool("download") &&
		c.String("list") == "" && c.String("delete") == "" {
		return cli.ShowAppHelp(c)
	}

	// Reject bad arguments before touching anything
	var listFilter, deleteFilter job.Filter
	if s := c.String("list"); s != "" {
		if listFilter, err = job.ParseFilter(s); err != nil {
			return cli.Exit(fmt.Sprintf("[-] Invalid status %q, expected one of: %s", s, statusChoices), 1)
		}
	}
	if s := c.String("delete"); s != "" {
		if deleteFilter, err = job.ParseFilter(s); err != nil {
			return cli.Exit(fmt.Sprintf("[-] Invalid status %q, expected one of: %s", s, statusChoices), 1)
		}
	}
	if c.Bool("scrape") && c.String("channel") == "" {
		return cli.Exit("[-] Error: --channel required for scraping", 1)
	}
	if v := c.String("video"); v != "" && util.ExtractContentID(v).IsNone() {
		return cli.Exit(fmt.Sprintf("[-] Invalid YouTube video URL: %s", v), 1)
	}

	cfg, err := channel_archiver.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	comp, err := build(ctx, cfg, in, out, c.Bool("progress-bar"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := comp.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	opts := batch.Options{
		UseTitle:         !c.Bool("use-id"),
		Interactive:      c.Bool("interactive"),
		SkipConfirmation: c.Bool("yes"),
	}

	if c.Bool("scrape") {
		if err := scrape(ctx, comp, out, c.String("channel")); err != nil {
			return err
		}
	}
	if v := c.String("video"); v != "" {
		if err := single(ctx, comp, out, v, opts); err != nil {
			return err
		}
	}
	if p := c.String("playlist"); p != "" {
		if err := playlist(ctx, comp, out, p, opts); err != nil {
			return err
		}
	}
	if c.Bool("download") {
		if _, err := comp.runner.Run(ctx, opts); err != nil {
			return err
		}
	}
	if c.String("list") != "" {
		if err := comp.maintenance.List(ctx, listFilter); err != nil {
			return err
		}
	}
	if c.String("delete") != "" {
		if _, err := comp.maintenance.Delete(ctx, deleteFilter, c.Bool("yes")); err != nil {
			return err
		}
	}
	return nil
}

func applyFlags(c *cli.Context, cfg *channel_archiver.Config) {
	if c.IsSet("db") {
		cfg.StorePath = c.String("db")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("backend") {
		cfg.StoreBackend = c.String("backend")
	}
}

func openStore(cfg channel_archiver.Config, logger *zap.Logger) (job.Store, error) {
	switch cfg.StoreBackend {
	case channel_archiver.BackendBolt:
		return boltdb.New(cfg.StorePath, logger)
	default:
		db, err := database.NewDatabase(cfg.StorePath, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

func build(ctx context.Context, cfg channel_archiver.Config, in io.Reader, out io.Writer, progressBar bool) (*components, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	store, err := openStore(cfg, channel_archiver.Logger(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open store %v: %w", cfg.StorePath, err)
	}

	tool := ytdlp.New(cfg.DownloaderBinary, cfg.Format, cfg.TitleTimeout, cfg.EnumerateTimeout)
	api := youtube.New(cfg.TitleTimeout, cfg.EnumerateTimeout)
	scraper := browser.New(browser.ChromeLauncher(cfg.NavigateTimeout), cfg.ScrollPause, cfg.MaxScrolls)
	scraper.BaseURL = cfg.BaseURL

	var titles download.TitleResolver = tool
	if cfg.TitleSource == channel_archiver.TitleSourceYoutube {
		titles = api
	}

	var sink download.Sink = download.NewEchoSink(out)
	if progressBar {
		sink = download.NewProgressSink(out)
	}

	prompter := prompt.New(in, out)
	orchestrator := download.New(store, titles, tool, sink, out, download.ConfigFrom(cfg))
	return &components{
		store:       store,
		discovery:   newDiscoveryRegistry(cfg, tool, api, scraper),
		prompter:    prompter,
		download:    orchestrator,
		runner:      batch.NewRunner(store, orchestrator, out, prompter.Confirm, batch.AskNaming(prompter.Ask)),
		maintenance: maintenance.New(store, out, prompter.Confirm),
	}, nil
}

// newDiscoveryRegistry registers both playlist strategies, the configured one first, and the browser for everything
// else.
func newDiscoveryRegistry(cfg channel_archiver.Config, flat channel_archiver.Discoverer, api channel_archiver.Discoverer, page channel_archiver.Discoverer) *channel_archiver.DiscoveryRegistry {
	var r channel_archiver.DiscoveryRegistry
	flatStrategy := channel_archiver.Strategy{Name: channel_archiver.PlaylistStrategyFlat, Accept: acceptPlaylist, Discoverer: flat}
	apiStrategy := channel_archiver.Strategy{Name: channel_archiver.PlaylistStrategyAPI, Accept: acceptPlaylist, Discoverer: api}
	if cfg.PlaylistStrategy == channel_archiver.PlaylistStrategyAPI {
		apiStrategy.Priority = channel_archiver.PriorityHighest
	} else {
		flatStrategy.Priority = channel_archiver.PriorityHighest
	}
	r.MustAdd(flatStrategy)
	r.MustAdd(apiStrategy)
	r.MustAdd(channel_archiver.Strategy{Name: "browser", Accept: acceptPage, Discoverer: page, Priority: channel_archiver.PriorityLowest})
	return &r
}

func acceptPlaylist(ref string) error {
	if util.IsPlaylistURL(ref) {
		return nil
	}
	return errors.New("not a playlist URL")
}

func acceptPage(ref string) error {
	if util.IsChannelURL(ref) {
		return nil
	}
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return nil
	}
	return errors.New("not a web page URL")
}

// discover finds the videos under ref. Failures are reported and whatever was found is still returned.
func discover(ctx context.Context, comp *components, out io.Writer, kind string, ref string) []string {
	match, err := comp.discovery.Match(ref)
	if err != nil {
		fmt.Fprintf(out, "[-] Error scraping %s: %v\n", kind, err)
		return nil
	}
	channel_archiver.Logger(ctx).Sugar().Debugw("discovering", "ref", ref, "strategy", match.StrategyName)
	urls, err := match.Discover(ctx, ref)
	if err != nil {
		fmt.Fprintf(out, "[-] Error scraping %s: %v\n", kind, err)
	}
	return urls
}

func scrape(ctx context.Context, comp *components, out io.Writer, channel string) error {
	fmt.Fprintf(out, "[*] Scraping videos from: %s\n", channel)
	urls := discover(ctx, comp, out, "channel", channel)
	fmt.Fprintf(out, "[+] Found %d videos\n", len(urls))
	added, err := batch.Enqueue(ctx, comp.store, urls, channel)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[+] Added %d new videos to database\n", added)
	return nil
}

func single(ctx context.Context, comp *components, out io.Writer, video string, opts batch.Options) error {
	url, err := util.StripPlaylistParams(video)
	if err != nil {
		return cli.Exit(fmt.Sprintf("[-] Invalid YouTube video URL: %s", video), 1)
	}
	added, err := batch.Enqueue(ctx, comp.store, []string{url}, batch.SingleVideoScope)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[+] Added %d new videos to database\n", added)

	j, err := comp.store.Get(ctx, url)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("job for %v disappeared after insert", url)
	}
	if j.Status.IsTerminal() {
		fmt.Fprintf(out, "[!] Video already %s: %s\n", j.Status, url)
		return nil
	}

	naming := channel_archiver.Naming{UseTitle: opts.UseTitle}
	if opts.Interactive {
		if naming, err = batch.AskNaming(comp.prompter.Ask)(*j, naming); err != nil {
			return err
		}
	}
	_, err = comp.download.Execute(ctx, *j, naming)
	return err
}

func playlist(ctx context.Context, comp *components, out io.Writer, ref string, opts batch.Options) error {
	fmt.Fprintf(out, "[*] Scraping videos from playlist: %s\n", ref)
	urls := discover(ctx, comp, out, "playlist", ref)
	if len(urls) == 0 {
		return nil
	}
	fmt.Fprintf(out, "[+] Found %d videos in playlist.\n", len(urls))
	added, err := batch.Enqueue(ctx, comp.store, urls, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[+] Added %d new videos to database\n", added)
	fmt.Fprintf(out, "[*] Starting download for %d videos from playlist: %s\n", len(urls), ref)
	opts.Scope = ref
	_, err = comp.runner.Run(ctx, opts)
	return err
}
