package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tvepg/internal/capture"
	"tvepg/internal/config"
	"tvepg/internal/guide"
	appLog "tvepg/internal/log"
	"tvepg/internal/render"
	"tvepg/internal/source"
	"tvepg/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	capture    bool
	debug      bool
}

// paths are the on-disk locations of the fetch cache and the preview.
type paths struct {
	cacheDir    string
	previewPath string
}

func main() {
	os.Exit(run())
}

// run wires the service and returns the process exit code.
func run() int {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("tvepg starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"render_interval_seconds", conf.RenderIntervalSeconds,
		"tvheadend", conf.TVHeadend.URL != "",
		"ics_count", len(conf.ICS),
		"static_channel_count", len(conf.StaticChannels),
		"once", flags.once,
		"capture", flags.capture,
	)

	p := resolvePaths(flags.debug)
	loader := source.NewLoader(conf, source.NewFetcher(p.cacheDir))
	svc := guide.New(loader, conf.EPG(), conf.RenderInterval())

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return runOnce(ctx, conf, svc)
	}

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		appLog.Error("failed to listen", err, "listen", conf.Listen)
		return 1
	}
	if err := runServer(ctx, ln, conf, svc, p, flags.capture); err != nil {
		appLog.Error("server stopped with error", err)
		return 1
	}
	appLog.Info("tvepg exiting")
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/tvepg/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the guide to the terminal and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Capture /guide to preview.png after every refresh")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local ./cache directories")

	flag.Parse()

	return cfg
}

func resolvePaths(debug bool) paths {
	if debug {
		return paths{cacheDir: "./cache/sources", previewPath: "./cache/preview.png"}
	}
	return paths{cacheDir: "/var/lib/tvepg/cache", previewPath: "/var/lib/tvepg/preview.png"}
}

// runOnce refreshes, prints the terminal guide and returns the exit code.
func runOnce(ctx context.Context, conf *config.Config, svc *guide.Service) int {
	refreshErr := svc.Refresh(ctx)

	grid, err := svc.Grid(time.Now())
	if err != nil {
		msg := render.Placeholder(false, "")
		if refreshErr != nil {
			msg = render.Placeholder(false, refreshErr.Error())
		}
		fmt.Fprintln(os.Stderr, msg)
		return 1
	}

	loc, _ := conf.Location()
	fmt.Println(render.Terminal(grid, render.TermOptions{
		Location:    loc,
		LastRefresh: svc.Status().LastRefresh,
	}))
	if refreshErr != nil {
		fmt.Fprintln(os.Stderr, "warning:", refreshErr)
	}
	return 0
}

// runServer serves HTTP on ln and refreshes on the cron schedule until ctx
// ends. The first refresh starts once ln is accepting, so a capture of
// /guide can reach the server.
func runServer(ctx context.Context, ln net.Listener, conf *config.Config, svc *guide.Service, p paths, doCapture bool) error {
	loc, err := conf.Location()
	if err != nil {
		loc = time.Local
	}

	var captureMu sync.Mutex
	captureGuide := func(ctx context.Context) {
		if !doCapture {
			return
		}
		captureMu.Lock()
		defer captureMu.Unlock()

		opts := capture.CaptureOptions{
			URL:        capture.GuideURL(ln.Addr().String()),
			OutputPath: p.previewPath,
			Width:      conf.Capture.Width,
			Height:     conf.Capture.Height,
		}
		if conf.BasicAuth != nil {
			opts.Username = conf.BasicAuth.Username
			opts.Password = conf.BasicAuth.Password
		}
		if err := capture.CaptureGuidePNG(ctx, opts); err != nil {
			appLog.Error("guide capture failed", err, "url", opts.URL)
			return
		}
		appLog.Info("guide captured", "path", p.previewPath)
	}

	refresh := func() {
		if err := svc.Refresh(ctx); err != nil {
			appLog.Warn("scheduled refresh incomplete", "error", err.Error())
		}
		captureGuide(ctx)
	}

	if err := os.MkdirAll(filepath.Dir(p.previewPath), 0o755); err != nil {
		appLog.Error("failed to create preview directory", err, "path", p.previewPath)
	}

	srv := web.NewServer(conf, svc, p.previewPath)
	srv.OnRefresh = captureGuide
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(conf.RefreshCron, refresh); err != nil {
		ln.Close()
		return fmt.Errorf("schedule refresh %q: %w", conf.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go refresh()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
