package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/hybridgroup/mjpeg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/lotwatch/internal/capture"
	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/metrics"
	"github.com/ayusman/lotwatch/internal/monitor"
	"github.com/ayusman/lotwatch/internal/server"
	"github.com/ayusman/lotwatch/internal/snapshot"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/ayusman/lotwatch/internal/store"
	"github.com/ayusman/lotwatch/internal/tray"
)

type options struct {
	configPath string
	addr       string
	dataDir    string
	logLevel   string
	tray       bool
}

func main() {
	parser := argparse.NewParser("lotwatch", "Parking lot vehicle monitor")
	configPath := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: "lotwatch.yaml"})
	addr := parser.String("a", "addr", &argparse.Options{Help: "Dashboard listen address (overrides server.addr)", Default: ""})
	useTray := parser.Flag("", "tray", &argparse.Options{Help: "Show a system tray menu", Default: false})
	dataDir := parser.String("", "data-dir", &argparse.Options{Help: "Directory for the event database and snapshots", Default: ""})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level (debug, info, warn, error)", Default: ""})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	opts := options{
		configPath: *configPath,
		addr:       *addr,
		dataDir:    *dataDir,
		logLevel:   *logLevel,
		tray:       *useTray,
	}
	if err := run(opts); err != nil {
		log.Error().Err(err).Msg("lotwatch failed")
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	log.Info().Str("config", opts.configPath).Str("mode", string(cfg.Mode)).Msg("starting lotwatch")

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	snaps, err := snapshot.NewWriter(cfg.Snapshots.Dir)
	if err != nil {
		return err
	}

	notifier, mqttClient, err := newNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect(250)
	}

	det, err := newDetector(cfg.Detect)
	if err != nil {
		return err
	}

	board := status.NewBoard(string(cfg.Mode))
	m := metrics.New()

	var stream *mjpeg.Stream
	if cfg.Server.Stream {
		stream = mjpeg.NewStream()
	}

	mcfg := monitor.FromConfig(cfg)
	mcfg.Camera = capture.NewCamera(capture.Options{
		Source: cfg.Camera.Source,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	mcfg.Detector = det
	mcfg.Notifier = notifier
	mcfg.Snapshots = snaps
	mcfg.Store = st
	mcfg.Board = board
	mcfg.Metrics = m
	mcfg.Stream = stream

	mon, err := monitor.New(mcfg)
	if err != nil {
		if det != nil {
			det.Close()
		}
		return err
	}

	enabled := restoreEnabled(st)
	mon.SetEnabled(enabled)

	if err := mon.Start(); err != nil {
		if det != nil {
			det.Close()
		}
		return err
	}
	defer mon.Stop()

	web := server.New(server.Config{
		StaticDir:  cfg.Server.StaticDir,
		Board:      board,
		Store:      st,
		Snapshots:  snaps,
		Metrics:    m,
		Stream:     stream,
		Controller: mon,
	})
	defer web.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("dashboard listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.tray {
		t := tray.New(board, enabled)
		t.OnToggle(func(enabled bool) {
			mon.SetEnabled(enabled)
			saveEnabled(st, enabled)
		})
		t.OnDashboard(func() {
			openBrowser(dashboardURL(cfg.Server.Addr))
		})
		go func() {
			select {
			case <-ctx.Done():
			case <-mon.Done():
			case <-serveErr:
			}
			t.Quit()
		}()
		// systray needs the main goroutine.
		t.Run()
		return mon.Err()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	case <-mon.Done():
		return mon.Err()
	case err := <-serveErr:
		return fmt.Errorf("dashboard: %w", err)
	}
}

// applyOverrides lets command line flags take precedence over the file.
func applyOverrides(cfg *config.Config, opts options) {
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.dataDir != "" {
		cfg.Store.Path = filepath.Join(opts.dataDir, "lotwatch.db")
		cfg.Snapshots.Dir = filepath.Join(opts.dataDir, "snapshots")
	}
}

func setupLogging(c config.LogConfig) error {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %w", config.ErrConfiguration, err)
	}
	zerolog.SetGlobalLevel(level)

	if !c.JSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}
	return nil
}

// restoreEnabled returns the persisted pause toggle, defaulting to enabled.
func restoreEnabled(st *store.Store) bool {
	v, err := st.Settings().Get(store.SettingEnabled)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read monitor toggle")
		}
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	if !enabled {
		log.Info().Msg("monitor starts paused")
	}
	return enabled
}

func saveEnabled(st *store.Store, enabled bool) {
	if err := st.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
		log.Warn().Err(err).Msg("failed to persist monitor toggle")
	}
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}
