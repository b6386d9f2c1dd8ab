package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/photomap/photomap/internal/app"
	"github.com/photomap/photomap/internal/config"
	"github.com/photomap/photomap/internal/dispatcher"
	"github.com/photomap/photomap/internal/influx"
	"github.com/photomap/photomap/internal/logging"
	"github.com/photomap/photomap/internal/model"
	"github.com/photomap/photomap/internal/monitor"
	intOtel "github.com/photomap/photomap/internal/otel"
	"github.com/photomap/photomap/internal/overlay"
	"github.com/photomap/photomap/internal/photos"
	"github.com/photomap/photomap/internal/surface/websocket"
	"github.com/photomap/photomap/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// BuildVersion and BuildDate can be set at build time via ldflags
var (
	BuildVersion string = "0.0.1"
	BuildDate    string = "unknown"
)

var SessionStartTime = time.Now()

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("photomap %s (%s)\n", BuildVersion, BuildDate)
		return
	}

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "photomap: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	configErr := config.Load(configDir)

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	logFile, err := os.OpenFile(logging.LogFilePath(logsDir, logging.AppName, SessionStartTime),
		os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	provider, otelFile, err := setupOTel(logsDir)
	if err != nil {
		return err
	}
	if otelFile != nil {
		defer otelFile.Close()
	}

	mapCfg := config.GetMapConfig()
	m := model.New(core.GeoPoint{Lat: mapCfg.Lat, Lng: mapCfg.Lng})

	slogManager := logging.NewSlogManager()
	logOpts := []logging.Option{logging.WithContext(logging.SnapshotContext(m.Snapshot))}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGelfWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "photomap: %v\n", err)
		} else {
			defer gw.Close()
			logOpts = append(logOpts, logging.WithGelf(gw))
		}
	}
	slogManager.Setup(logFile, config.GetString("logLevel"), provider.LoggerProvider(), logOpts...)
	logger := slogManager.Logger()

	if configErr != nil {
		logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	zlog := newZerolog(logFile)

	events, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("create event loop: %w", err)
	}

	var photoOpts []photos.Option
	influxManager := influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.log.gz"))
	if err := influxManager.Connect(); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			logger.Error("InfluxDB unavailable", "error", err)
		}
	} else {
		defer influxManager.Close()
		photoOpts = append(photoOpts, photos.WithRecorder(influxManager))
	}

	surfaceCfg := config.GetSurfaceConfig()
	widget := websocket.New(websocket.Config{URL: surfaceCfg.URL, Secret: surfaceCfg.Secret}, events, logger)

	photoCfg := config.GetPhotosConfig()
	client := photos.New(photos.Config{
		Endpoint:  photoCfg.Endpoint,
		ClientID:  photoCfg.ClientID,
		Radius:    photoCfg.Radius,
		Timeout:   photoCfg.Timeout,
		AutoClear: photoCfg.AutoClear,
	}, m.Notification, events, logger, photoOpts...)

	markers := overlay.New(widget, logger, overlay.WithIconSize(mapCfg.IconSize))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := app.New(app.Dependencies{
		Model:   m,
		Map:     widget,
		View:    widget,
		Overlay: markers,
		Photos:  client,
		Events:  events,
		Logger:  logger,
	}, app.Config{Zoom: mapCfg.Zoom, CancelSuperseded: mapCfg.CancelSuperseded})
	orch.Start(ctx)
	widget.OnReconnect(func() { events.Post(orch.MapReady) })

	if err := widget.Init(); err != nil {
		return fmt.Errorf("connect map widget: %w", err)
	}
	defer widget.Close()
	logger.Info("Map widget connected", "url", surfaceCfg.URL, "session", widget.Session())

	monitorService := monitor.NewService(monitor.Dependencies{
		Snapshot: m.Snapshot,
		Pending:  events.Pending,
		Logger:   logger,
		Dir:      logsDir,
		Interval: config.GetDuration("monitor.interval"),
	})
	if err := monitorService.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}
	defer monitorService.Stop()

	logger.Info("photomap running", "version", BuildVersion, "center", m.Snapshot().CenterText)
	err = events.Run(ctx)
	events.Close()
	logger.Info("photomap stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := slogManager.Flush(shutdownCtx); ferr != nil {
		fmt.Fprintf(os.Stderr, "photomap: %v\n", ferr)
	}
	if serr := provider.Shutdown(shutdownCtx); serr != nil {
		fmt.Fprintf(os.Stderr, "photomap: %v\n", serr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setupOTel creates the OTel provider. Its exporters write to a separate
// file in logsDir.
func setupOTel(logsDir string) (*intOtel.Provider, *os.File, error) {
	oc := config.GetOTelConfig()
	cfg := intOtel.Config{
		Enabled:      oc.Enabled,
		ServiceName:  oc.ServiceName,
		BatchTimeout: oc.BatchTimeout,
		Endpoint:     oc.Endpoint,
		Insecure:     oc.Insecure,
	}

	var f *os.File
	if oc.Enabled {
		var err error
		f, err = os.OpenFile(logging.LogFilePath(logsDir, logging.AppName+".otel", SessionStartTime),
			os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("open otel log file: %w", err)
		}
		cfg.LogWriter = f
	}

	provider, err := intOtel.New(cfg)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, nil, fmt.Errorf("setup otel: %w", err)
	}
	return provider, f, nil
}

func newZerolog(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.GetString("logLevel"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
