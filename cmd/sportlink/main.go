package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sportlink/internal/config"
	"sportlink/internal/metrics"
	"sportlink/internal/mqttpub"
	"sportlink/internal/publish"
	"sportlink/internal/replay"
	"sportlink/internal/sim"
	"sportlink/internal/source"
	"sportlink/internal/telemetry"
	"sportlink/internal/udp"
	"sportlink/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./sportlink.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logs := web.NewLogBuffer(cfg.Log.BufferLines)
	log.Logger = newLogger(cfg.Log.Level, os.Stderr, logs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logs); err != nil {
		log.Fatal().Err(err).Msg("sportlink failed")
	}
}

func newLogger(level string, console io.Writer, buf io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
		zerolog.ConsoleWriter{Out: buf, NoColor: true, TimeFormat: time.RFC3339},
	)
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg config.Config, logs *web.LogBuffer) error {
	logger := log.Logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	var rec *replay.Writer
	if cfg.Record.Enable {
		rec, err = replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("record open: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error().Err(err).Msg("record close failed")
			}
		}()
		logger.Info().Str("path", cfg.Record.Path).Msg("recording raw downlink")
	}

	tcfg := telemetry.Config{
		AltitudeSource: cfg.AltitudeSource(),
		MaxFrameAge:    cfg.SPort.MaxFrameAge,
		Logger:         logger.With().Str("component", "telemetry").Logger(),
	}
	if rec != nil {
		tcfg.Recorder = rec
	}
	svc := telemetry.New(tcfg)

	live := web.NewBroadcaster()
	sinks := []publish.Sink{
		publish.SinkFunc{SinkName: "web", Fn: func(s telemetry.Snapshot) error {
			live.Publish(s)
			return nil
		}},
	}

	if cfg.Publish.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.Publish.UDP.Dest)
		if err != nil {
			return fmt.Errorf("udp init: %w", err)
		}
		defer b.Close()
		sinks = append(sinks, publish.JSONSink("udp", b))
		logger.Info().Str("dest", b.Dest()).Msg("udp publishing enabled")
	}

	if m := cfg.Publish.MQTT; m.Enable {
		p, err := mqttpub.Connect(mqttpub.Config{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			QoS:      m.QoS,
			Retain:   m.Retain,
		}, logger.With().Str("component", "mqtt").Logger())
		if err != nil {
			// The broker may come up later; keep decoding.
			logger.Error().Err(err).Msg("mqtt disabled")
		} else {
			defer p.Close()
			sinks = append(sinks, p)
		}
	}

	logger.Info().
		Str("source", src.Name()).
		Str("altitude_source", cfg.AltitudeSource().String()).
		Dur("max_frame_age", cfg.SPort.MaxFrameAge).
		Msg("sportlink starting")

	if err := svc.Start(ctx, src); err != nil {
		return err
	}
	defer svc.Close()

	handler := web.Handler(web.Options{
		Telemetry: svc,
		Logs:      logs,
		Live:      live,
		Gatherer:  metrics.NewRegistry(svc),
		Logger:    logger.With().Str("component", "web").Logger(),
		Started:   time.Now(),
	})
	srv := web.NewServer(cfg.Web.Listen, handler, logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(ctx); err != nil {
			errCh <- fmt.Errorf("web: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		publish.Run(ctx, svc, cfg.Publish.Interval, sinks, logger.With().Str("component", "publish").Logger())
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	logger.Info().Msg("sportlink stopping")
	cancel()
	wg.Wait()
	return runErr
}

func buildSource(cfg config.Config) (telemetry.Source, error) {
	s := cfg.Source
	switch s.Kind {
	case "serial":
		return source.NewSerial(s.Device, s.Baud), nil
	case "tcp":
		return source.NewTCP(s.Addr), nil
	case "replay":
		return source.NewReplay(s.Replay.Path, s.Replay.Speed, s.Replay.Loop), nil
	case "sim":
		return source.NewSim(sim.Target{
			CenterLatDeg: s.Sim.CenterLatDeg,
			CenterLonDeg: s.Sim.CenterLonDeg,
			AltMeters:    s.Sim.AltMeters,
			RadiusM:      s.Sim.RadiusM,
			Period:       s.Sim.Period,
		}, s.Sim.Interval), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}
