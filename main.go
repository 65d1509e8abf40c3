package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"golang.org/x/sync/errgroup"

	"moving-head/internal/color"
	"moving-head/internal/config"
	"moving-head/internal/dispatch"
	"moving-head/internal/fade"
	"moving-head/internal/fixture"
	"moving-head/internal/fixture/serial"
	"moving-head/internal/fixture/sim"
	"moving-head/internal/logging"
	"moving-head/internal/mqtt"
	"moving-head/internal/server"
	"moving-head/internal/servo"
	"moving-head/internal/udp"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "YAML configuration file")
	udpAddr := flag.String("udp", "", "UDP command listen address (overrides udp.listen)")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides http.listen)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "moving-head: %v\n", err)
		os.Exit(1)
	}
	if *udpAddr != "" {
		cfg.UDP.Listen = *udpAddr
	}
	if *listenAddr != "" {
		cfg.HTTP.Listen = *listenAddr
	}

	logCloser, err := logging.Setup(cfg.Log, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "moving-head: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Debug().Msgf("Configuration:\n%s", litter.Sdump(cfg))

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Moving head stopped")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	device, err := openFixture(cfg.Fixture)
	if err != nil {
		return err
	}
	defer device.Close()

	mixer := color.NewMixer(device)
	port := servo.NewPort(device, servo.Config{
		MinAngle:    cfg.Servo.MinAngle,
		MaxAngle:    cfg.Servo.MaxAngle,
		Transit:     cfg.Servo.Transit,
		MinInterval: cfg.Servo.MinInterval,
	})
	defer port.Close()

	engine := fade.NewEngine(
		fade.WithSteps(cfg.Fade.Steps),
		fade.WithFlickerInterval(cfg.Fade.FlickerInterval),
	)
	d := dispatch.New(mixer, port, engine,
		dispatch.WithJournal(dispatch.NewJournal(cfg.Journal.Size)),
		dispatch.WithDefaultCurve(cfg.DefaultCurve()),
	)

	idle, err := mixer.Apply(cfg.IdleColor())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to set idle color")
	}

	log.Info().
		Str("fixture", cfg.Fixture.Driver).
		Str("udp", cfg.UDP.Listen).
		Str("http", cfg.HTTP.Listen).
		Str("mqtt", cfg.MQTT.Broker).
		Str("idle", idle.Hex()).
		Int("fade_steps", engine.Steps()).
		Dur("servo_transit", port.Transit()).
		Msg("Moving head starting")

	g, ctx := errgroup.WithContext(ctx)

	if cfg.UDP.Listen != "" {
		l, err := udp.Listen(cfg.UDP.Listen)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return l.Serve(ctx, d)
		})
	}

	if cfg.HTTP.Listen != "" {
		srv := server.New(server.Config{
			ListenAddr:     cfg.HTTP.Listen,
			OperatorSecret: cfg.HTTP.OperatorSecret,
		}, d, mixer, port)
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	}

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		bridge := mqtt.NewBridge(client, d, cfg.MQTT)
		g.Go(func() error {
			return bridge.Run(ctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("Shutting down...")
	return err
}

func openFixture(cfg config.FixtureConfig) (fixture.Device, error) {
	switch cfg.Driver {
	case fixture.DriverSerial:
		dev, err := serial.Open(serial.Config{
			Port:    cfg.Serial.Port,
			Baud:    cfg.Serial.Baud,
			Address: cfg.Serial.Address,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("port", cfg.Serial.Port).Int("baud", cfg.Serial.Baud).Msg("Connected to serial fixture")
		return dev, nil
	default:
		log.Info().Msg("Using simulated fixture")
		return sim.New(), nil
	}
}
