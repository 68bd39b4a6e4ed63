// luke - device discovery dashboard
//
// luke discovers devices behind a CoAP-to-HTTP/WebSocket gateway, serves a
// page with one widget per device and forwards the user's link, reboot and
// hide actions to the devices. Every device interaction goes through the
// gateway; luke itself never speaks CoAP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/luke-core/migrations"

	"github.com/nerrad567/luke-core/internal/api"
	"github.com/nerrad567/luke-core/internal/console"
	"github.com/nerrad567/luke-core/internal/gateway"
	"github.com/nerrad567/luke-core/internal/history"
	"github.com/nerrad567/luke-core/internal/infrastructure/config"
	"github.com/nerrad567/luke-core/internal/infrastructure/database"
	"github.com/nerrad567/luke-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/luke-core/internal/infrastructure/logging"
	"github.com/nerrad567/luke-core/internal/infrastructure/metrics"
	"github.com/nerrad567/luke-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/luke-core/internal/linkformat"
	"github.com/nerrad567/luke-core/internal/node"
	"github.com/nerrad567/luke-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options are the command line flags.
type options struct {
	configPath  string
	interactive bool
	showVersion bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("luke %s (%s, %s)\n", version, commit, date)
		return
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the command line. The config path defaults to
// LUKE_CONFIG, then to configs/config.yaml.
func parseFlags(args []string, errOut io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("luke", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.configPath, "config", getConfigPath(), "path to the YAML configuration file")
	fs.BoolVar(&opts.interactive, "interactive", false, "run the interactive console")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses LUKE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUKE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context, opts options) error { //nolint:gocognit,gocyclo // startup wiring of optional backends
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logging.Default()
	log.Info("starting luke",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// The console owns the terminal, so logs go through its writer.
	var term *console.Terminal
	if opts.interactive {
		term, err = console.NewTerminal()
		if err != nil {
			return err
		}
		defer term.Close()
		log = logging.NewWithWriter(cfg.Logging, version, term.Stdout())
	} else {
		log = logging.New(cfg.Logging, version)
	}
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	promRegistry := metrics.NewRegistry()
	m := promRegistry.Metrics
	backends := map[string]api.HealthChecker{}

	// Action history (optional)
	var historyRepo history.Repository
	var recorder session.Recorder
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo := history.NewSQLiteRepository(db.DB)
		historyRepo, recorder = repo, repo
		backends["database"] = db
		log.Info("history database ready", "path", cfg.Database.Path)
	} else {
		log.Info("history disabled")
	}

	// MQTT mirror (optional)
	var mqttClient *mqtt.Client
	var publisher session.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		publisher = mqttClient
		backends["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Points telemetry (optional)
	var telemetry session.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		backends["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, backends); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	client := gateway.New(gateway.Config{
		Service:        cfg.Gateway.Service,
		ReconnectDelay: cfg.ReconnectDelay(),
		RequestTimeout: cfg.RequestTimeout(),
	},
		gateway.WithLogger(log.Component("gateway")),
		gateway.WithMetrics(m),
	)

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"), m)
	go hub.Run(ctx)

	registry := node.NewRegistry()
	sess, err := session.New(session.Deps{
		Registry:  registry,
		Transport: client,
		CoreRD:    linkformat.Link{URL: cfg.Gateway.CoreRD.URL, Anchor: cfg.Gateway.CoreRD.Anchor},
		AutoLink:  cfg.Discovery.AutoLink,
		Notifier:  hub,
		Recorder:  recorder,
		Telemetry: telemetry,
		Publisher: publisher,
		Metrics:   m,
		Logger:    log.Component("session"),
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		log.Info("closing session")
		sess.Close()
	}()

	if mqttClient != nil {
		topic := mqtt.Topics{}.AllCommands()
		if err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), sess.HandleCommand); err != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", err)
		}
		log.Info("listening for MQTT commands", "topic", topic)
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Panel:     cfg.Panel,
		Service:   cfg.ServiceDocument(),
		Logger:    log,
		Dashboard: sess,
		Registry:  registry,
		History:   historyRepo,
		Metrics:   promRegistry,
		Backends:  backends,
		Hub:       hub,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}
	log.Info("discovery started",
		"gateway", cfg.Gateway.Service,
		"corerd", cfg.Gateway.CoreRD.URL,
		"auto_link", cfg.Discovery.AutoLink,
	)

	if term != nil {
		console.New(sess, historyRepo, term, term.Stdout()).Run(ctx)
		cancel()
	}

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, session,
	// InfluxDB, MQTT, database, terminal.
	log.Info("luke stopped")
	return nil
}

// healthCheck verifies the enabled backends are reachable.
func healthCheck(ctx context.Context, backends map[string]api.HealthChecker) error {
	var errs []error
	for name, hc := range backends {
		if err := hc.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
