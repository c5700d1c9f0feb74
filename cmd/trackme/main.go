package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ericbrian/track-me-sub001/internal/api"
	"github.com/ericbrian/track-me-sub001/internal/config"
	"github.com/ericbrian/track-me-sub001/internal/db"
	"github.com/ericbrian/track-me-sub001/internal/monitoring"
	"github.com/ericbrian/track-me-sub001/internal/sampling"
	"github.com/ericbrian/track-me-sub001/internal/serialmux"
	"github.com/ericbrian/track-me-sub001/internal/tracking"
	"github.com/ericbrian/track-me-sub001/internal/units"
	"github.com/ericbrian/track-me-sub001/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "track.db", "Path to the SQLite database")
	devMode     = flag.Bool("dev", false, "Replay -fixtures instead of opening a serial port")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the GNSS receiver (ignored in dev mode)")
	serialSpec  = flag.String("serial", "9600/8N1", "Serial settings as baud[/framing]")
	disableGPS  = flag.Bool("disable-receiver", false, "Run the API without a receiver attached")
	fixtures    = flag.String("fixtures", "fixtures.jsonl", "Recorded receiver output replayed in dev mode")
	replayPace  = flag.Duration("replay-pace", time.Second, "Delay between replayed lines in dev mode")
	configPath  = flag.String("config", config.DefaultConfigPath, "Tuning config (.json); a missing default file means built-in defaults")
	preset      = flag.String("preset", "", "Sampling preset, overriding the config file ("+strings.Join(sampling.PresetNames(), ", ")+")")
	unitsFlag   = flag.String("units", "", "Display units for speed ("+units.GetValidUnitsString()+")")
	narrative   = flag.String("narrative", "", "Start a session with this narrative on startup")
	autoStart   = flag.Bool("start", false, "Start a session on startup even without -narrative")
	debug       = flag.Bool("debug", false, "Log rejected fixes and other detail")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	monitoring.SetLogger(log.Printf)
	monitoring.SetDebug(*debug)

	tuning, err := loadTuning(*configPath, *configPath == config.DefaultConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlagOverrides(tuning, *preset, *unitsFlag)
	samplingCfg, err := tuning.SamplingConfig()
	if err != nil {
		log.Fatalf("invalid sampling configuration: %v", err)
	}
	if !units.IsValid(tuning.GetUnits()) {
		log.Fatalf("invalid units %q: must be one of %s", tuning.GetUnits(), units.GetValidUnitsString())
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()
	store := db.NewSessionStore(database)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recovered, err := store.RecoverOrphanedSessions(ctx)
	if err != nil {
		log.Fatalf("failed to recover sessions: %v", err)
	}
	for _, s := range recovered {
		log.Printf("recovered session %s left active by a previous run", s.ID)
	}

	engine, err := sampling.NewEngine(samplingCfg)
	if err != nil {
		log.Fatalf("failed to create sampling engine: %v", err)
	}
	tracker := tracking.New(engine, store, nil)
	registry := monitoring.NewRegistry()
	metrics, err := monitoring.NewTrackerMetrics(registry)
	if err != nil {
		log.Fatalf("failed to create metrics: %v", err)
	}
	tracker.SetMetrics(metrics)

	receiver, err := openReceiver()
	if err != nil {
		log.Fatalf("failed to open receiver: %v", err)
	}
	defer receiver.Close()

	tracker.OnInterval(func(d time.Duration) {
		if err := receiver.SetInterval(d); err != nil {
			log.Printf("failed to set receiver interval to %v: %v", d, err)
		}
	})
	if err := receiver.Initialize(samplingCfg.MinSamplingInterval); err != nil {
		log.Fatalf("failed to initialize receiver: %v", err)
	}
	log.Printf("tracker %s: preset=%q units=%s", version.Get(), sampling.NameOf(samplingCfg), tuning.GetUnits())

	var wg sync.WaitGroup

	// serial IO
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := receiver.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("receiver monitor stopped: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// receiver lines -> fixes -> tracker
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := receiver.Subscribe()
		defer receiver.Unsubscribe(id)
		if err := tracker.Run(ctx, serialmux.DecodeFixes(ctx, lines)); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tracker stopped: %v", err)
		}
		log.Print("tracker routine terminated")
	}()

	if *narrative != "" || *autoStart {
		if _, err := tracker.Start(ctx, *narrative); err != nil {
			log.Printf("failed to start session: %v", err)
		}
	}

	apiServer := api.NewServer(store, tracker, api.Options{
		Units:         tuning.GetUnits(),
		RegionPadding: tuning.GetRegionPadding(),
		FetchBatch:    tuning.GetFetchBatch(),
	})
	mux := apiServer.ServeMux()
	apiServer.AttachAdminRoutes(mux)
	receiver.AttachAdminRoutes(mux)
	database.AttachAdminRoutes(mux)
	mux.Handle("/metrics", monitoring.MetricsHandler(registry))

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s", *listen)

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down HTTP server: %v", err)
		}
		log.Print("HTTP server routine terminated")
	}()

	wg.Wait()

	// close the session so the next run has nothing to recover
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sess, err := tracker.Stop(stopCtx); err == nil {
		log.Printf("ended session %s on shutdown", sess.ID)
	} else if !errors.Is(err, tracking.ErrNotTracking) {
		log.Printf("failed to end session on shutdown: %v", err)
	}
	log.Print("graceful shutdown complete")
}

// loadTuning reads the tuning file. When optional is set a missing file
// yields an empty config, which resolves to the balanced preset.
func loadTuning(path string, optional bool) (*config.TuningConfig, error) {
	if path == "" {
		return &config.TuningConfig{}, nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil && optional && errors.Is(err, fs.ErrNotExist) {
		return &config.TuningConfig{}, nil
	}
	return cfg, err
}

func applyFlagOverrides(cfg *config.TuningConfig, preset, unit string) {
	if preset != "" {
		cfg.Preset = &preset
	}
	if unit != "" {
		cfg.Units = &unit
	}
}

// openReceiver returns the fix source selected by the flags.
func openReceiver() (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableGPS:
		log.Print("receiver disabled")
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		replay, err := serialmux.OpenReplayPort(*fixtures, *replayPace)
		if err != nil {
			return nil, fmt.Errorf("open fixtures: %w", err)
		}
		log.Printf("replaying %s every %v", *fixtures, *replayPace)
		return serialmux.NewSerialMux[*serialmux.ReplayPort](replay), nil
	default:
		opts, err := serialmux.ParsePortSpec(*serialSpec)
		if err != nil {
			return nil, err
		}
		mux, err := serialmux.NewRealSerialMux(*port, opts)
		if err != nil {
			return nil, err
		}
		log.Printf("opened receiver %s at %s", *port, opts)
		return mux, nil
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n       %s migrate <action>\n\nFlags:\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	db.PrintMigrateHelp()
}
