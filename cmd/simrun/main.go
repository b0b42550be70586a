// Command simrun is the headless driver: it loads a scenario's line
// topology and passenger chain, then either batches one or more seeded
// runs to a console/CSV report (mirroring jwmdev-brt08/backend/main.go and
// driver/batch.go's two entry points) or serves the live SSE/GTFS-realtime
// API (server.Server) the way its "serve" half does, but over the
// consist/split/merge model this spec produces. Flags come from
// github.com/spf13/cobra, the way tidbyt-gtfs structures its command tree.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/engine"
	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/lineio"
	"github.com/shivirity/busimulator/model"
	"github.com/shivirity/busimulator/runstore"
	"github.com/shivirity/busimulator/server"
	"github.com/shivirity/busimulator/stats"
)

var (
	cfgPath   string
	modeFlag  string
	routeFlag string
)

func main() {
	root := &cobra.Command{
		Use:   "simrun",
		Short: "Run or serve the modular-bus-line simulation",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "scenario YAML file overriding config.Default()")
	root.PersistentFlags().StringVar(&modeFlag, "mode", "", "override scenario mode: baseline|single|multi|multi_order")
	root.PersistentFlags().StringVar(&routeFlag, "route-rule", "", "override multi-mode routing rule: down_first|up_first")

	root.AddCommand(newRunCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadScenario() (config.Scenario, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("loading scenario config: %w", err)
	}
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}
	if routeFlag != "" {
		cfg.RouteRule = routeFlag
	}
	return cfg, nil
}

// loadLineAndArrivals reads every CSV input named by the scenario's file
// paths and builds the Line topology and sorted arrival stream once; the
// result is cloned per run by the caller so runs stay share-nothing.
func loadLineAndArrivals(cfg config.Scenario) (*lineconf.Line, []*model.Passenger, [24]int, [24]int, error) {
	var depCount, depDuration [24]int

	stationsF, err := os.Open(cfg.StationsCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening stations csv: %w", err)
	}
	defer stationsF.Close()
	distF, err := os.Open(cfg.DistancesCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening distances csv: %w", err)
	}
	defer distF.Close()
	speedF, err := os.Open(cfg.SpeedsCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening speeds csv: %w", err)
	}
	defer speedF.Close()

	var sideReader io.Reader
	if cfg.SideBranchesCSV != "" {
		sideF, err := os.Open(cfg.SideBranchesCSV)
		if err != nil {
			return nil, nil, depCount, depDuration, fmt.Errorf("opening side-branches csv: %w", err)
		}
		defer sideF.Close()
		sideReader = sideF
	}

	line, err := lineio.LoadLine(lineconf.Mode(cfg.Mode), cfg.Direction, stationsF, distF, speedF, sideReader)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("loading line: %w", err)
	}

	depCountF, err := os.Open(cfg.DepCountCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening dep-count csv: %w", err)
	}
	defer depCountF.Close()
	depDurationF, err := os.Open(cfg.DepDurationCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening dep-duration csv: %w", err)
	}
	defer depDurationF.Close()
	depCount, depDuration, err = lineio.LoadDispatchTable(depCountF, depDurationF)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("loading dispatch table: %w", err)
	}

	passF, err := os.Open(cfg.PassengersCSV)
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("opening passengers csv: %w", err)
	}
	defer passF.Close()
	trips, err := lineio.LoadPassengerChain(passF, cfg.Direction, lineio.StationIndex(line))
	if err != nil {
		return nil, nil, depCount, depDuration, fmt.Errorf("loading passenger chain: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	nextID := 0
	jcfg := lineconf.JitterConfig{
		MaxStationWaitSeconds: cfg.MaxStationWaitSeconds,
		BoxLatHalfWidth:       cfg.BoxLatHalfWidth,
		BoxLonHalfWidth:       cfg.BoxLonHalfWidth,
		WalkSpeedMps:          cfg.WalkSpeedMps,
		CrowdInterval:         cfg.CrowdIntervalSeconds,
		CrowdLowerBound:       cfg.CrowdLowerBound,
		CrowdUpperBound:       cfg.CrowdUpperBound,
		PeakWindows:           cfg.PeakWindows(),
		CanTurnAtPeakHours:    cfg.CanTurnAtPeakHours,
	}
	arrivals := lineconf.BuildArrivalStream(trips, line, jcfg, rng, func() int { nextID++; return nextID })

	return line, arrivals, depCount, depDuration, nil
}

type runResult struct {
	seed    int64
	summary stats.Summary
}

func newRunCmd() *cobra.Command {
	var runs, parallel int
	var reportPath, storeKind, dsn, sqlitePath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one or more seeded simulation instances and report statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			cfg, err := loadScenario()
			if err != nil {
				return err
			}
			line, arrivals, depCount, depDuration, err := loadLineAndArrivals(cfg)
			if err != nil {
				return err
			}

			var store runstore.Store
			switch storeKind {
			case "":
			case "postgres":
				store, err = runstore.NewPostgresStore(cmd.Context(), dsn)
				if err != nil {
					return fmt.Errorf("opening postgres run store: %w", err)
				}
			case "sqlite":
				store, err = runstore.NewSQLiteStore(sqlitePath)
				if err != nil {
					return fmt.Errorf("opening sqlite run store: %w", err)
				}
			default:
				return fmt.Errorf("unknown -store %q (want postgres|sqlite)", storeKind)
			}
			if store != nil {
				defer store.Close()
			}

			if runs < 1 {
				runs = 1
			}
			if parallel < 1 {
				parallel = runs
			}

			results := make([]runResult, runs)
			sem := make(chan struct{}, parallel)
			var wg sync.WaitGroup
			for i := 0; i < runs; i++ {
				wg.Add(1)
				sem <- struct{}{}
				go func(i int) {
					defer wg.Done()
					defer func() { <-sem }()

					runCfg := cfg
					runCfg.Seed = cfg.Seed + int64(i)
					eng := engine.New(runCfg, line.Clone(), model.ClonePassengers(arrivals), depCount, depDuration)
					summary := eng.Run()
					results[i] = runResult{seed: runCfg.Seed, summary: summary}
					log.Info("run complete", "seed", runCfg.Seed, "incomplete", summary.Incomplete)
				}(i)
			}
			wg.Wait()

			if store != nil {
				now := time.Now()
				for _, r := range results {
					rec := runstore.Record{RunAt: now, Scenario: cfg, Summary: r.summary}
					rec.Scenario.Seed = r.seed
					if err := store.SaveRun(cmd.Context(), rec); err != nil {
						log.Error("saving run record", "error", err)
					}
				}
			}

			if reportPath != "" {
				if err := writeReport(reportPath, results, cfg); err != nil {
					log.Error("writing report", "error", err)
				}
			}

			printConsoleReport(results, cfg)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 1, "number of independently seeded runs")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max concurrent runs (0 = runs)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a CSV report to this file (timestamp appended)")
	cmd.Flags().StringVar(&storeKind, "store", "", "persist each run: postgres|sqlite")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string (with -store postgres)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "runs.db", "sqlite file path (with -store sqlite)")

	return cmd
}

// writeReport mirrors driver/batch.go's manual CSV construction (a header
// line plus one fmt.Fprintf row per run) over the timestamp-suffixed path
// convention the teacher uses for -report.
func writeReport(path string, results []runResult, cfg config.Scenario) error {
	ts := time.Now().Format("20060102-150405")
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	outPath := fmt.Sprintf("%s-%s%s", base, ts, ext)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "seed,mode,route_rule,incomplete,avg_in_vehicle_min,avg_full_journey_min,avg_bus_wait_min,avg_station_wait_min,power_condition_kwh,driver_wage_wan,carbon_emission_g,max_occupancy_rate,avg_occupancy_rate")
	for _, r := range results {
		s := r.summary
		fmt.Fprintf(f, "%d,%s,%s,%t,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f,%.3f\n",
			r.seed, cfg.Mode, cfg.RouteRule, s.Incomplete,
			s.AvgInVehicleMin, s.AvgFullJourneyMin, s.AvgBusWaitMin, s.AvgStationWaitMin,
			s.PowerConsumpConditionKWh, s.DriverWageWan, s.CarbonEmissionG,
			s.MaxOccupancyRate, s.AvgOccupancyRate)
	}
	slog.Default().Info("CSV report written", "path", outPath)
	return nil
}

func printConsoleReport(results []runResult, cfg config.Scenario) {
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("Mode: %s  Route rule: %s  Runs: %d\n", cfg.Mode, cfg.RouteRule, len(results))

	var sumInVehicle, sumWait, sumFull, sumOccup, sumPower float64
	incomplete := 0
	for _, r := range results {
		s := r.summary
		if s.Incomplete {
			incomplete++
		}
		sumInVehicle += s.AvgInVehicleMin
		sumWait += s.AvgBusWaitMin
		sumFull += s.AvgFullJourneyMin
		sumOccup += s.AvgOccupancyRate
		sumPower += s.PowerConsumpConditionKWh
		fmt.Printf("seed=%d incomplete=%t avg_in_vehicle=%.2fmin avg_wait=%.2fmin avg_occupancy=%.2f power=%.1fkWh\n",
			r.seed, s.Incomplete, s.AvgInVehicleMin, s.AvgBusWaitMin, s.AvgOccupancyRate, s.PowerConsumpConditionKWh)
	}
	n := float64(len(results))
	fmt.Printf("--- across %d run(s), %d incomplete ---\n", len(results), incomplete)
	fmt.Printf("avg in-vehicle: %.2f min, avg bus wait: %.2f min, avg full journey: %.2f min, avg occupancy: %.2f, avg power: %.1f kWh\n",
		sumInVehicle/n, sumWait/n, sumFull/n, sumOccup/n, sumPower/n)
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live SSE tick stream and GTFS-realtime feed over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))

			cfg, err := loadScenario()
			if err != nil {
				return err
			}
			line, arrivals, depCount, depDuration, err := loadLineAndArrivals(cfg)
			if err != nil {
				return err
			}

			srv := server.New(cfg, line, arrivals, depCount, depDuration, log)
			log.Info("listening", "addr", addr, "mode", cfg.Mode)
			return http.ListenAndServe(addr, srv.Router())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
