// Command cvrpplan plans every scenario file of a folder and writes route
// reports, plots and a grand-total summary into a timestamped results folder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"cvrpplan/internal/buildinfo"
	"cvrpplan/internal/config"
	"cvrpplan/internal/integrations"
	"cvrpplan/internal/integrations/csvfile"
	"cvrpplan/internal/integrations/parquetfile"
	"cvrpplan/internal/integrations/xlsx"
	"cvrpplan/internal/model"
	"cvrpplan/internal/opt"
	"cvrpplan/internal/report"
	"cvrpplan/internal/store"
)

// SummaryFile is the grand-total report written into each run folder.
const SummaryFile = "total_distance.txt"

// batchTenant owns the plans archived by batch runs.
const batchTenant = "batch"

func main() {
	configPath := flag.String("config", os.Getenv("CVRP_CONFIG"), "YAML config file")
	in := flag.String("in", "", "scenario folder (overrides inputDir)")
	out := flag.String("out", "", "results folder (overrides outputDir)")
	capacity := flag.Int("capacity", 0, "vehicle capacity (overrides capacity)")
	archive := flag.String("archive", "", "SQLite archive file (overrides archive)")
	seed := flag.Int64("seed", 0, "planner seed; 0 seeds from the clock")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *in != "" {
		cfg.InputDir = *in
	}
	if *out != "" {
		cfg.OutputDir = *out
	}
	if *capacity != 0 {
		cfg.Capacity = *capacity
	}
	if *archive != "" {
		cfg.Archive = *archive
	}
	if *seed != 0 {
		cfg.Planner.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Fatalf("results folder: %v", err)
	}
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.OutputDir, "cvrpplan.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
	}
	defer logFile.Close()
	logger := log.New(io.MultiWriter(os.Stderr, logFile), "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, cfg, logger, time.Now())
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}
	logger.Printf("Grand total: %.2f km over %d scenarios (%d skipped)", res.Summary.Total(), len(res.Summary.Entries), len(res.Skipped))
	logger.Printf("Results saved in %s", res.Dir)
}

type runResult struct {
	Dir     string
	Summary report.Summary
	Skipped []string
}

// run plans every scenario of cfg.InputDir. Scenarios that cannot be loaded,
// are invalid or have no feasible plan are logged and skipped.
func run(ctx context.Context, cfg config.Config, logger *log.Logger, now time.Time) (runResult, error) {
	var res runResult
	opts, err := cfg.Planner.Options()
	if err != nil {
		return res, err
	}

	scenarios, err := integrations.LoadDir(ctx, cfg.InputDir, csvfile.New(), xlsx.Source{}, parquetfile.Source{})
	if err != nil {
		var fe *integrations.FileError
		if !errors.As(err, &fe) {
			return res, err
		}
		for _, e := range unjoin(err) {
			logger.Printf("skip: %v", e)
			if errors.As(e, &fe) {
				res.Skipped = append(res.Skipped, filepath.Base(fe.Path))
			}
		}
	}
	if len(scenarios) == 0 {
		return res, fmt.Errorf("no scenarios found in %s", cfg.InputDir)
	}

	res.Dir, err = report.RunDir(cfg.OutputDir, now)
	if err != nil {
		return res, err
	}

	var archive *store.SQLite
	if cfg.Archive != "" {
		archive, err = store.NewSQLite(ctx, cfg.Archive)
		if err != nil {
			return res, fmt.Errorf("archive: %w", err)
		}
		defer archive.Close()
	}

	engine := opt.NewLocalEngine()
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		logger.Printf("Running %s (%d points)", sc.Name, len(sc.Points))
		inst, err := sc.Instance(cfg.Capacity)
		if err != nil {
			logger.Printf("skip %s: %v", sc.Name, err)
			res.Skipped = append(res.Skipped, sc.Name)
			continue
		}
		planner := opt.NewPlanner(engine, opts)
		planner.Logger = logger
		started := time.Now()
		plan, err := planner.Plan(ctx, inst)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Printf("skip %s: %v", sc.Name, err)
			res.Skipped = append(res.Skipped, sc.Name)
			continue
		}
		if _, err := report.WriteScenario(res.Dir, sc.Name, inst.Points, plan.Solution); err != nil {
			return res, err
		}
		km := plan.Cost * report.FeetToKm
		res.Summary.Add(sc.Name, km)
		logger.Printf("%s: %.2f km, %d trips, best restart %d, %v", sc.Name, km, len(plan.Solution.Routes), plan.Restart, time.Since(started).Round(time.Millisecond))

		if archive != nil {
			if err := archivePlan(ctx, archive, sc.Name, inst, plan); err != nil {
				logger.Printf("archive %s: %v", sc.Name, err)
			}
		}
	}

	f, err := os.Create(filepath.Join(res.Dir, SummaryFile))
	if err != nil {
		return res, err
	}
	if _, err := res.Summary.WriteTo(f); err != nil {
		f.Close()
		return res, err
	}
	return res, f.Close()
}

func archivePlan(ctx context.Context, s store.Store, name string, inst *opt.Instance, plan *opt.Result) error {
	p, err := s.CreatePlan(ctx, model.Plan{
		TenantID:      batchTenant,
		Name:          name,
		Status:        model.PlanSucceeded,
		Capacity:      inst.Capacity,
		Vehicles:      plan.Vehicles,
		Points:        inst.Points,
		Routes:        plan.Solution.Routes,
		TotalDistance: plan.Cost,
		BestRestart:   plan.Restart,
	})
	if err != nil {
		return err
	}
	return s.SavePlanMetrics(ctx, batchTenant, p.ID, plan.Metrics)
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
