package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OCharnyshevich/oreveincache/internal/config"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/session"
)

const usage = `usage: veincache [flags] <command> [command flags]

commands:
  load                       load the cache, scanning the world if it was never cached (default)
  scan                       rescan the whole world
  section -dim -x0 -z0 -x1 -z1   rescan a chunk rectangle of one dimension
  spawn                      rescan the chunks around the world spawn
  query -dim -x -z           print the vein and fluid cached for a chunk
  toggle -dim -x -z          flip the depleted flag of the vein at a chunk
  history                    print the scan history of the world

flags:
`

func main() {
	cfg := config.DefaultConfig()
	configPath := flag.String("config", "oreveincache.yaml", "YAML config file")

	flag.StringVar(&cfg.WorldDir, "world", cfg.WorldDir, "world save directory")
	flag.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "cache directory")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel region file readers")
	flag.Int64Var(&cfg.MaxDimensionSizeMBForFastScanning, "fast-scan-mb", cfg.MaxDimensionSizeMBForFastScanning,
		"largest dimension in MiB scanned with the fast strategy")
	flag.BoolVar(&cfg.RecacheVeins, "recache", cfg.RecacheVeins, "rescan the world on start")
	flag.BoolVar(&cfg.RecacheSpawn, "recache-spawn", cfg.RecacheSpawn, "rescan the spawn area once per world")
	flag.IntVar(&cfg.SpawnRadiusChunks, "spawn-radius", cfg.SpawnRadiusChunks, "spawn area radius in chunks")
	flag.StringVar(&cfg.VeinCatalog, "veins", cfg.VeinCatalog, "vein catalog YAML (empty = built-in)")
	flag.StringVar(&cfg.FluidCatalog, "fluids", cfg.FluidCatalog, "fluid catalog YAML (empty = built-in)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fromFile, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.Merge(cfg, fromFile, explicit)

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	command, args := "load", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}
	if command == "scan" {
		cfg.RecacheVeins = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, command, args); err != nil {
		log.Error("veincache failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, command string, args []string) error {
	switch command {
	case "load", "scan", "section", "spawn", "query", "toggle", "history":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	s, err := session.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("close session", "error", err)
		}
	}()

	switch command {
	case "section":
		fs := flag.NewFlagSet("section", flag.ExitOnError)
		dim := fs.Int("dim", 0, "dimension id")
		x0 := fs.Int("x0", 0, "first chunk x")
		z0 := fs.Int("z0", 0, "first chunk z")
		x1 := fs.Int("x1", 0, "last chunk x")
		z1 := fs.Int("z1", 0, "last chunk z")
		fs.Parse(args)
		res, err := s.ScanSection(ctx, *dim, grid.Rect{X0: *x0, Z0: *z0, X1: *x1, Z1: *z1})
		if err != nil {
			return err
		}
		log.Info("section scanned", "dimension", *dim, "strategy", res.Strategy, "files", res.Files)
	case "spawn":
		res, err := s.RecacheSpawn(ctx)
		if err != nil {
			return err
		}
		log.Info("spawn re-cached", "strategy", res.Strategy, "files", res.Files)
	case "query", "toggle":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		dim := fs.Int("dim", 0, "dimension id")
		x := fs.Int("x", 0, "chunk x")
		z := fs.Int("z", 0, "chunk z")
		fs.Parse(args)
		if command == "toggle" {
			s.Cache().ToggleOreVein(*dim, *x, *z)
			if err := s.Save(); err != nil {
				return err
			}
		}
		printChunk(s, *dim, *x, *z)
	case "history":
		scans, err := s.Scans(ctx)
		if err != nil {
			return err
		}
		for _, r := range scans {
			fmt.Printf("%s  %-7s dim %-3d %-4s files %-5d corrupt %-3d ore chunks %-7d resolved %d (%s)\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Kind, r.DimensionID, r.Strategy, r.Files,
				r.CorruptFiles, r.OreChunks, r.Resolved, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		}
	default:
		for _, d := range s.Cache().Dimensions() {
			log.Info("dimension cached", "dimension", d.DimensionID, "ore_veins", d.OreVeinCount())
		}
	}
	return nil
}

func printChunk(s *session.Session, dim, x, z int) {
	v := s.Cache().GetOreVein(dim, x, z)
	if v.VeinType.IsNoVein() {
		fmt.Printf("dim %d chunk (%d, %d): no vein\n", dim, x, z)
	} else {
		fmt.Printf("dim %d chunk (%d, %d): %s depleted=%v\n", dim, x, z, v.VeinType.Name, v.Depleted)
	}

	f := s.Cache().GetUndergroundFluid(dim, x, z)
	if !f.IsProspected() {
		fmt.Println("underground fluid: not prospected")
		return
	}
	fmt.Printf("underground fluid: %s, max %d\n", f.Fluid.Name, f.MaxMagnitude())
}
