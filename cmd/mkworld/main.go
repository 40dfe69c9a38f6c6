package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
	"github.com/OCharnyshevich/oreveincache/internal/worldgen"
)

func main() {
	var (
		out    = flag.String("o", "./world", "output world directory")
		name   = flag.String("name", "synthetic", "level name")
		seed   = flag.Int64("seed", time.Now().UnixNano(), "world seed")
		radius = flag.Int("radius", 64, "half edge of the generated square in chunks")
		dims   = flag.String("dims", "0,-1", "comma separated dimension ids")
		veins  = flag.String("veins", "", "vein catalog YAML (empty = built-in)")
		chance = flag.Int("vein-chance", worldgen.DefaultVeinChance, "percentage of ore chunk cells holding a vein")
		eroded = flag.Int("eroded-chance", 10, "percentage of veins reduced to their secondary layers")
		spawnX = flag.Int("spawn-x", 0, "spawn block x")
		spawnZ = flag.Int("spawn-z", 0, "spawn block z")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cat, err := veintype.LoadCatalog(*veins)
	if err != nil {
		log.Error("load vein catalog", "error", err)
		os.Exit(1)
	}

	var ids []int
	for _, part := range strings.Split(*dims, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			log.Error("parse dimension id", "value", part, "error", err)
			os.Exit(2)
		}
		ids = append(ids, id)
	}

	opts := worldgen.WorldOptions{
		Name:         *name,
		Seed:         *seed,
		SpawnX:       *spawnX,
		SpawnZ:       *spawnZ,
		Dimensions:   ids,
		Area:         grid.Rect{X0: -*radius, Z0: -*radius, X1: *radius - 1, Z1: *radius - 1},
		Catalog:      cat,
		VeinChance:   *chance,
		ErodedChance: *eroded,
	}

	start := time.Now()
	log.Info("generating world", "dir", *out, "seed", *seed, "dimensions", ids, "radius", *radius)
	if err := worldgen.WriteWorld(*out, opts); err != nil {
		log.Error("generate world", "error", err)
		os.Exit(1)
	}
	log.Info("world generated", "dir", *out, "took", time.Since(start).Round(time.Millisecond))
}
