package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/oreveincache/internal/region"
)

func main() {
	var (
		src = flag.String("src", "", "world save source (url, git::, s3::, archive, ...)")
		out = flag.String("o", "./world", "output world directory")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *src == "" {
		log.Error("source required")
		os.Exit(2)
	}
	if *out == "" {
		log.Error("output dir path required")
		os.Exit(2)
	}

	path, err := filepath.Abs(*out)
	if err != nil {
		log.Error("resolve output dir", "error", err)
		os.Exit(1)
	}
	if err := os.RemoveAll(path); err != nil {
		log.Error("clean output dir", "error", err)
		os.Exit(1)
	}

	log.Info("start downloading world", "src", *src, "dir", path)
	if err := get.Get(path, *src); err != nil {
		log.Error("download world", "error", err)
		os.Exit(1)
	}

	lvl, err := region.ReadLevel(path)
	if err != nil {
		log.Error("downloaded directory is not a world save", "dir", path, "error", err)
		os.Exit(1)
	}
	world, err := region.NewDirSource(path)
	if err != nil {
		log.Error("open world", "error", err)
		os.Exit(1)
	}
	ids, err := world.DimensionIDs()
	if err != nil {
		log.Error("list dimensions", "error", err)
		os.Exit(1)
	}
	log.Info("done downloading world", "dir", path, "level_name", lvl.Name, "dimensions", ids)
}
