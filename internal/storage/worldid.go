package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// WorldIDFile is the file inside the world's data directory that holds the
// stable identifier of the world.
const WorldIDFile = "oreveincache.id"

// WorldID returns the identifier stored in <world>/data, creating a new
// random one on first use.
func WorldID(worldDir string) (string, error) {
	path := filepath.Join(worldDir, "data", WorldIDFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, err := uuid.Parse(strings.TrimSpace(string(data)))
		if err != nil {
			return "", fmt.Errorf("parse world id %s: %w", path, err)
		}
		return id.String(), nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read world id: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create world data directory: %w", err)
	}
	id := uuid.New().String()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return id, nil
}
