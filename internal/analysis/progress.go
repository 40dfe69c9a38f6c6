package analysis

import (
	"log/slog"
	"sync"
)

// Progress receives scan progress. Implementations must be safe for
// concurrent use; region files are reported from worker goroutines.
type Progress interface {
	SetNumberOfDimensions(n int)
	AnnounceFastDimension(dimensionID int)
	AnnounceSlowDimension(dimensionID int)
	SetNumberOfRegionFiles(n int)
	RegionFileProcessed()
	NotifyCorruptFile(path string, err error)
	DimensionProcessed()
	ProcessingFinished()
}

// LogProgress reports progress through a logger, one line per tenth of the
// region files of a dimension.
type LogProgress struct {
	log *slog.Logger

	mu         sync.Mutex
	dimensions int
	doneDims   int
	dimension  int
	files      int
	doneFiles  int
	lastTenth  int
	corrupt    int
}

// NewLogProgress creates a LogProgress writing to log.
func NewLogProgress(log *slog.Logger) *LogProgress {
	return &LogProgress{log: log}
}

func (p *LogProgress) SetNumberOfDimensions(n int) {
	p.mu.Lock()
	p.dimensions, p.doneDims, p.corrupt = n, 0, 0
	p.mu.Unlock()
}

func (p *LogProgress) AnnounceFastDimension(dimensionID int) {
	p.announce(dimensionID, "fast")
}

func (p *LogProgress) AnnounceSlowDimension(dimensionID int) {
	p.announce(dimensionID, "slow")
}

func (p *LogProgress) announce(dimensionID int, strategy string) {
	p.mu.Lock()
	p.dimension = dimensionID
	done, total := p.doneDims, p.dimensions
	p.mu.Unlock()
	p.log.Info("scanning dimension", "dimension", dimensionID, "strategy", strategy,
		"dimension_index", done+1, "dimensions", total)
}

func (p *LogProgress) SetNumberOfRegionFiles(n int) {
	p.mu.Lock()
	p.files, p.doneFiles, p.lastTenth = n, 0, 0
	p.mu.Unlock()
}

func (p *LogProgress) RegionFileProcessed() {
	p.mu.Lock()
	p.doneFiles++
	done, total, dim := p.doneFiles, p.files, p.dimension
	tenth := 0
	if total > 0 {
		tenth = done * 10 / total
	}
	report := tenth > p.lastTenth
	if report {
		p.lastTenth = tenth
	}
	p.mu.Unlock()

	if report {
		p.log.Info("region files processed", "dimension", dim, "done", done, "total", total)
	}
}

func (p *LogProgress) NotifyCorruptFile(path string, err error) {
	p.mu.Lock()
	p.corrupt++
	p.mu.Unlock()
	p.log.Warn("corrupt region file, skipping", "file", path, "error", err)
}

func (p *LogProgress) DimensionProcessed() {
	p.mu.Lock()
	p.doneDims++
	p.mu.Unlock()
}

func (p *LogProgress) ProcessingFinished() {
	p.mu.Lock()
	dims, corrupt := p.doneDims, p.corrupt
	p.mu.Unlock()
	p.log.Info("world scan finished", "dimensions", dims, "corrupt_files", corrupt)
}
