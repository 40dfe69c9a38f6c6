package cache

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/OCharnyshevich/oreveincache/internal/fluid"
	"github.com/OCharnyshevich/oreveincache/internal/grid"
	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

var (
	copper = &veintype.VeinType{Name: "copper", Primary: 855, Secondary: 32, InBetween: 834, Sporadic: 35}
	tin    = &veintype.VeinType{Name: "tin", Primary: 57, Secondary: 57, InBetween: 824, Sporadic: 57}
	legacy = 4
	oil    = &fluid.Fluid{Name: "oil", LegacyID: &legacy}
	water  = &fluid.Fluid{Name: "saltwater"}
)

func testOptions(t *testing.T) Options {
	t.Helper()
	cat, err := veintype.NewCatalog(copper, tin)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	dict, _, err := veintype.NewDictionary(cat, nil)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	reg, err := fluid.NewRegistry(oil, water)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return Options{Veins: dict, Fluids: reg, FluidSizeX: 2, FluidSizeZ: 3}
}

func vein(x, z int, v *veintype.VeinType, depleted bool) OreVeinPosition {
	return OreVeinPosition{ChunkX: x, ChunkZ: z, VeinType: v, Depleted: depleted}
}

func dirtyCount(d *DimensionCache) int {
	n := 0
	for i := range d.shards {
		n += len(d.shards[i].changed)
	}
	return n
}

func TestPutOreVeinNewAndAlreadyKnown(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))

	if got := d.PutOreVein(vein(1, 1, copper, false)); got != New {
		t.Fatalf("first put = %v, want New", got)
	}
	if _, err := d.SaveOreChunks(); err != nil {
		t.Fatalf("SaveOreChunks: %v", err)
	}
	// (2, 0) normalizes onto the same cell as (1, 1).
	if got := d.PutOreVein(vein(2, 0, copper, false)); got != AlreadyKnown {
		t.Fatalf("second put = %v, want AlreadyKnown", got)
	}
	if n := dirtyCount(d); n != 0 {
		t.Fatalf("AlreadyKnown put marked %d cells dirty", n)
	}
}

func TestPutOreVeinDifferentTypePreservesDepletion(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	d.PutOreVein(vein(1, 1, copper, false))
	d.ToggleOreVein(1, 1)

	if got := d.PutOreVein(vein(1, 1, tin, false)); got != New {
		t.Fatalf("put with other type = %v, want New", got)
	}
	got := d.GetOreVein(0, 2)
	if got.VeinType != tin {
		t.Fatalf("vein type = %s, want tin", got.VeinType.Name)
	}
	if !got.Depleted {
		t.Fatal("depleted flag lost on type change")
	}
}

func TestGetOreVeinAbsentIsSentinel(t *testing.T) {
	d := NewDimensionCache(7, testOptions(t))
	got := d.GetOreVein(10, -10)
	if got.VeinType != veintype.NoVein || !got.Depleted {
		t.Fatalf("absent lookup = %+v, want NoVein depleted", got)
	}
	if got.DimensionID != 7 || got.ChunkX != 10 || got.ChunkZ != -10 {
		t.Fatalf("sentinel coordinates = %+v", got)
	}
}

func TestPutGetEveryChunkOfCell(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	for x := -6; x <= 6; x++ {
		for z := -6; z <= 6; z++ {
			key := grid.OreVeinKey(x, z)
			d.PutOreVein(vein(key.X, key.Z, copper, false))
			if got := d.GetOreVein(x, z); got.VeinType != copper {
				t.Fatalf("GetOreVein(%d,%d) = %s", x, z, got.VeinType.Name)
			}
		}
	}
}

func TestToggleUnknownIsNoop(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	d.ToggleOreVein(5, 5)
	if d.OreVeinCount() != 0 || dirtyCount(d) != 0 {
		t.Fatal("toggle on unknown cell changed the cache")
	}
}

func TestClearOreVeins(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	for _, c := range []int{-4, -1, 1, 4, 7} {
		for _, z := range []int{-1, 1, 4} {
			d.PutOreVein(vein(c, z, copper, false))
		}
	}
	total := d.OreVeinCount()

	if n := d.ClearOreVeins(5, 5, 0, 0); n != 0 {
		t.Fatalf("inverted rectangle removed %d", n)
	}
	if n := d.ClearOreVeins(0, 0, 0, 5); n != 0 {
		t.Fatalf("rectangle without stored coordinates removed %d", n)
	}

	removed := d.ClearOreVeins(-1, 1, 4, 4)
	if removed != 6 {
		t.Fatalf("removed %d, want 6", removed)
	}
	if d.OreVeinCount() != total-removed {
		t.Fatalf("count = %d, want %d", d.OreVeinCount(), total-removed)
	}
	for _, v := range d.AllOreVeins() {
		if v.ChunkX >= -1 && v.ChunkX <= 4 && v.ChunkZ >= 1 && v.ChunkZ <= 4 {
			t.Fatalf("vein %+v inside the cleared rectangle survived", v)
		}
	}
	if !d.HasOreVein(-1, -1) || !d.HasOreVein(7, 4) {
		t.Fatal("veins outside the rectangle were removed")
	}
	if !d.TakeRewrite() {
		t.Fatal("clearing should request a rewrite")
	}
	if d.TakeRewrite() {
		t.Fatal("TakeRewrite should reset the flag")
	}
}

func TestSaveOreChunksOnlyDirty(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	if buf, err := d.SaveOreChunks(); err != nil || buf != nil {
		t.Fatalf("empty save = (%v, %v), want (nil, nil)", buf, err)
	}

	d.PutOreVein(vein(1, 1, copper, false))
	d.PutOreVein(vein(4, 1, tin, false))
	buf, err := d.SaveOreChunks()
	if err != nil {
		t.Fatalf("SaveOreChunks: %v", err)
	}
	if len(buf) != 2*oreRecordSize {
		t.Fatalf("buffer length = %d, want %d", len(buf), 2*oreRecordSize)
	}
	if again, _ := d.SaveOreChunks(); again != nil {
		t.Fatal("second save without changes should return nil")
	}

	d.ToggleOreVein(4, 1)
	buf, _ = d.SaveOreChunks()
	if len(buf) != oreRecordSize {
		t.Fatalf("toggle produced %d bytes, want one record", len(buf))
	}
	if binary.BigEndian.Uint16(buf[8:10])&depletedBit == 0 {
		t.Fatal("depleted bit not encoded")
	}
}

func TestOreVeinRoundTrip(t *testing.T) {
	opts := testOptions(t)
	src := NewDimensionCache(3, opts)
	src.PutOreVein(vein(1, 1, copper, false))
	src.PutOreVein(vein(-2, 4, tin, true))
	src.PutOreVein(vein(-302, 7000, copper, true))

	buf, err := src.SaveOreChunks()
	if err != nil {
		t.Fatalf("SaveOreChunks: %v", err)
	}

	dst := NewDimensionCache(3, opts)
	stats, err := dst.LoadCache(buf, nil)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if stats.OreVeins != 3 {
		t.Fatalf("loaded %d veins, want 3", stats.OreVeins)
	}
	want := src.AllOreVeins()
	got := dst.AllOreVeins()
	if len(got) != len(want) {
		t.Fatalf("got %d veins, want %d", len(got), len(want))
	}
	for i := range want {
		want[i].DimensionID = 3
		if got[i] != want[i] {
			t.Errorf("vein %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if dirtyCount(dst) != 0 {
		t.Fatal("loaded cells must not be dirty")
	}
}

func TestLoadDropsUnknownVeinIDs(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, 1)
	buf = binary.BigEndian.AppendUint32(buf, 1)
	buf = binary.BigEndian.AppendUint16(buf, 0x1234)

	stats, err := d.LoadCache(buf, nil)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if stats.DroppedOreVeins != 1 || d.OreVeinCount() != 0 {
		t.Fatalf("stats = %+v, count = %d", stats, d.OreVeinCount())
	}
}

func TestLoadTruncatedOreBuffer(t *testing.T) {
	opts := testOptions(t)
	src := NewDimensionCache(0, opts)
	src.PutOreVein(vein(1, 1, copper, false))
	buf, _ := src.SaveOreChunks()

	dst := NewDimensionCache(0, opts)
	_, err := dst.LoadCache(append(buf, 0, 0, 0), nil)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	if dst.OreVeinCount() != 1 {
		t.Fatal("complete record before the truncation should be loaded")
	}
}

func fluidAt(x, z int, f *fluid.Fluid, grid [][]int) UndergroundFluidPosition {
	return UndergroundFluidPosition{ChunkX: x, ChunkZ: z, Fluid: f, Chunks: grid}
}

func TestPutUndergroundFluidTriState(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	g := [][]int{{1, 2, 3}, {4, 5, 6}}

	if got := d.PutUndergroundFluid(fluidAt(0, 0, oil, g)); got != New {
		t.Fatalf("first put = %v, want New", got)
	}
	if got := d.PutUndergroundFluid(fluidAt(1, 2, oil, [][]int{{1, 2, 3}, {4, 5, 6}})); got != AlreadyKnown {
		t.Fatalf("identical put = %v, want AlreadyKnown", got)
	}
	if got := d.PutUndergroundFluid(fluidAt(0, 0, oil, [][]int{{1, 2, 3}, {4, 5, 7}})); got != Updated {
		t.Fatalf("grid change = %v, want Updated", got)
	}
	if got := d.PutUndergroundFluid(fluidAt(0, 0, water, [][]int{{1, 2, 3}, {4, 5, 7}})); got != Updated {
		t.Fatalf("fluid change = %v, want Updated", got)
	}
	if got := d.PutUndergroundFluid(NotProspected(0, 0, 0, 2, 3)); got != AlreadyKnown {
		t.Fatalf("not-prospected put = %v, want AlreadyKnown", got)
	}
	if got := d.GetUndergroundFluid(1, 1); got.Fluid != water {
		t.Fatalf("GetUndergroundFluid(1,1) = %+v", got)
	}
	if got := d.GetUndergroundFluid(-1, 0); got.IsProspected() {
		t.Fatalf("neighbouring cell should not be prospected: %+v", got)
	}
}

func TestUndergroundFluidRoundTrip(t *testing.T) {
	opts := testOptions(t)
	src := NewDimensionCache(-1, opts)
	src.PutUndergroundFluid(fluidAt(0, 0, oil, [][]int{{1, 2, 3}, {4, 5, 6}}))
	src.PutUndergroundFluid(fluidAt(-2, 9, water, [][]int{{0, -1, 700}, {8, 0, 2}}))

	buf := src.SaveUndergroundFluids()
	if buf == nil {
		t.Fatal("SaveUndergroundFluids returned nil")
	}
	if again := src.SaveUndergroundFluids(); again != nil {
		t.Fatal("second save should return nil")
	}

	dst := NewDimensionCache(-1, opts)
	stats, err := dst.LoadCache(nil, buf)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if stats.UndergroundFluids != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	for _, want := range src.AllUndergroundFluids() {
		got := dst.GetUndergroundFluid(want.ChunkX, want.ChunkZ)
		if !got.Equal(want) {
			t.Errorf("fluid at (%d,%d) = %+v, want %+v", want.ChunkX, want.ChunkZ, got, want)
		}
	}
}

func TestLoadLegacyFluidRecord(t *testing.T) {
	opts := testOptions(t)
	var buf []byte
	put := func(v int32) { buf = binary.BigEndian.AppendUint32(buf, uint32(v)) }
	put(8)
	put(16)
	put(4) // legacy id of oil, no name bytes follow
	for i := int32(0); i < 6; i++ {
		put(i * 10)
	}
	put(0)
	put(0)
	put(99) // unknown legacy id, dropped
	for i := 0; i < 6; i++ {
		put(1)
	}

	d := NewDimensionCache(0, opts)
	stats, err := d.LoadCache(nil, buf)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if stats.UndergroundFluids != 1 || stats.DroppedFluids != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	got := d.GetUndergroundFluid(8, 16)
	if got.Fluid != oil {
		t.Fatalf("fluid = %+v, want oil", got.Fluid)
	}
	if got.Chunks[1][2] != 50 {
		t.Fatalf("grid = %v", got.Chunks)
	}
}

func TestLoadDropsUnknownFluidName(t *testing.T) {
	opts := testOptions(t)
	other, _ := fluid.NewRegistry(&fluid.Fluid{Name: "mystery"})
	srcOpts := opts
	srcOpts.Fluids = other

	src := NewDimensionCache(0, srcOpts)
	src.PutUndergroundFluid(fluidAt(0, 0, &fluid.Fluid{Name: "mystery"}, NewFluidGrid(2, 3)))
	buf := src.SaveUndergroundFluids()

	dst := NewDimensionCache(0, opts)
	stats, err := dst.LoadCache(nil, buf)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if stats.DroppedFluids != 1 || len(dst.AllUndergroundFluids()) != 0 {
		t.Fatalf("unknown fluid not dropped: %+v", stats)
	}
}

func TestLoadTruncatedFluidBuffer(t *testing.T) {
	opts := testOptions(t)
	src := NewDimensionCache(0, opts)
	src.PutUndergroundFluid(fluidAt(0, 0, oil, NewFluidGrid(2, 3)))
	buf := src.SaveUndergroundFluids()

	for _, cut := range []int{4, 13, len(buf) - 1} {
		d := NewDimensionCache(0, opts)
		if _, err := d.LoadCache(nil, buf[:cut]); !errors.Is(err, ErrTruncated) {
			t.Errorf("cut at %d: err = %v, want ErrTruncated", cut, err)
		}
	}
}

func TestTakeRewriteMarksEverythingDirty(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	d.PutOreVein(vein(1, 1, copper, false))
	d.PutOreVein(vein(4, 4, tin, false))
	d.PutUndergroundFluid(fluidAt(0, 0, oil, NewFluidGrid(2, 3)))
	d.SaveOreChunks()
	d.SaveUndergroundFluids()

	d.ClearOreVeins(4, 4, 4, 4)
	if !d.TakeRewrite() {
		t.Fatal("expected rewrite")
	}
	buf, _ := d.SaveOreChunks()
	if len(buf) != oreRecordSize {
		t.Fatalf("rewrite snapshot has %d bytes, want the one remaining vein", len(buf))
	}
	if d.SaveUndergroundFluids() == nil {
		t.Fatal("rewrite should include fluids")
	}
}

func TestConcurrentPuts(t *testing.T) {
	d := NewDimensionCache(0, testOptions(t))
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.PutOreVein(vein(w*300+1, i*3+1, copper, false))
			}
		}(w)
	}
	wg.Wait()
	if got := d.OreVeinCount(); got != 800 {
		t.Fatalf("count = %d, want 800", got)
	}
}

func TestServerCache(t *testing.T) {
	s := NewServerCache(testOptions(t))

	if got := s.GetOreVein(5, 1, 1); got.VeinType != veintype.NoVein {
		t.Fatal("unknown dimension should report NoVein")
	}
	if len(s.Dimensions()) != 0 {
		t.Fatal("lookups must not create dimensions")
	}

	if got := s.NotifyOreVeinGeneration(0, 1, 1, veintype.NoVein); got != AlreadyKnown {
		t.Fatalf("NoVein notify = %v", got)
	}
	if s.HasOreVein(0, 1, 1) {
		t.Fatal("NoVein must not be stored")
	}
	s.NotifyOreVeinGeneration(0, 1, 1, copper)
	s.NotifyOreVeinGeneration(-1, 4, 4, tin)
	s.ToggleOreVein(-1, 4, 4)
	if !s.GetOreVein(-1, 3, 5).Depleted {
		t.Fatal("toggle through ServerCache failed")
	}

	dims := s.Dimensions()
	if len(dims) != 2 || dims[0].DimensionID != -1 || dims[1].DimensionID != 0 {
		t.Fatalf("Dimensions() not sorted: %v", dims)
	}

	if n := s.ResetSome(0, 0, 0, 2, 2); n != 1 {
		t.Fatalf("ResetSome removed %d, want 1", n)
	}
	if s.ResetSome(42, 0, 0, 2, 2) != 0 {
		t.Fatal("ResetSome on unknown dimension removed something")
	}

	s.Reset()
	if len(s.Dimensions()) != 0 {
		t.Fatal("Reset kept dimensions")
	}
	if !s.TakeReset() || s.TakeReset() {
		t.Fatal("TakeReset should report once")
	}
}

func TestRequestFullSave(t *testing.T) {
	s := NewServerCache(testOptions(t))
	s.NotifyOreVeinGeneration(0, 1, 1, copper)
	s.NotifyOreVeinGeneration(-1, 4, 4, tin)
	for _, d := range s.Dimensions() {
		if _, err := d.SaveOreChunks(); err != nil {
			t.Fatalf("SaveOreChunks: %v", err)
		}
	}

	s.RequestFullSave()
	if !s.TakeReset() {
		t.Fatal("RequestFullSave did not request a reset")
	}
	for _, d := range s.Dimensions() {
		if !d.TakeRewrite() {
			t.Fatalf("dimension %d not flagged for rewrite", d.DimensionID)
		}
		if dirtyCount(d) != 1 {
			t.Fatalf("dimension %d: %d dirty cells, want 1", d.DimensionID, dirtyCount(d))
		}
	}
	if !s.HasOreVein(0, 1, 1) || !s.HasOreVein(-1, 4, 4) {
		t.Fatal("RequestFullSave dropped cached data")
	}
}
