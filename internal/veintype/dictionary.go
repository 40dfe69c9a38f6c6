package veintype

import (
	"errors"
	"fmt"
	"sort"
)

// MaxID is the largest id a vein type can receive. The top bit of the
// persisted 16-bit value is reserved for the depleted flag.
const MaxID = 0x7FFF

// ErrDictionaryFull is returned when more vein types are registered than ids
// exist.
var ErrDictionaryFull = errors.New("vein type dictionary full")

// Entry is one persisted dictionary row.
type Entry struct {
	ID   uint16
	Name string
}

// Dictionary assigns stable numeric ids to vein types for one world. Ids are
// only ever appended, so buffers written in earlier sessions keep decoding
// to the same names. NoVein always has id 0.
//
// A Dictionary is read-only after NewDictionary returns and may be shared
// between goroutines.
type Dictionary struct {
	byID   map[uint16]*VeinType
	byType map[*VeinType]uint16
	names  map[uint16]string
}

// NewDictionary rebuilds the dictionary from its persisted rows and appends
// every catalog type the rows do not mention yet. The appended rows are
// returned so the caller can persist them.
func NewDictionary(cat *Catalog, persisted []Entry) (*Dictionary, []Entry, error) {
	d := &Dictionary{
		byID:   map[uint16]*VeinType{0: NoVein},
		byType: map[*VeinType]uint16{NoVein: 0},
		names:  map[uint16]string{0: NoVein.Name},
	}

	var next uint16 = 1
	for _, e := range persisted {
		if e.ID == 0 || e.ID > MaxID {
			return nil, nil, fmt.Errorf("vein type %q: invalid persisted id %d", e.Name, e.ID)
		}
		if prev, dup := d.names[e.ID]; dup {
			return nil, nil, fmt.Errorf("vein type id %d used by %q and %q", e.ID, prev, e.Name)
		}
		d.names[e.ID] = e.Name
		if v, ok := cat.Lookup(e.Name); ok && !v.IsNoVein() {
			d.byID[e.ID] = v
			d.byType[v] = e.ID
		}
		if e.ID >= next {
			next = e.ID + 1
		}
	}

	var added []Entry
	for _, v := range cat.Types() {
		if _, ok := d.byType[v]; ok {
			continue
		}
		if next > MaxID {
			return nil, nil, ErrDictionaryFull
		}
		d.byID[next] = v
		d.byType[v] = next
		d.names[next] = v.Name
		added = append(added, Entry{ID: next, Name: v.Name})
		next++
	}
	return d, added, nil
}

// ID returns the numeric id of v.
func (d *Dictionary) ID(v *VeinType) (uint16, bool) {
	if v.IsNoVein() {
		return 0, true
	}
	id, ok := d.byType[v]
	return id, ok
}

// VeinType returns the vein type with the given id. It reports false for ids
// whose type is no longer registered.
func (d *Dictionary) VeinType(id uint16) (*VeinType, bool) {
	v, ok := d.byID[id]
	return v, ok
}

// Entries returns every known row, including names that are no longer
// registered, ordered by id.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, 0, len(d.names))
	for id, name := range d.names {
		if id == 0 {
			continue
		}
		out = append(out, Entry{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
