package game

import (
	"encoding/json"
	"math/bits"
	"sort"
)

// CellSet is a set of card cell indices (0..24) packed into a bitmask.
// It encodes to JSON as a sorted array of indices.
type CellSet uint32

const allCells CellSet = 1<<CellCount - 1

// FreeBaseline is the marked set every freshly dealt card starts with.
const FreeBaseline CellSet = 1 << FreeCell

// NewCellSet builds a set from indices, ignoring anything outside the card.
func NewCellSet(indices ...int) CellSet {
	var s CellSet
	for _, i := range indices {
		s = s.Add(i)
	}
	return s
}

func (s CellSet) Add(cell int) CellSet {
	if cell < 0 || cell >= CellCount {
		return s
	}
	return s | 1<<cell
}

func (s CellSet) Has(cell int) bool {
	if cell < 0 || cell >= CellCount {
		return false
	}
	return s&(1<<cell) != 0
}

func (s CellSet) Len() int {
	return bits.OnesCount32(uint32(s & allCells))
}

// Indices lists the members in ascending order.
func (s CellSet) Indices() []int {
	out := make([]int, 0, s.Len())
	for i := 0; i < CellCount; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

func (s CellSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Indices())
}

func (s *CellSet) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err != nil {
		return err
	}
	*s = NewCellSet(indices...)
	return nil
}

// Remaining counts pattern cells not yet marked.
func Remaining(marked, pattern CellSet) int {
	return (pattern &^ marked).Len()
}

// Satisfies reports whether every pattern cell is marked. An empty pattern
// is trivially satisfied, so patterns must go through ParsePattern.
func Satisfies(marked, pattern CellSet) bool {
	return pattern&^marked&allCells == 0
}

// ParsePattern validates a winning pattern sent by a host. Duplicates
// collapse; a pattern made only of the free center is rejected because
// every card would win it before the first draw.
func ParsePattern(indices []int) (CellSet, error) {
	var s CellSet
	for _, i := range indices {
		if i < 0 || i >= CellCount {
			return 0, ErrInvalidPattern
		}
		s = s.Add(i)
	}
	if s&^FreeBaseline == 0 {
		return 0, ErrEmptyPattern
	}
	return s, nil
}

// Preset is a named winning pattern offered to hosts.
type Preset struct {
	Name    string  `json:"name"`
	Pattern CellSet `json:"indices"`
}

var presets = []Preset{
	{Name: "Blackout", Pattern: allCells},
	{Name: "X Shape", Pattern: NewCellSet(0, 4, 6, 8, 12, 16, 18, 20, 24)},
	{Name: "L Shape", Pattern: NewCellSet(0, 5, 10, 15, 20, 21, 22, 23, 24)},
	{Name: "I Shape", Pattern: NewCellSet(0, 1, 2, 3, 4, 7, 17, 20, 21, 22, 23, 24)},
	{Name: "V Shape", Pattern: NewCellSet(0, 4, 5, 9, 10, 14, 16, 18, 22)},
	{Name: "E Shape", Pattern: NewCellSet(0, 1, 2, 3, 4, 5, 10, 11, 13, 14, 15, 20, 21, 22, 23, 24)},
}

// Presets returns the built-in patterns sorted by name.
func Presets() []Preset {
	out := append([]Preset(nil), presets...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
