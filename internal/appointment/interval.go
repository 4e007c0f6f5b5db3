package appointment

import "sort"

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// MergeIntervals returns the sorted, pairwise-disjoint union of in.
// Touching intervals are joined. The input slice is not modified.
func MergeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

type SlotSearch struct {
	ShiftStart      int
	ShiftEnd        int
	Busy            []Interval // sorted and merged
	BlockMinutes    int
	RequiredMinutes int
}

// FindFirstSlot returns the earliest block-aligned window of RequiredMinutes
// inside [ShiftStart, ShiftEnd] that does not overlap any busy interval.
func FindFirstSlot(s SlotSearch) (Interval, bool) {
	if s.RequiredMinutes <= 0 {
		return Interval{}, false
	}

	cursor := CeilToBlock(s.ShiftStart, s.BlockMinutes)
	for _, busy := range s.Busy {
		if cursor+s.RequiredMinutes <= busy.Start {
			return Interval{Start: cursor, End: cursor + s.RequiredMinutes}, true
		}
		if cursor < busy.End {
			cursor = CeilToBlock(busy.End, s.BlockMinutes)
		}
		if cursor+s.RequiredMinutes > s.ShiftEnd {
			return Interval{}, false
		}
	}

	if cursor+s.RequiredMinutes <= s.ShiftEnd {
		return Interval{Start: cursor, End: cursor + s.RequiredMinutes}, true
	}
	return Interval{}, false
}
