package normalize

import (
	"slices"
	"time"

	"github.com/okian/coachmatch/internal/domain/model"
)

// MinutesPerWeek is the length of the reference week.
const MinutesPerWeek = 7 * 24 * 60

// Client daily window in local time.
const (
	ClientDayStart = 9 * 60
	ClientDayEnd   = 21 * 60
)

// referenceMonday anchors every weekly conversion so results do not depend on
// the current date. 2024-01-01 is a Monday.
var referenceMonday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Interval is a half-open range [Start, End) in minutes of the UTC reference week.
type Interval struct {
	Start int
	End   int
}

// Len returns the interval length in minutes.
func (i Interval) Len() int { return i.End - i.Start }

// weekly converts a local weekly slot into UTC reference-week intervals,
// splitting slots that wrap around the week boundary.
func weekly(day time.Weekday, start, end int, loc *time.Location) []Interval {
	offset := (int(day) + 6) % 7 // Monday = 0
	localStart := time.Date(2024, time.January, 1+offset, 0, 0, 0, 0, loc).Add(time.Duration(start) * time.Minute)
	length := end - start
	if length <= 0 {
		return nil
	}

	from := int(localStart.Sub(referenceMonday) / time.Minute)
	from = ((from % MinutesPerWeek) + MinutesPerWeek) % MinutesPerWeek
	to := from + length
	if to <= MinutesPerWeek {
		return []Interval{{Start: from, End: to}}
	}
	return []Interval{{Start: from, End: MinutesPerWeek}, {Start: 0, End: to - MinutesPerWeek}}
}

// Merge sorts intervals and joins overlapping or touching ones.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.SortFunc(out, func(a, b Interval) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	merged := out[:1]
	for _, iv := range out[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Total returns the summed length of intervals.
func Total(in []Interval) int {
	n := 0
	for _, iv := range in {
		n += iv.Len()
	}
	return n
}

// Overlap returns the minutes shared by two merged interval lists.
func Overlap(a, b []Interval) int {
	total, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		lo := max(a[i].Start, b[j].Start)
		hi := min(a[i].End, b[j].End)
		if hi > lo {
			total += hi - lo
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return total
}

// ClientWindow returns the implied 09:00-21:00 daily window for loc.
func ClientWindow(loc *time.Location) []Interval {
	var out []Interval
	for d := time.Sunday; d <= time.Saturday; d++ {
		out = append(out, weekly(d, ClientDayStart, ClientDayEnd, loc)...)
	}
	return Merge(out)
}

// CoachWindows converts declared windows to merged reference-week intervals.
// Windows with an unknown timezone are dropped.
func CoachWindows(windows []model.AvailabilityWindow) []Interval {
	var out []Interval
	for _, w := range windows {
		loc, err := time.LoadLocation(w.Timezone)
		if err != nil {
			continue
		}
		out = append(out, weekly(w.Day, w.Start, w.End, loc)...)
	}
	return Merge(out)
}
