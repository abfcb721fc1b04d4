// period.go: time-axis bucketing. Observations at finer granularity than the
// requested axis are averaged into the coarser bucket; observations at coarser
// granularity are projected unchanged into every matching finer bucket. This
// is a fixed policy, not interpolation.
package aggregator

import (
	"fmt"
	"time"

	"github.com/agropanel/agriprice-go/internal/datastore"
)

// Granularity of the requested time axis.
type Granularity string

const (
	GranularityAnnual  Granularity = "annual"
	GranularityMonthly Granularity = "monthly"
	GranularityWeekly  Granularity = "weekly"
	GranularityDaily   Granularity = "daily"
)

// rank orders granularities coarse to fine.
func (g Granularity) rank() int {
	switch g {
	case GranularityAnnual:
		return 0
	case GranularityMonthly:
		return 1
	case GranularityWeekly:
		return 2
	case GranularityDaily:
		return 3
	default:
		return -1
	}
}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool { return g.rank() >= 0 }

// ParseGranularity maps a request parameter onto a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// observationGranularity maps a stored period type onto the bucketing axis.
func observationGranularity(periodType string) (Granularity, bool) {
	switch periodType {
	case datastore.PeriodAnnual:
		return GranularityAnnual, true
	case datastore.PeriodMonthly:
		return GranularityMonthly, true
	case datastore.PeriodWeekly:
		return GranularityWeekly, true
	case datastore.PeriodDaily:
		return GranularityDaily, true
	default:
		return "", false
	}
}

// observationSpan returns the inclusive date range an observation covers,
// derived from its explicit date when present and from the year/period pair
// otherwise.
func observationSpan(obs datastore.PriceObservation) (time.Time, time.Time) {
	switch obs.PeriodType {
	case datastore.PeriodAnnual:
		start := time.Date(obs.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, time.Date(obs.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	case datastore.PeriodMonthly:
		start := time.Date(obs.Year, time.Month(obs.Period), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case datastore.PeriodWeekly:
		start := isoWeekStart(obs.Year, obs.Period)
		return start, start.AddDate(0, 0, 6)
	default: // daily
		if obs.Date != nil {
			d := obs.Date.UTC().Truncate(24 * time.Hour)
			return d, d
		}
		d := time.Date(obs.Year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, obs.Period-1)
		return d, d
	}
}

// isoWeekStart returns the Monday of the given ISO week.
func isoWeekStart(isoYear, week int) time.Time {
	// January 4th is always inside ISO week 1.
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// bucketLabel renders the canonical label for the bucket containing t:
// annual "2023", monthly "2023-05", weekly "2023-W21", daily "2023-05-14".
func bucketLabel(g Granularity, t time.Time) string {
	switch g {
	case GranularityAnnual:
		return fmt.Sprintf("%04d", t.Year())
	case GranularityMonthly:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	case GranularityWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}

// bucketStart returns the first day of the bucket containing t, used as the
// chronological sort key.
func bucketStart(g Granularity, t time.Time) time.Time {
	switch g {
	case GranularityAnnual:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case GranularityMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityWeekly:
		year, week := t.ISOWeek()
		return isoWeekStart(year, week)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

// nextBucket advances to the start of the following bucket.
func nextBucket(g Granularity, start time.Time) time.Time {
	switch g {
	case GranularityAnnual:
		return start.AddDate(1, 0, 0)
	case GranularityMonthly:
		return start.AddDate(0, 1, 0)
	case GranularityWeekly:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// projectBuckets enumerates the starts of every g-granularity bucket that
// overlaps both [spanStart, spanEnd] and the window.
func projectBuckets(g Granularity, spanStart, spanEnd time.Time, window datastore.TimeWindow) []time.Time {
	from := spanStart
	if window.Start.After(from) {
		from = window.Start
	}
	to := spanEnd
	if window.End.Before(to) {
		to = window.End
	}
	if to.Before(from) {
		return nil
	}

	var starts []time.Time
	for cur := bucketStart(g, from); !cur.After(to); cur = nextBucket(g, cur) {
		starts = append(starts, cur)
	}
	return starts
}

// overlapsWindow reports whether the observation's covered range intersects
// the query window.
func overlapsWindow(spanStart, spanEnd time.Time, window datastore.TimeWindow) bool {
	return !spanEnd.Before(window.Start) && !spanStart.After(window.End)
}
