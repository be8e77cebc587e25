// Package stats derives the dashboard views from a snapshot of feedback records.
// Every function is pure; callers pass the records they read from the store.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

// WindowDays is the length of the rolling daily series.
const WindowDays = 7

// UnknownMonth collects records whose date has no month.
const UnknownMonth = "unknown"

const dateLayout = "2006-01-02"

// Bucket is one key of a histogram.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DayBucket is one calendar day of the rolling series.
type DayBucket struct {
	Day   string `json:"day"` // M/D
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summary backs the stat cards.
type Summary struct {
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Processing     int    `json:"processing"`
	Resolved       int    `json:"resolved"`
	Archived       int    `json:"archived"`
	ResolutionRate string `json:"resolutionRate"`
}

// MonthTypes is one month of the trends view.
type MonthTypes struct {
	Month string   `json:"month"`
	Total int      `json:"total"`
	Types []Bucket `json:"types"`
}

// histogram counts keys preserving first-occurrence order.
func histogram(records []types.Feedback, key func(types.Feedback) string) []Bucket {
	index := make(map[string]int)
	out := []Bucket{}
	for _, r := range records {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, Bucket{Key: k, Count: 1})
	}
	return out
}

// TypeHistogram counts records per issue type in first-occurrence order.
func TypeHistogram(records []types.Feedback) []Bucket {
	return histogram(records, func(f types.Feedback) string { return f.Type })
}

func monthOf(date string) string {
	if len(date) < 7 {
		return UnknownMonth
	}
	return date[:7]
}

// MonthlyHistogram counts records per YYYY-MM, ascending, with UnknownMonth last.
func MonthlyHistogram(records []types.Feedback) []Bucket {
	out := histogram(records, func(f types.Feedback) string { return monthOf(f.Date) })
	sortMonths(out, func(b Bucket) string { return b.Key })
	return out
}

func sortMonths[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if a == UnknownMonth {
			return false
		}
		if b == UnknownMonth {
			return true
		}
		return a < b
	})
}

// RollingSeries returns exactly days buckets for the calendar days ending on now
// (in now's location), oldest first. Only records whose date is one of those
// calendar dates are counted.
func RollingSeries(records []types.Feedback, now time.Time, days int) []DayBucket {
	if days <= 0 {
		return []DayBucket{}
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	out := make([]DayBucket, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i-(days-1))
		date := day.Format(dateLayout)
		out[i] = DayBucket{
			Day:  fmt.Sprintf("%d/%d", int(day.Month()), day.Day()),
			Date: date,
		}
		index[date] = i
	}

	for _, r := range records {
		if r.Date == "" {
			continue
		}
		parsed, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			continue
		}
		if i, ok := index[parsed.Format(dateLayout)]; ok {
			out[i].Count++
		}
	}
	return out
}

// ResolutionRate is the share of resolved records as a one-decimal percentage.
func ResolutionRate(records []types.Feedback) string {
	if len(records) == 0 {
		return "0.0"
	}
	resolved := 0
	for _, r := range records {
		if r.Status == types.StatusResolved {
			resolved++
		}
	}
	return fmt.Sprintf("%.1f", float64(resolved)/float64(len(records))*100)
}

// Summarize counts records per status. Records without a status count as pending.
func Summarize(records []types.Feedback) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case types.StatusProcessing:
			s.Processing++
		case types.StatusResolved:
			s.Resolved++
		case types.StatusArchived:
			s.Archived++
		default:
			s.Pending++
		}
	}
	s.ResolutionRate = ResolutionRate(records)
	return s
}

// MonthlyByType breaks every month down by issue type.
func MonthlyByType(records []types.Feedback) []MonthTypes {
	byMonth := make(map[string][]types.Feedback)
	var months []string
	for _, r := range records {
		m := monthOf(r.Date)
		if _, ok := byMonth[m]; !ok {
			months = append(months, m)
		}
		byMonth[m] = append(byMonth[m], r)
	}

	out := make([]MonthTypes, 0, len(months))
	for _, m := range months {
		out = append(out, MonthTypes{
			Month: m,
			Total: len(byMonth[m]),
			Types: TypeHistogram(byMonth[m]),
		})
	}
	sortMonths(out, func(mt MonthTypes) string { return mt.Month })
	return out
}

// Products lists distinct products in first-occurrence order.
func Products(records []types.Feedback) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		if r.Product == "" || seen[r.Product] {
			continue
		}
		seen[r.Product] = true
		out = append(out, r.Product)
	}
	return out
}

// SortedByCount returns a copy of buckets sorted by descending count.
// Ties keep their original order.
func SortedByCount(buckets []Bucket) []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
