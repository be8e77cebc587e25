package csvimport

import (
	"fmt"
	"math"
	"time"

	"github.com/valentinpelus/voiceboard/pkg/stats"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// Preview summarizes a parsed upload before the user confirms it.
type Preview struct {
	Total      int            `json:"total"`
	Categories []stats.Bucket `json:"categories"`
	MinDate    string         `json:"minDate,omitempty"`
	MaxDate    string         `json:"maxDate,omitempty"`
	SpanDays   int            `json:"spanDays"`
	Undated    int            `json:"undated"`
	Insights   []string       `json:"insights"`
}

// Summarize computes the preview of a batch of records.
func Summarize(records []types.Feedback) Preview {
	p := Preview{
		Total:      len(records),
		Categories: stats.TypeHistogram(records),
		Insights:   []string{},
	}

	for _, r := range records {
		if r.Date == "" {
			p.Undated++
			continue
		}
		if p.MinDate == "" || r.Date < p.MinDate {
			p.MinDate = r.Date
		}
		if r.Date > p.MaxDate {
			p.MaxDate = r.Date
		}
	}
	p.SpanDays = spanDays(p.MinDate, p.MaxDate)
	p.Insights = insights(p)
	return p
}

// spanDays is the inclusive day count between two YYYY-MM-DD dates, at least 1.
// Zero when either bound is missing or unparseable.
func spanDays(minDate, maxDate string) int {
	if minDate == "" || maxDate == "" {
		return 0
	}
	lo, err := time.Parse("2006-01-02", minDate)
	if err != nil {
		return 0
	}
	hi, err := time.Parse("2006-01-02", maxDate)
	if err != nil {
		return 0
	}
	days := int(math.Round(hi.Sub(lo).Hours()/24)) + 1
	if days < 1 {
		days = 1
	}
	return days
}

func insights(p Preview) []string {
	out := []string{}
	if p.Total == 0 {
		return out
	}

	out = append(out, fmt.Sprintf("共解析%d条反馈，涵盖%d个问题类型", p.Total, len(p.Categories)))

	if top := stats.SortedByCount(p.Categories); len(top) > 0 {
		share := int(math.Round(float64(top[0].Count) / float64(p.Total) * 100))
		out = append(out, fmt.Sprintf("%s最多，共%d条，占比%d%%", top[0].Key, top[0].Count, share))
	}
	if p.SpanDays > 0 {
		out = append(out, fmt.Sprintf("数据时间跨度%d天（%s 至 %s）", p.SpanDays, p.MinDate, p.MaxDate))
	}
	if p.Undated > 0 {
		out = append(out, fmt.Sprintf("%d条记录无法识别日期", p.Undated))
	}
	return out
}
