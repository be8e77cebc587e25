// Package csvimport turns loosely structured feedback spreadsheets into
// canonical feedback records and back.
package csvimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

// issueTypeRules are checked in order; the first keyword hit wins.
var issueTypeRules = []struct {
	keywords []string
	category string
}{
	{[]string{"账户", "账号", "身份", "实名", "登录", "密码"}, types.CategoryAccount},
	{[]string{"功能", "异常", "报错", "失败", "故障"}, types.CategoryFunctional},
	{[]string{"界面", "页面", "显示", "样式", "UI"}, types.CategoryUI},
	{[]string{"操作", "流程", "步骤", "繁琐", "复杂"}, types.CategoryOperational},
	{[]string{"性能", "卡顿", "缓慢", "加载", "闪退"}, types.CategoryPerformance},
}

// segmentDelimiters separate the main category from sub-categories, e.g. "账户类/身份变更".
const segmentDelimiters = "/、>|"

// NormalizeIssueType maps a raw issue-type cell to a canonical category.
// Unmatched values pass through verbatim (whitespace removed).
func NormalizeIssueType(raw string) string {
	if raw == "" {
		return types.DefaultIssueType
	}

	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	main := compact
	if i := strings.IndexAny(compact, segmentDelimiters); i >= 0 {
		main = compact[:i]
	}

	upper := strings.ToUpper(main)
	for _, rule := range issueTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(upper, kw) {
				return rule.category
			}
		}
	}

	switch {
	case main != "":
		return main
	case compact != "":
		return compact
	default:
		return types.DefaultIssueType
	}
}

var dateInRange = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)

// NormalizeDateFromRange extracts the first date of a range expression such as
// "2025/6/3-2025/6/10" and returns it as YYYY-MM-DD. Returns "" when no date is found.
func NormalizeDateFromRange(raw string) string {
	if raw == "" {
		return ""
	}
	m := dateInRange.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// NormalizePriority maps a priority cell to a Priority; unknown values yield "".
func NormalizePriority(raw string) types.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "高", "high":
		return types.PriorityHigh
	case "中", "medium":
		return types.PriorityMedium
	case "低", "low":
		return types.PriorityLow
	}
	return ""
}

// NormalizeStatus maps a status cell (value or display label) to a Status.
// Unknown and empty values yield "", which leaves the record unset.
func NormalizeStatus(raw string) types.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "待处理":
		return types.StatusPending
	case "processing", "处理中":
		return types.StatusProcessing
	case "resolved", "已解决":
		return types.StatusResolved
	case "archived", "已归档":
		return types.StatusArchived
	}
	return ""
}
