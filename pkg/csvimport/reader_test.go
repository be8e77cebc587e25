package csvimport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

var fixedNow = time.UnixMilli(1717000000000)

func TestParse(t *testing.T) {
	t.Parallel()

	input := "问题类型,异动时间区间,异动原因,产品类型\n" +
		"账户类/身份变更,2025/6/3-2025/6/10,无法修改手机号,零钱通\n" +
		"未知类别X,,其他内容,\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	want0 := types.Feedback{
		ID:      "1717000000000-0",
		Type:    types.CategoryAccount,
		Content: "无法修改手机号",
		Date:    "2025-06-03",
		Product: "零钱通",
	}
	if got[0] != want0 {
		t.Errorf("row 0 = %+v, want %+v", got[0], want0)
	}

	want1 := types.Feedback{
		ID:      "1717000000000-1",
		Type:    "未知类别X",
		Content: "其他内容",
		Product: types.DefaultProduct,
	}
	if got[1] != want1 {
		t.Errorf("row 1 = %+v, want %+v", got[1], want1)
	}
}

func TestParseAliasesAndTrimmedHeaders(t *testing.T) {
	t.Parallel()

	input := " 编号 , 客诉类型 ,日期,客诉内容,优先级\n" +
		"A-1,页面错位,2025-07-01,按钮被遮挡,高\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := types.Feedback{
		ID:       "A-1",
		Type:     types.CategoryUI,
		Content:  "按钮被遮挡",
		Date:     "2025-07-01",
		Product:  types.DefaultProduct,
		Priority: types.PriorityHigh,
	}
	if got[0] != want {
		t.Errorf("row = %+v, want %+v", got[0], want)
	}
}

func TestParsePreferredColumnWins(t *testing.T) {
	t.Parallel()

	input := "类型,问题类型\n功能问题,界面\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got[0].Type != types.CategoryUI {
		t.Errorf("Type = %q, want %q", got[0].Type, types.CategoryUI)
	}
}

func TestParseMissingColumns(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader("备注\nhello\n"), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := types.Feedback{
		ID:      "1717000000000-0",
		Type:    types.DefaultIssueType,
		Product: types.DefaultProduct,
	}
	if got[0] != want {
		t.Errorf("row = %+v, want %+v", got[0], want)
	}
}

func TestParseBOM(t *testing.T) {
	t.Parallel()

	input := "\uFEFF问题类型,异动原因\n性能卡顿,很慢\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got[0].Type != types.CategoryPerformance {
		t.Errorf("Type = %q, want %q", got[0].Type, types.CategoryPerformance)
	}
}

func TestParseGB18030(t *testing.T) {
	t.Parallel()

	utf8Input := "问题类型,异动原因\n登录异常,收不到验证码\n"
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String(utf8Input)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	got, err := Parse(strings.NewReader(encoded), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got[0].Type != types.CategoryAccount || got[0].Content != "收不到验证码" {
		t.Errorf("row = %+v", got[0])
	}
}

func TestParseRaggedRows(t *testing.T) {
	t.Parallel()

	input := "问题类型,异动原因,产品类型\n" +
		"账户类/身份变更,无法登录,理财通\n" +
		"功能异常,页面报错\n" +
		"性能卡顿,很慢,零钱通,多余的列\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	want := []types.Feedback{
		{ID: "1717000000000-0", Type: types.CategoryAccount, Content: "无法登录", Product: "理财通"},
		{ID: "1717000000000-1", Type: types.CategoryFunctional, Content: "页面报错", Product: types.DefaultProduct},
		{ID: "1717000000000-2", Type: types.CategoryPerformance, Content: "很慢", Product: "零钱通"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseStatusColumn(t *testing.T) {
	t.Parallel()

	input := "id,type,content,status\n" +
		"1,其他,a,archived\n" +
		"2,其他,b,已解决\n" +
		"3,其他,c,\n" +
		"4,其他,d,unknown\n"

	got, err := Parse(strings.NewReader(input), fixedNow)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []types.Status{types.StatusArchived, types.StatusResolved, "", ""}
	for i, status := range want {
		if got[i].Status != status {
			t.Errorf("row %d status = %q, want %q", i, got[i].Status, status)
		}
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrNoRows},
		{"header only", "问题类型,异动原因\n", ErrNoRows},
		{"unterminated quote", "a,b\n\"1,2\n", ErrMalformedCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(bytes.NewReader([]byte(tt.input)), fixedNow)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
			if got != nil {
				t.Errorf("Parse() returned partial result %v", got)
			}
		})
	}
}
