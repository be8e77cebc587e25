package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/valentinpelus/voiceboard/pkg/stats"
	"github.com/valentinpelus/voiceboard/pkg/types"
)

// DefaultContextPromptTemplate is the default system prompt
// Variables available: {TOTAL}, {TYPE_DISTRIBUTION}
const DefaultContextPromptTemplate = `你是腾讯理财通智能反馈分析助手，专门分析用户反馈数据并提供专业建议。

当前数据统计：
- 总反馈数：{TOTAL}条
- 问题类型分布：{TYPE_DISTRIBUTION}

你的职责：
1. 基于真实数据提供准确的分析报告
2. 识别问题趋势和模式
3. 提供具体的改进建议
4. 回答用户关于数据统计、趋势分析、问题分类等问题
5. 使用专业但易懂的语言

请始终保持专业、准确、有帮助的回答。`

// GetContextPromptTemplate returns the prompt template from env var or default
func GetContextPromptTemplate() string {
	if customPrompt := os.Getenv("ASSISTANT_PROMPT_TEMPLATE"); customPrompt != "" {
		return customPrompt
	}
	return DefaultContextPromptTemplate
}

// FormatTypeDistribution renders a histogram as "类型: N条, ..." sorted by count.
func FormatTypeDistribution(buckets []stats.Bucket) string {
	sorted := stats.SortedByCount(buckets)
	parts := make([]string, 0, len(sorted))
	for _, b := range sorted {
		parts = append(parts, fmt.Sprintf("%s: %d条", b.Key, b.Count))
	}
	return strings.Join(parts, ", ")
}

// BuildContextPrompt renders the system prompt from the current records.
// It must be rebuilt for every request so totals stay current.
func BuildContextPrompt(records []types.Feedback) string {
	r := strings.NewReplacer(
		"{TOTAL}", fmt.Sprintf("%d", len(records)),
		"{TYPE_DISTRIBUTION}", FormatTypeDistribution(stats.TypeHistogram(records)),
	)
	return r.Replace(GetContextPromptTemplate())
}
