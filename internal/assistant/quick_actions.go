package assistant

// QuickAction is a canned prompt offered next to the chat input
type QuickAction struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

var quickActions = []QuickAction{
	{Label: "查看数据统计", Prompt: "请显示最新的数据统计信息"},
	{Label: "生成分析报告", Prompt: "请生成一份详细的分析报告"},
	{Label: "获取改进建议", Prompt: "基于当前数据给出改进建议"},
}

// QuickActions returns the canned prompts in display order
func QuickActions() []QuickAction {
	return append([]QuickAction{}, quickActions...)
}
