package sql

import (
	"strings"

	"abroadPlan/internal/model"
)

// WhereBuilder SQL WHERE 子句构建器
type WhereBuilder struct {
	conditions []string
	args       []any
}

// NewWhereBuilder 创建新的 WHERE 构建器
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddCondition 添加SQL WHERE条件子句
// condition 必须是代码中的字面量，用户输入只能通过 args 传递
func (wb *WhereBuilder) AddCondition(condition string, args ...any) *WhereBuilder {
	if condition == "" {
		return wb
	}
	wb.conditions = append(wb.conditions, condition)
	wb.args = append(wb.args, args...)
	return wb
}

// ApplyProviderLogFilter 应用上游日志过滤条件
func (wb *WhereBuilder) ApplyProviderLogFilter(filter *model.ProviderLogFilter) *WhereBuilder {
	if filter == nil {
		return wb
	}
	if filter.Provider != "" {
		wb.AddCondition("provider = ?", filter.Provider)
	}
	if filter.Outcome != "" {
		wb.AddCondition("outcome = ?", filter.Outcome)
	}
	return wb
}

// Build 构建最终的 WHERE 子句和参数
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return strings.Join(wb.conditions, " AND "), wb.args
}

// BuildWithPrefix 构建带前缀的 WHERE 子句
func (wb *WhereBuilder) BuildWithPrefix(prefix string) (string, []any) {
	whereClause, args := wb.Build()
	if whereClause == "" {
		return "", args
	}
	return prefix + " " + whereClause, args
}
