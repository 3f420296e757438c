// Package parser 模型输出与用户指令解析
//
// 负责两类解析：
//  1. 模型输出：UPPER_SNAKE_CASE 字段块文本 → 字段映射；SOURCES 块 → 来源列表
//  2. 用户指令：从自由文本中识别 research / edit 命令
//
// 解析失败一律返回 nil（零值），不返回 error：
// 对模型输出意味着"格式不符，可重试"；对用户指令意味着"按普通聊天处理"。
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"wordpilot/internal/shared/model"
)

// SourcesField 接收来源子解析的特殊字段名
const SourcesField = "sources"

var (
	// fieldHeaderRe 匹配独占一行的字段头，如 "KEY_FACTS:"
	fieldHeaderRe = regexp.MustCompile(`^([A-Z_][A-Z0-9_]*):\s*$`)

	// sourceMarkerRe 匹配来源编号标记 [n]
	sourceMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

	// urlRe 从引文中提取 URL
	urlRe = regexp.MustCompile(`https?://[^\s)\]"']+`)

	// itemNameRe 匹配 research 命令
	itemNameRe = regexp.MustCompile(`(?i)^research\s*:?\s*(.+)$`)

	// fixFieldRe 匹配 "fix the <field> in <item>" 命令
	fixFieldRe = regexp.MustCompile(`(?i)^fix\s+the\s+(.+?)\s+in\s+(.+)$`)

	// editItemRe 匹配 "edit/update <item>" 命令
	editItemRe = regexp.MustCompile(`(?i)^(?:edit|update)\s*:?\s*(.+)$`)
)

// ============================================================================
// 模型输出解析
// ============================================================================

// ResearchOutput 字段块文本的解析结果
type ResearchOutput struct {
	// Fields 字段名（小写）→ 字段体原文
	Fields map[string]string

	// Sources sources 字段体经 ParseSources 子解析得到的来源列表
	Sources []model.Source
}

// ParseResearchOutput 将字段块文本解析为字段映射
//
// 扫描各行：匹配字段头的行开启一个新字段（字段名转小写），
// 其后的行累积为字段体，直到下一个字段头或文本结束。
// 字段体去除首尾空行。sources 字段体额外交给 ParseSources 子解析。
// 未识别出任何字段时返回 nil。
func ParseResearchOutput(text string) *ResearchOutput {
	lines := strings.Split(text, "\n")

	fields := make(map[string]string)
	var order []string
	current := ""
	var body []string

	flush := func() {
		if current == "" {
			return
		}
		fields[current] = strings.TrimSpace(strings.Join(body, "\n"))
		body = nil
	}

	for _, line := range lines {
		if m := fieldHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			current = strings.ToLower(m[1])
			if _, seen := fields[current]; !seen {
				order = append(order, current)
			}
			fields[current] = ""
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()

	if len(order) == 0 {
		return nil
	}
	return &ResearchOutput{
		Fields:  fields,
		Sources: ParseSources(fields[SourcesField]),
	}
}

// ParseSources 将 SOURCES 字段体解析为来源列表
//
// 优先按 [n] 标记切分，每个标记对应一个来源；
// 没有任何标记时退化为每个非空行一个来源，编号按行序递增。
// 空文本返回 nil。
func ParseSources(text string) []model.Source {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	markers := sourceMarkerRe.FindAllStringSubmatchIndex(text, -1)
	var sources []model.Source

	if len(markers) > 0 {
		for i, m := range markers {
			number, _ := strconv.Atoi(text[m[2]:m[3]])
			end := len(text)
			if i+1 < len(markers) {
				end = markers[i+1][0]
			}
			citation := strings.TrimSpace(text[m[1]:end])
			if citation == "" {
				continue
			}
			sources = append(sources, newSource(number, citation))
		}
		return sources
	}

	number := 1
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sources = append(sources, newSource(number, line))
		number++
	}
	return sources
}

// newSource 构造来源：提取 URL 并按关键词推断类型
func newSource(number int, citation string) model.Source {
	source := model.Source{
		Number:   number,
		Citation: citation,
		Type:     inferSourceType(citation),
	}
	if m := urlRe.FindString(citation); m != "" {
		source.URL = m
	}
	return source
}

// inferSourceType 按关键词推断来源类型
func inferSourceType(citation string) model.SourceType {
	lower := strings.ToLower(citation)
	switch {
	case strings.Contains(lower, "isbn") || strings.Contains(lower, "publisher"):
		return model.SourceTypeBook
	case strings.Contains(lower, "journal") || strings.Contains(lower, "volume") ||
		strings.Contains(lower, "issue") || strings.Contains(lower, "pages"):
		return model.SourceTypeArticle
	case strings.Contains(lower, "http") || strings.Contains(lower, "www"):
		return model.SourceTypeWebsite
	default:
		return model.SourceTypeOther
	}
}

// ============================================================================
// 用户指令解析
// ============================================================================

// ExtractItemName 识别 research 命令，返回条目名称
//
// 匹配 "research[:] <name>"（不区分大小写）。未匹配时返回空串，
// 表示按普通聊天处理。
func ExtractItemName(message string) string {
	m := itemNameRe.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// EditCommand 编辑命令解析结果
type EditCommand struct {
	// ItemName 目标条目名称
	ItemName string

	// FieldName 目标字段名（小写下划线），仅 "fix the ... in ..." 形式有值
	FieldName string
}

// ExtractEditCommand 识别 edit 命令
//
// 先尝试 "fix the <field> in <item>"（同时捕获字段与条目，
// 字段名转小写并将空格替换为下划线），再退回 "edit/update[:] <item>"。
// 未匹配时返回 nil。
func ExtractEditCommand(message string) *EditCommand {
	message = strings.TrimSpace(message)

	if m := fixFieldRe.FindStringSubmatch(message); m != nil {
		field := strings.ToLower(strings.TrimSpace(m[1]))
		field = strings.ReplaceAll(field, " ", "_")
		return &EditCommand{
			ItemName:  strings.TrimSpace(m[2]),
			FieldName: field,
		}
	}

	if m := editItemRe.FindStringSubmatch(message); m != nil {
		return &EditCommand{ItemName: strings.TrimSpace(m[1])}
	}

	return nil
}
