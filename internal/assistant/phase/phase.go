// Package phase 研究阶段定义与规划 JSON 提取
//
// 三个阶段是"模式"而非严格流水线：阶段切换不校验完成状态，
// 核查阶段可能需要回到规划阶段补充内容。
package phase

import (
	"encoding/json"
	"regexp"
	"strings"

	"wordpilot/internal/shared/model"
)

// Name 返回阶段名称，非法阶段号按规划阶段处理
func Name(phase int) string {
	switch phase {
	case model.PhaseResearch:
		return "Research"
	case model.PhaseFactCheck:
		return "Fact Checking"
	default:
		return "Planning"
	}
}

// ============================================================================
// 内置默认提示词
// ============================================================================

// BuiltinPrompt 返回阶段的内置默认提示词（模板链的最后回退，永不为空）
func BuiltinPrompt(phase int) string {
	switch phase {
	case model.PhaseResearch:
		return BuiltinPhase2Prompt
	case model.PhaseFactCheck:
		return BuiltinPhase3Prompt
	default:
		return BuiltinPhase1Prompt
	}
}

// BuiltinPhase1Prompt 规划阶段内置提示词
const BuiltinPhase1Prompt = `You are helping an author plan a research-intensive non-fiction book.

Tasks:
1. Understand their topic and refine the scope
2. Identify similar existing works
3. Define target audience and research depth
4. Create a structured research plan with sections and items to research
5. Define what information fields to collect for each item

When ready, output JSON only in this format (no other fields):

{
  "bookPlan": { "topic": "...", "angle": "...", "audience": "...", "depth": "..." },
  "similarWorks": [{"title": "...", "author": "...", "howItsDifferent": "..."}],
  "researchPlan": {
    "sections": [{"title": "...", "description": "...", "itemsToResearch": ["..."]}],
    "researchFields": ["field1", "field2", ...]
  }
}

Be conversational and thorough.`

// BuiltinPhase2Prompt 研究阶段内置提示词
const BuiltinPhase2Prompt = `You are researching items for a non-fiction book.

When the user asks you to research an item:
1. Gather thorough information from credible sources
2. Structure your research using the fields defined in the research plan
3. Provide complete source citations with full bibliographic details

For books: Author (Year). Title. Publisher. ISBN.
For websites: "Title" - Source. URL (Accessed: Date)
For articles: Author (Year). "Title". Journal, Volume(Issue), Pages.

Output research in clearly labeled sections matching the research fields.
Include a SOURCES section with numbered references.`

// BuiltinPhase3Prompt 核查阶段内置提示词
const BuiltinPhase3Prompt = `You are fact-checking and verifying research for a non-fiction book.

Your tasks:
1. Review research items for accuracy
2. Check for contradictory information across sources
3. Verify source citations are complete and legitimate
4. Identify gaps in research coverage
5. Suggest corrections or additional research where needed

Be thorough and highlight any concerns about source quality or missing information.`

// ============================================================================
// Phase-1 JSON 提取
// ============================================================================

// Phase1Result 规划阶段模型输出的 JSON 载荷
type Phase1Result struct {
	BookPlan     *model.BookPlan     `json:"bookPlan"`
	SimilarWorks []model.SimilarWork `json:"similarWorks"`
	ResearchPlan *model.ResearchPlan `json:"researchPlan"`
	Phase2Prompt string              `json:"phase2Prompt"`
}

var (
	// fencedJSONRe 匹配 markdown 代码块中的 JSON 对象
	fencedJSONRe = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")

	// jsonObjectRe 匹配文本中的首个 {...} 片段（贪婪）
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParsePhase1JSON 从模型输出中提取规划 JSON
//
// 先尝试从 markdown 代码块中提取 {...}，再退回全文的首个 {...} 片段。
// 解析结果必须同时包含 bookPlan 和 researchPlan，否则视为"本轮未产出 JSON"
// 返回 nil：规划阶段的普通对话回复不算错误。
func ParsePhase1JSON(content string) *Phase1Result {
	jsonString := strings.TrimSpace(content)

	if strings.Contains(jsonString, "```") {
		if m := fencedJSONRe.FindStringSubmatch(jsonString); m != nil {
			jsonString = m[1]
		}
	}

	if m := jsonObjectRe.FindString(jsonString); m != "" {
		jsonString = m
	}

	var result Phase1Result
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		return nil
	}

	if result.BookPlan == nil || result.ResearchPlan == nil {
		return nil
	}
	return &result
}
