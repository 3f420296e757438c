package parser

import (
	"testing"

	"wordpilot/internal/shared/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResearchOutput(t *testing.T) {
	text := `KEY_FACTS:
The sandwich originated in Tampa.
Workers carried it to cigar factories.

ORIGIN:
Cuban immigrant communities in Florida.

SOURCES:
[1] Some Book (2001). Publisher.
[2] https://tampahistory.org/sandwich
`
	out := ParseResearchOutput(text)
	require.NotNil(t, out)
	require.Len(t, out.Fields, 3)

	assert.Equal(t, "The sandwich originated in Tampa.\nWorkers carried it to cigar factories.", out.Fields["key_facts"])
	assert.Equal(t, "Cuban immigrant communities in Florida.", out.Fields["origin"])
	assert.Equal(t, "[1] Some Book (2001). Publisher.\n[2] https://tampahistory.org/sandwich", out.Fields["sources"])

	// sources 字段体同时经过子解析，得到结构化来源
	require.Len(t, out.Sources, 2)
	assert.Equal(t, 1, out.Sources[0].Number)
	assert.Equal(t, model.SourceTypeBook, out.Sources[0].Type)
	assert.Equal(t, 2, out.Sources[1].Number)
	assert.Equal(t, model.SourceTypeWebsite, out.Sources[1].Type)
	assert.Equal(t, "https://tampahistory.org/sandwich", out.Sources[1].URL)
}

func TestParseResearchOutputWithoutSources(t *testing.T) {
	out := ParseResearchOutput("KEY_FACTS:\nJust the facts.")
	require.NotNil(t, out)
	assert.Empty(t, out.Sources)
}

func TestParseResearchOutputHeaderForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"下划线与数字", "PHASE_2_NOTES:\nbody", []string{"phase_2_notes"}},
		{"字段头带尾随空白", "ORIGIN:   \nbody", []string{"origin"}},
		{"空字段体", "ORIGIN:\nKEY_FACTS:\nfacts", []string{"origin", "key_facts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseResearchOutput(tt.text)
			require.NotNil(t, out)
			for _, key := range tt.want {
				_, ok := out.Fields[key]
				assert.True(t, ok, "missing field %q", key)
			}
		})
	}
}

func TestParseResearchOutputNotFieldShaped(t *testing.T) {
	// 无任何字段头的文本返回 nil，交由调用方按可重试失败处理
	assert.Nil(t, ParseResearchOutput(""))
	assert.Nil(t, ParseResearchOutput("Just a conversational reply about sandwiches."))
	// 小写冒号行不是字段头
	assert.Nil(t, ParseResearchOutput("origin: Tampa"))
	// 字段头后带同行内容不算字段头
	assert.Nil(t, ParseResearchOutput("ORIGIN: Tampa"))
}

func TestParseSources(t *testing.T) {
	text := "[1] Book A (2020). Publisher. ISBN 123.\n[2] https://example.com \"Site\""

	sources := ParseSources(text)
	require.Len(t, sources, 2)

	assert.Equal(t, 1, sources[0].Number)
	assert.Equal(t, model.SourceTypeBook, sources[0].Type)
	assert.Empty(t, sources[0].URL)

	assert.Equal(t, 2, sources[1].Number)
	assert.Equal(t, model.SourceTypeWebsite, sources[1].Type)
	assert.Equal(t, "https://example.com", sources[1].URL)
}

func TestParseSourcesLineFallback(t *testing.T) {
	// 无 [n] 标记时每个非空行一个来源，编号递增
	text := "Journal of Food History, Volume 3\n\nwww.cubansandwich.org"

	sources := ParseSources(text)
	require.Len(t, sources, 2)
	assert.Equal(t, 1, sources[0].Number)
	assert.Equal(t, model.SourceTypeArticle, sources[0].Type)
	assert.Equal(t, 2, sources[1].Number)
	assert.Equal(t, model.SourceTypeWebsite, sources[1].Type)
}

func TestParseSourcesEmpty(t *testing.T) {
	assert.Nil(t, ParseSources(""))
	assert.Nil(t, ParseSources("   \n  "))
}

func TestExtractItemName(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Research: the Cuban sandwich", "the Cuban sandwich"},
		{"research the Cuban sandwich", "the Cuban sandwich"},
		{"RESEARCH: Tea trade routes", "Tea trade routes"},
		{"  research: spaced  ", "spaced"},
		{"Tell me about sandwiches", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractItemName(tt.message), "message: %q", tt.message)
	}
}

func TestExtractEditCommand(t *testing.T) {
	cmd := ExtractEditCommand("Fix the origin in Cuban sandwich")
	require.NotNil(t, cmd)
	assert.Equal(t, "Cuban sandwich", cmd.ItemName)
	assert.Equal(t, "origin", cmd.FieldName)

	// 字段名空格转下划线
	cmd = ExtractEditCommand("fix the key facts in Tea in China")
	require.NotNil(t, cmd)
	assert.Equal(t, "Tea in China", cmd.ItemName)
	assert.Equal(t, "key_facts", cmd.FieldName)

	// edit/update 形式只捕获条目名
	cmd = ExtractEditCommand("edit: Cuban sandwich")
	require.NotNil(t, cmd)
	assert.Equal(t, "Cuban sandwich", cmd.ItemName)
	assert.Empty(t, cmd.FieldName)

	cmd = ExtractEditCommand("Update Cuban sandwich")
	require.NotNil(t, cmd)
	assert.Equal(t, "Cuban sandwich", cmd.ItemName)

	// 非命令文本返回 nil
	assert.Nil(t, ExtractEditCommand("Can you check this paragraph for me?"))
	assert.Nil(t, ExtractEditCommand(""))
}
