package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"空内容", "", 0},
		{"纯文本", "one two three", 3},
		{"HTML 标签不计入", "<p>hello <b>world</b></p>", 2},
		{"标签分隔相邻单词", "<p>foo</p><p>bar</p>", 2},
		{"多余空白", "  a \n b\t c  ", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.content))
		})
	}
}

func TestNewResearchSessionDefaults(t *testing.T) {
	s := NewResearchSession("proj-1")

	assert.Equal(t, "proj-1", s.ProjectID)
	assert.Equal(t, PhasePlanning, s.CurrentPhase)
	assert.False(t, s.HasPlan())

	require.Len(t, s.Phases, 3)
	for phase := PhasePlanning; phase <= PhaseFactCheck; phase++ {
		assert.Equal(t, PhaseStatusNotStarted, s.Phases[phase].Status)
		assert.Nil(t, s.Phases[phase].CompletedAt)
	}
}

func TestMarkPhaseComplete(t *testing.T) {
	s := NewResearchSession("proj-1")
	s.MarkPhaseComplete(PhasePlanning)

	state := s.Phases[PhasePlanning]
	assert.Equal(t, PhaseStatusComplete, state.Status)
	require.NotNil(t, state.CompletedAt)
	assert.Equal(t, PhaseStatusNotStarted, s.Phases[PhaseResearch].Status)
}

func TestPromptForPhase(t *testing.T) {
	tpl := &PromptTemplate{
		ID:           DefaultTemplateID,
		Phase1Prompt: "plan",
		Phase2Prompt: "research",
		Phase3Prompt: "check",
	}

	assert.Equal(t, "plan", tpl.PromptForPhase(PhasePlanning))
	assert.Equal(t, "research", tpl.PromptForPhase(PhaseResearch))
	assert.Equal(t, "check", tpl.PromptForPhase(PhaseFactCheck))
	assert.Equal(t, "", tpl.PromptForPhase(4))
	assert.True(t, tpl.IsDefault())
}

func TestSubscriptionRemaining(t *testing.T) {
	sub := &Subscription{TokensUsed: 300, TokensLimit: 1000}
	assert.Equal(t, int64(700), sub.Remaining())

	sub.TokensUsed = 1200
	assert.Equal(t, int64(0), sub.Remaining())
}
