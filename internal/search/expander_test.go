package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleExpander_Expand_AddsSynonyms(t *testing.T) {
	e := NewRuleExpander()

	exp := e.Expand("todo list")

	assert.Contains(t, exp.ExpandedText, "todo")
	assert.Contains(t, exp.ExpandedText, "task")
	assert.Equal(t, StrategyRule, exp.Strategy)
	assert.Greater(t, exp.Confidence, 0.0)
}

func TestRuleExpander_Expand_EmptyQuery_ReturnsOriginalWithZeroConfidence(t *testing.T) {
	e := NewRuleExpander()

	exp := e.Expand("")

	assert.Equal(t, "", exp.ExpandedText)
	assert.Equal(t, 0.0, exp.Confidence)
	assert.Equal(t, StrategyRule, exp.Strategy)
}

func TestRuleExpander_Expand_NoSynonymMatch_LowerConfidence(t *testing.T) {
	e := NewRuleExpander()

	exp := e.Expand("xyzzy plugh")

	assert.Equal(t, 0.4, exp.Confidence)
}

func TestRuleExpander_Expand_NeverPanics(t *testing.T) {
	e := NewRuleExpander()

	assert.NotPanics(t, func() {
		e.Expand("___")
		e.Expand("!!!")
		e.Expand("日本語")
	})
}

func TestRuleExpander_Expand_SplitsCamelAndSnakeCase(t *testing.T) {
	e := NewRuleExpander()

	exp := e.Expand("action_item dailyStandup")

	assert.Contains(t, exp.ExpandedText, "action")
	assert.Contains(t, exp.ExpandedText, "item")
	assert.Contains(t, exp.ExpandedText, "daily")
	assert.Contains(t, exp.ExpandedText, "Standup")
}

func TestTokenize_SplitsOnPunctuationAndCasing(t *testing.T) {
	tokens := tokenize("search_function helloWorld, foo")

	assert.Equal(t, []string{"search", "function", "hello", "World", "foo"}, tokens)
}

func TestSplitCamelSnake(t *testing.T) {
	assert.Equal(t, []string{"search", "function"}, splitCamelSnake("search_function"))
	assert.Equal(t, []string{"search", "Function"}, splitCamelSnake("searchFunction"))
	assert.Equal(t, []string{"Plain"}, splitCamelSnake("Plain"))
}
