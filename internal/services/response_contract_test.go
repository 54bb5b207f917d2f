package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebot/internal/models"
	contextutils "codebot/internal/utils"
)

func TestRepairResponse(t *testing.T) {
	cleanJSON := `{"title": "Qaruti's Game"}`

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"NoFence", cleanJSON, cleanJSON},
		{"FenceWithLanguageTag", "```json\n" + cleanJSON + "\n```", cleanJSON},
		{"FenceWithoutLanguageTag", "```\n" + cleanJSON + "\n```", cleanJSON},
		{"FenceWithSurroundingWhitespace", "  \n```json\n" + cleanJSON + "\n```\n  ", cleanJSON},
		{"SingleLineFence", "```" + cleanJSON + "```", cleanJSON},
		{"EmptyInput", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, repairResponse(tc.input))
		})
	}
}

func TestRepairResponse_Idempotent(t *testing.T) {
	input := "```json\n{\"message_en\": \"hi\"}\n```"
	once := repairResponse(input)
	twice := repairResponse(once)
	assert.Equal(t, once, twice)
}

func TestParseGeneratedProblem(t *testing.T) {
	validJSON := `{
		"title": "Ayham's Reels",
		"description": "Given a number $x$, find 4 consecutive even numbers whose sum equals $x$.",
		"input_format": "A single integer $x$.",
		"output_format": "Four integers.",
		"examples": [{"input": "20", "output": "2 4 6 8", "explanation": "2 + 4 + 6 + 8 = 20."}],
		"constraints": "$20 \\le x \\le 10^{12}$"
	}`

	t.Run("ValidPayload", func(t *testing.T) {
		problem, err := ParseGeneratedProblem(validJSON)
		require.NoError(t, err)
		assert.Equal(t, "Ayham's Reels", problem.Title)
		require.Len(t, problem.Examples, 1)
		assert.Equal(t, "20", problem.Examples[0].Input)
	})

	t.Run("FencedPayload", func(t *testing.T) {
		problem, err := ParseGeneratedProblem("```json\n" + validJSON + "\n```")
		require.NoError(t, err)
		assert.Equal(t, "Ayham's Reels", problem.Title)
	})

	t.Run("OptionalStarterCodeDecoded", func(t *testing.T) {
		withStarter := strings.Replace(validJSON, `"constraints":`, `"starter_code": "int main() {}", "constraints":`, 1)
		problem, err := ParseGeneratedProblem(withStarter)
		require.NoError(t, err)
		assert.Equal(t, "int main() {}", problem.StarterCode)
	})

	t.Run("NotJSON", func(t *testing.T) {
		_, err := ParseGeneratedProblem("I could not generate a problem, sorry!")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("MissingRequiredKey", func(t *testing.T) {
		_, err := ParseGeneratedProblem(`{"title": "No Body"}`)
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("EmptyExamples", func(t *testing.T) {
		_, err := ParseGeneratedProblem(strings.Replace(validJSON, `[{"input": "20", "output": "2 4 6 8", "explanation": "2 + 4 + 6 + 8 = 20."}]`, "[]", 1))
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("ExcessExamplesTruncated", func(t *testing.T) {
		manyExamples := `[
			{"input": "1", "output": "1"},
			{"input": "2", "output": "2"},
			{"input": "3", "output": "3"},
			{"input": "4", "output": "4"},
			{"input": "5", "output": "5"}
		]`
		problem, err := ParseGeneratedProblem(strings.Replace(validJSON, `[{"input": "20", "output": "2 4 6 8", "explanation": "2 + 4 + 6 + 8 = 20."}]`, manyExamples, 1))
		require.NoError(t, err)
		assert.Len(t, problem.Examples, 3)
	})
}

func TestParseGradeResult(t *testing.T) {
	t.Run("CompletePayload", func(t *testing.T) {
		result, err := ParseGradeResult(`{
			"status": "ACCEPTED",
			"is_correct": true,
			"feedback_en": "Well done.",
			"feedback_ar": "أحسنت.",
			"hint": null
		}`)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, result.Status)
		assert.True(t, result.IsCorrect)
		assert.Equal(t, "Well done.", result.FeedbackEn)
		assert.Nil(t, result.Hint)
	})

	t.Run("MissingKeysBackfilled", func(t *testing.T) {
		result, err := ParseGradeResult(`{"status": "LOGIC_ERROR"}`)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLogicError, result.Status)
		assert.False(t, result.IsCorrect)
		assert.Equal(t, "Could not fully evaluate the code.", result.FeedbackEn)
		assert.Equal(t, "تعذّر تقييم الكود بشكل كامل.", result.FeedbackAr)
		assert.Nil(t, result.Hint)
	})

	t.Run("UnknownStatusCoerced", func(t *testing.T) {
		result, err := ParseGradeResult(`{
			"status": "PARTIALLY_CORRECT",
			"is_correct": false,
			"feedback_en": "Half right.",
			"feedback_ar": "نصف صحيح.",
			"hint": "Check the loop bounds."
		}`)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWrongAnswer, result.Status)
		require.NotNil(t, result.Hint)
		assert.Equal(t, "Check the loop bounds.", *result.Hint)
	})

	t.Run("CorrectClaimWithNonAcceptedStatusDemoted", func(t *testing.T) {
		result, err := ParseGradeResult(`{
			"status": "WRONG_ANSWER",
			"is_correct": true,
			"feedback_en": "Looks good.",
			"feedback_ar": "يبدو جيداً.",
			"hint": "Try again."
		}`)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWrongAnswer, result.Status)
		assert.False(t, result.IsCorrect)
		require.NotNil(t, result.Hint)
	})

	t.Run("CorrectResultDropsHint", func(t *testing.T) {
		result, err := ParseGradeResult(`{
			"status": "ACCEPTED",
			"is_correct": true,
			"feedback_en": "Well done.",
			"feedback_ar": "أحسنت.",
			"hint": "You could also use a formula."
		}`)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, result.Status)
		assert.True(t, result.IsCorrect)
		assert.Nil(t, result.Hint)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := ParseGradeResult("the code looks wrong to me")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("BackfillCounted", func(t *testing.T) {
		ContractBackfillMu.Lock()
		before := ContractBackfillCounts["grade_code"]
		ContractBackfillMu.Unlock()

		_, err := ParseGradeResult(`{"is_correct": false}`)
		require.NoError(t, err)

		ContractBackfillMu.Lock()
		after := ContractBackfillCounts["grade_code"]
		ContractBackfillMu.Unlock()
		assert.Greater(t, after, before)
	})
}

func TestParseChatReply(t *testing.T) {
	t.Run("CompletePayload", func(t *testing.T) {
		reply, err := ParseChatReply(`{
			"message_en": "A loop repeats a block of code.",
			"message_ar": "الحلقة تكرر جزءاً من الكود.",
			"suggestions": ["What is a for loop?", "Show me an example"]
		}`)
		require.NoError(t, err)
		assert.Equal(t, "A loop repeats a block of code.", reply.MessageEn)
		assert.Len(t, reply.Suggestions, 2)
	})

	t.Run("MissingSuggestionsBackfilled", func(t *testing.T) {
		reply, err := ParseChatReply(`{"message_en": "hi", "message_ar": "مرحبا"}`)
		require.NoError(t, err)
		require.NotNil(t, reply.Suggestions)
		assert.Empty(t, reply.Suggestions)
	})

	t.Run("ExcessSuggestionsTruncated", func(t *testing.T) {
		reply, err := ParseChatReply(`{
			"message_en": "hi",
			"message_ar": "مرحبا",
			"suggestions": ["a", "b", "c", "d", "e"]
		}`)
		require.NoError(t, err)
		assert.Len(t, reply.Suggestions, 3)
	})

	t.Run("MissingMessageKey", func(t *testing.T) {
		_, err := ParseChatReply(`{"message_en": "only english"}`)
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("NotJSON", func(t *testing.T) {
		_, err := ParseChatReply("here is my answer in plain text")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})
}
