package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebot/internal/models"
	contextutils "codebot/internal/utils"
)

// fakeGenerator plays back scripted responses and records every prompt
type fakeGenerator struct {
	mu        sync.Mutex
	responses []fakeResponse
	prompts   []string
	models    []string
}

type fakeResponse struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", contextutils.WrapError(contextutils.ErrAIUnavailable, "request cancelled")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.models = append(g.models, model)

	if len(g.responses) == 0 {
		return "", contextutils.WrapError(contextutils.ErrAIUnavailable, "no scripted response")
	}
	next := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return next.text, next.err
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newTestAIService(t *testing.T, gen *fakeGenerator) (*AIService, *memoryHistoryStore) {
	t.Helper()
	store := newMemoryHistoryStore()
	conversations := NewConversationService(store, 50, newTestLogger())
	svc, err := NewAIService(testAIConfig(), newTestLogger(), gen, conversations)
	require.NoError(t, err)
	svc.retryPolicy.backoffBase = time.Millisecond
	return svc, store
}

const validChatJSON = `{
	"message_en": "A variable stores a value.",
	"message_ar": "المتغير يخزن قيمة.",
	"suggestions": ["What types exist?"]
}`

func TestNewAIService_ConfigValidation(t *testing.T) {
	conversations := NewConversationService(newMemoryHistoryStore(), 50, newTestLogger())

	t.Run("MissingAPIKeyFatal", func(t *testing.T) {
		cfg := testAIConfig()
		cfg.Providers[0].APIKey = ""
		_, err := NewAIService(cfg, newTestLogger(), &fakeGenerator{}, conversations)
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIConfigInvalid, contextutils.GetErrorCode(err))
	})

	t.Run("UnknownProviderFatal", func(t *testing.T) {
		cfg := testAIConfig()
		cfg.AI.Provider = "nonexistent"
		_, err := NewAIService(cfg, newTestLogger(), &fakeGenerator{}, conversations)
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIConfigInvalid, contextutils.GetErrorCode(err))
	})
}

func TestNewDegradedAIService(t *testing.T) {
	ctx := context.Background()
	userID := 42

	newDegraded := func(t *testing.T) (*AIService, *memoryHistoryStore) {
		t.Helper()
		store := newMemoryHistoryStore()
		conversations := NewConversationService(store, 50, newTestLogger())
		cfg := testAIConfig()
		cfg.Providers[0].APIKey = ""
		svc, err := NewDegradedAIService(cfg, newTestLogger(), conversations)
		require.NoError(t, err)
		return svc, store
	}

	t.Run("ChatDegradesToConnectionApology", func(t *testing.T) {
		svc, _ := newDegraded(t)

		reply, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, chatConnectionFallbackEn, reply.MessageEn)
		assert.Equal(t, chatConnectionFallbackAr, reply.MessageAr)
	})

	t.Run("GradeCodeUsesHeuristicGrader", func(t *testing.T) {
		svc, _ := newDegraded(t)

		result := svc.GradeCode(ctx, `int main() { cout << "hello"; return 0; }`, "Print hello.", "", nil)
		assert.Equal(t, models.StatusAccepted, result.Status)
		assert.Contains(t, result.FeedbackEn, "heuristic")
	})

	t.Run("GenerateProblemReportsUnavailable", func(t *testing.T) {
		svc, _ := newDegraded(t)

		_, err := svc.GenerateProblem(ctx, "loops", "Easy")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIUnavailable, contextutils.GetErrorCode(err))
	})

	t.Run("ReviewSolutionReportsUnavailable", func(t *testing.T) {
		svc, _ := newDegraded(t)

		_, err := svc.ReviewSolution(ctx, "Sum the array.", "int main() {}")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIUnavailable, contextutils.GetErrorCode(err))
	})

	t.Run("HistoryManagementKeepsWorking", func(t *testing.T) {
		svc, store := newDegraded(t)

		_, err := svc.Chat(ctx, &userID, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)

		history, err := store.LoadHistory(ctx, userID, models.TrackProblemSolving)
		require.NoError(t, err)
		require.Len(t, history, 2)

		require.NoError(t, svc.ClearHistory(ctx, userID, models.TrackProblemSolving))
		history, err = store.LoadHistory(ctx, userID, models.TrackProblemSolving)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestAIService_Chat(t *testing.T) {
	ctx := context.Background()
	userID := 42

	t.Run("AuthenticatedSuccessAppendsHistory", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, store := newTestAIService(t, gen)

		reply, err := svc.Chat(ctx, &userID, models.TrackProblemSolving, "what is a variable?", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, "A variable stores a value.", reply.MessageEn)
		assert.Equal(t, "المتغير يخزن قيمة.", reply.MessageAr)

		history, err := store.LoadHistory(ctx, userID, models.TrackProblemSolving)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "what is a variable?", history[0].Content)
		assert.Equal(t, "A variable stores a value.", history[1].Content)
	})

	t.Run("GuestNeverTouchesStore", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, store := newTestAIService(t, gen)

		reply, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.NotEmpty(t, reply.MessageEn)
		assert.Zero(t, store.saveCalls)
	})

	t.Run("InvalidTrackRejectedBeforeAICall", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.Chat(ctx, nil, "cooking", "how do I fry?", "", "", "")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeInvalidTrack, contextutils.GetErrorCode(err))
		assert.Zero(t, gen.callCount())
	})

	t.Run("UnavailableAbsorbedAsConnectionApology", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{
			{err: contextutils.WrapError(contextutils.ErrAIUnavailable, "down")},
		}}
		svc, _ := newTestAIService(t, gen)

		reply, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, chatConnectionFallbackEn, reply.MessageEn)
		assert.Equal(t, chatConnectionFallbackAr, reply.MessageAr)
		assert.Empty(t, reply.Suggestions)
	})

	t.Run("MalformedAbsorbedAsFormatApology", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: "plain text, not JSON"}}}
		svc, _ := newTestAIService(t, gen)

		reply, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, chatFormatFallbackEn, reply.MessageEn)
		assert.Equal(t, chatFormatFallbackAr, reply.MessageAr)
	})

	t.Run("RateLimitedRetriedThenSuccess", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{
			{err: contextutils.WrapError(contextutils.ErrAIRateLimited, "slow down")},
			{text: validChatJSON},
		}}
		svc, _ := newTestAIService(t, gen)

		reply, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, "A variable stores a value.", reply.MessageEn)
		assert.Equal(t, 2, gen.callCount())
	})

	t.Run("PromptCarriesPersonaAndHistory", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, _ := newTestAIService(t, gen)

		require.NoError(t, svc.conversations.Append(ctx, userID, models.TrackRobotics,
			models.ChatMessage{Role: models.RoleUser, Content: "how do I wire an LED?"},
			models.ChatMessage{Role: models.RoleAssistant, Content: "connect it through a resistor"},
		))

		_, err := svc.Chat(ctx, &userID, models.TrackRobotics, "and a button?", "", "", "Traffic Light Project")
		require.NoError(t, err)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "RoboBot")
		assert.NotContains(t, prompt, "CodeBot,")
		assert.Contains(t, prompt, "how do I wire an LED?")
		assert.Contains(t, prompt, "connect it through a resistor")
		assert.Contains(t, prompt, "User: and a button?")
		assert.Contains(t, prompt, "Traffic Light Project")
	})

	t.Run("ContextSectionsOnlyWhenPresent", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "Title: Sums\nAdd numbers.", "int main() {}", "")
		require.NoError(t, err)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "Context: Title: Sums")
		assert.Contains(t, prompt, "Code: int main() {}")

		_, err = svc.Chat(ctx, nil, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.NotContains(t, gen.lastPrompt(), "Context:")
	})

	t.Run("CancelledChatDoesNotAppend", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, store := newTestAIService(t, gen)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		reply, err := svc.Chat(cancelled, &userID, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)
		assert.Equal(t, chatConnectionFallbackEn, reply.MessageEn)
		assert.Zero(t, store.saveCalls)
	})
}

func TestAIService_GenerateProblem(t *testing.T) {
	ctx := context.Background()

	validProblemJSON := `{
		"title": "Falafel Queue",
		"description": "Hamza waits in line for falafel with $n$ friends.",
		"input_format": "A single integer $n$.",
		"output_format": "One integer.",
		"examples": [{"input": "3", "output": "3", "explanation": "All three are served."}],
		"constraints": "$1 \\le n \\le 10^5$"
	}`

	t.Run("Success", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validProblemJSON}}}
		svc, _ := newTestAIService(t, gen)

		problem, err := svc.GenerateProblem(ctx, "loops", "Easy")
		require.NoError(t, err)
		assert.Equal(t, "Falafel Queue", problem.Title)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "Topic: loops")
		assert.Contains(t, prompt, "Difficulty: Easy")
		assert.Contains(t, prompt, "no markdown fencing")
	})

	t.Run("InvalidDifficultyRejected", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.GenerateProblem(ctx, "loops", "Impossible")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeInvalidDifficulty, contextutils.GetErrorCode(err))
		assert.Zero(t, gen.callCount())
	})

	t.Run("EmptyTopicRejected", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.GenerateProblem(ctx, "", "Easy")
		require.Error(t, err)
		assert.Zero(t, gen.callCount())
	})

	t.Run("UnavailableSurfaces", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{
			{err: contextutils.WrapError(contextutils.ErrAIUnavailable, "down")},
		}}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.GenerateProblem(ctx, "loops", "Medium")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIUnavailable, contextutils.GetErrorCode(err))
	})

	t.Run("MalformedSurfaces", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: "not a problem"}}}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.GenerateProblem(ctx, "loops", "Hard")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIResponseMalformed, contextutils.GetErrorCode(err))
	})

	t.Run("FencedOutputStillParsed", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: "```json\n" + validProblemJSON + "\n```"}}}
		svc, _ := newTestAIService(t, gen)

		problem, err := svc.GenerateProblem(ctx, "loops", "Easy")
		require.NoError(t, err)
		assert.Equal(t, "Falafel Queue", problem.Title)
	})
}

func TestAIService_GradeCode(t *testing.T) {
	ctx := context.Background()
	code := `int main() { cout << "hello"; return 0; }`

	t.Run("Success", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: `{
			"status": "ACCEPTED",
			"is_correct": true,
			"feedback_en": "Correct output.",
			"feedback_ar": "الناتج صحيح.",
			"hint": null
		}`}}}
		svc, _ := newTestAIService(t, gen)

		result := svc.GradeCode(ctx, code, "Print hello.", "", nil)
		assert.Equal(t, models.StatusAccepted, result.Status)
		assert.True(t, result.IsCorrect)
	})

	t.Run("UnavailableFallsBackToHeuristic", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{
			{err: contextutils.WrapError(contextutils.ErrAIUnavailable, "down")},
		}}
		svc, _ := newTestAIService(t, gen)

		result := svc.GradeCode(ctx, code, "Print hello.", "", nil)
		assert.Equal(t, models.StatusAccepted, result.Status)
		assert.Contains(t, result.FeedbackEn, "heuristic")
	})

	t.Run("MalformedFallsBackToHeuristic", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: "your code is bad"}}}
		svc, _ := newTestAIService(t, gen)

		result := svc.GradeCode(ctx, "no entry point here", "Print hello.", "", nil)
		assert.Equal(t, models.StatusWrongAnswer, result.Status)
		require.NotNil(t, result.Hint)
	})

	t.Run("ContradictoryVerdictDemotedToIncorrect", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: `{
			"status": "WRONG_ANSWER",
			"is_correct": true,
			"feedback_en": "Looks fine.",
			"feedback_ar": "يبدو جيداً.",
			"hint": "Check the edge cases."
		}`}}}
		svc, _ := newTestAIService(t, gen)

		result := svc.GradeCode(ctx, code, "Print hello.", "", nil)
		assert.Equal(t, models.StatusWrongAnswer, result.Status)
		assert.False(t, result.IsCorrect)
		require.NotNil(t, result.Hint)
	})

	t.Run("ArabicDescriptionTruncatedOnRuneBoundary", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: `{
			"status": "WRONG_ANSWER",
			"is_correct": false,
			"feedback_en": "Nope.",
			"feedback_ar": "لا.",
			"hint": "Try again."
		}`}}}
		svc, _ := newTestAIService(t, gen)

		longArabic := "a" + strings.Repeat("م", 2000)
		svc.GradeCode(ctx, code, longArabic, "", nil)

		prompt := gen.lastPrompt()
		assert.True(t, utf8.ValidString(prompt))
		assert.Contains(t, prompt, "a"+strings.Repeat("م", 1499)+"...")
	})

	t.Run("DescriptionTruncatedInPrompt", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: `{
			"status": "WRONG_ANSWER",
			"is_correct": false,
			"feedback_en": "Nope.",
			"feedback_ar": "لا.",
			"hint": "Try again."
		}`}}}
		svc, _ := newTestAIService(t, gen)

		longDesc := strings.Repeat("x", 2000)
		svc.GradeCode(ctx, code, longDesc, "", nil)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, strings.Repeat("x", 1500)+"...")
		assert.NotContains(t, prompt, strings.Repeat("x", 1501))
	})

	t.Run("SampleIOCapped", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: `{
			"status": "ACCEPTED",
			"is_correct": true,
			"feedback_en": "ok",
			"feedback_ar": "حسناً",
			"hint": null
		}`}}}
		svc, _ := newTestAIService(t, gen)

		sampleIO := []models.SampleIO{
			{Input: "in-1", Output: "out-1"},
			{Input: "in-2", Output: "out-2"},
			{Input: "in-3", Output: "out-3"},
			{Input: "in-4", Output: "out-4"},
		}
		svc.GradeCode(ctx, code, "Echo the input.", "", sampleIO)

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "in-3")
		assert.NotContains(t, prompt, "in-4")
	})
}

func TestAIService_ReviewSolution(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsMarkdown", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: "## Review\nLooks correct, O(n) time."}}}
		svc, _ := newTestAIService(t, gen)

		review, err := svc.ReviewSolution(ctx, "Sum the array.", "int main() { return 0; }")
		require.NoError(t, err)
		assert.Contains(t, review, "## Review")

		prompt := gen.lastPrompt()
		assert.Contains(t, prompt, "Problem Context: Sum the array.")
		assert.Contains(t, prompt, "int main() { return 0; }")
	})

	t.Run("EmptyCodeRejected", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.ReviewSolution(ctx, "Sum the array.", "")
		require.Error(t, err)
		assert.Zero(t, gen.callCount())
	})

	t.Run("FailureSurfaces", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{
			{err: contextutils.WrapError(contextutils.ErrAIUnavailable, "down")},
		}}
		svc, _ := newTestAIService(t, gen)

		_, err := svc.ReviewSolution(ctx, "Sum the array.", "int main() {}")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeAIUnavailable, contextutils.GetErrorCode(err))
	})
}

func TestAIService_ClearHistory(t *testing.T) {
	ctx := context.Background()
	userID := 42

	t.Run("ClearsStoredHistory", func(t *testing.T) {
		gen := &fakeGenerator{responses: []fakeResponse{{text: validChatJSON}}}
		svc, store := newTestAIService(t, gen)

		_, err := svc.Chat(ctx, &userID, models.TrackProblemSolving, "hello", "", "", "")
		require.NoError(t, err)

		require.NoError(t, svc.ClearHistory(ctx, userID, models.TrackProblemSolving))

		history, err := store.LoadHistory(ctx, userID, models.TrackProblemSolving)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("InvalidTrackRejected", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, _ := newTestAIService(t, gen)

		err := svc.ClearHistory(ctx, userID, "cooking")
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeInvalidTrack, contextutils.GetErrorCode(err))
	})
}
