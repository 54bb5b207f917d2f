// Package services contains the AI orchestration layer and its
// collaborators: prompt composition, response contracts, retry policy, the
// heuristic grading fallback, and conversation history.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"codebot/internal/config"
	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

// Degraded chat payloads returned when the AI capability fails. Chat never
// presents a hard error to the user.
const (
	chatFormatFallbackEn = "I'm sorry, I couldn't format my response properly."
	chatFormatFallbackAr = "عذراً، لم أتمكن من تنسيق الرد بشكل صحيح."

	chatConnectionFallbackEn = "I'm sorry, there was a connection error."
	chatConnectionFallbackAr = "عذراً، حدث خطأ في الاتصال."
)

// AIServiceInterface defines the orchestrated AI tutoring operations
type AIServiceInterface interface {
	Chat(ctx context.Context, userID *int, track models.Track, message, problemContext, codeContext, projectContext string) (*models.ChatReply, error)
	GenerateProblem(ctx context.Context, topic, difficulty string) (*models.GeneratedProblem, error)
	GradeCode(ctx context.Context, code, problemDesc, constraints string, sampleIO []models.SampleIO) *models.GradeResult
	ReviewSolution(ctx context.Context, problemContext, userCode string) (string, error)
	ClearHistory(ctx context.Context, userID int, track models.Track) error
}

// AIService orchestrates prompt composition, the retry policy over the model
// fallback chain, response contract enforcement, and conversation history
type AIService struct {
	generator       TextGenerator
	templateManager *AITemplateManager
	retryPolicy     *RetryPolicy
	modelSelector   *ModelSelector
	conversations   *ConversationService
	heuristicGrader *HeuristicGrader
	cfg             *config.Config
	logger          *observability.Logger
}

// NewAIService creates the orchestrator. An invalid AI configuration fails
// this constructor; the caller decides whether to fall back to
// NewDegradedAIService so persistence-only operations keep serving.
func NewAIService(cfg *config.Config, logger *observability.Logger, generator TextGenerator, conversations *ConversationService) (result0 *AIService, err error) {
	if err = cfg.ValidateAI(); err != nil {
		return nil, err
	}

	templateManager, err := NewAITemplateManager()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create template manager")
	}

	modelSelector, err := NewModelSelector(cfg)
	if err != nil {
		return nil, err
	}

	return &AIService{
		generator:       generator,
		templateManager: templateManager,
		retryPolicy:     NewRetryPolicy(cfg, logger),
		modelSelector:   modelSelector,
		conversations:   conversations,
		heuristicGrader: NewHeuristicGrader(logger),
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// NewDegradedAIService builds an orchestrator with no provider behind it,
// used when the AI configuration is invalid at startup. Chat and grading run
// their normal fallbacks, generation and review report unavailability, and
// conversation history management keeps working.
func NewDegradedAIService(cfg *config.Config, logger *observability.Logger, conversations *ConversationService) (result0 *AIService, err error) {
	templateManager, err := NewAITemplateManager()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create template manager")
	}

	return &AIService{
		templateManager: templateManager,
		conversations:   conversations,
		heuristicGrader: NewHeuristicGrader(logger),
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// TemplateManager exposes template rendering for prompt inspection
func (s *AIService) TemplateManager() *AITemplateManager {
	return s.templateManager
}

// generate runs one prompt through the retry policy and model chain under
// the fixed per-call deadline
func (s *AIService) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", contextutils.WrapError(contextutils.ErrAIUnavailable, "AI capability is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, config.AIRequestTimeout)
	defer cancel()

	return s.retryPolicy.Execute(ctx, s.modelSelector, func(ctx context.Context, model string) (string, error) {
		return s.generator.Generate(ctx, model, prompt)
	})
}

// Chat sends one tutoring turn to the AI. Authenticated users get
// conversation continuity; a nil userID marks a guest whose context is the
// current turn only. AI failures degrade to a fixed apology payload, never a
// hard error. Only an invalid track is rejected.
func (s *AIService) Chat(ctx context.Context, userID *int, track models.Track, message, problemContext, codeContext, projectContext string) (result0 *models.ChatReply, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "chat",
		observability.AttributeTrack(string(track)),
		attribute.Bool("chat.guest", userID == nil),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.IsValidTrack(string(track)) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidTrack, "unknown track %q", track)
	}

	var history []models.ChatMessage
	if userID != nil {
		history, err = s.conversations.Read(ctx, *userID, track)
		if err != nil {
			s.logger.Warn(ctx, "Failed to load chat history, continuing without it", map[string]interface{}{
				"user_id": *userID,
				"track":   string(track),
				"error":   err.Error(),
			})
			history = nil
			err = nil
		}
	}

	prompt, err := s.templateManager.RenderTemplate(ChatPromptTemplate, AITemplateData{
		Track:          string(track),
		UserMessage:    message,
		History:        history,
		ProblemContext: problemContext,
		CodeContext:    codeContext,
		ProjectContext: projectContext,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to render chat prompt")
	}

	reply := s.chatReplyFor(ctx, prompt)

	if userID != nil && ctx.Err() == nil {
		appendErr := s.conversations.Append(ctx, *userID, track,
			models.ChatMessage{Role: models.RoleUser, Content: message},
			models.ChatMessage{Role: models.RoleAssistant, Content: reply.MessageEn},
		)
		if appendErr != nil {
			s.logger.Warn(ctx, "Failed to append chat history", map[string]interface{}{
				"user_id": *userID,
				"track":   string(track),
				"error":   appendErr.Error(),
			})
		}
	}

	return reply, nil
}

// chatReplyFor runs the prompt and enforces the chat contract, degrading to
// an apology payload on any failure
func (s *AIService) chatReplyFor(ctx context.Context, prompt string) *models.ChatReply {
	raw, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Warn(ctx, "Chat AI call failed, returning degraded reply", map[string]interface{}{
			"error_code": string(contextutils.GetErrorCode(err)),
		})
		if contextutils.GetErrorCode(err) == contextutils.ErrorCodeAIResponseMalformed {
			return &models.ChatReply{MessageEn: chatFormatFallbackEn, MessageAr: chatFormatFallbackAr, Suggestions: []string{}}
		}
		return &models.ChatReply{MessageEn: chatConnectionFallbackEn, MessageAr: chatConnectionFallbackAr, Suggestions: []string{}}
	}

	reply, err := ParseChatReply(raw)
	if err != nil {
		s.logger.Warn(ctx, "Chat response violated contract, returning degraded reply", map[string]interface{}{
			"error": err.Error(),
		})
		return &models.ChatReply{MessageEn: chatFormatFallbackEn, MessageAr: chatFormatFallbackAr, Suggestions: []string{}}
	}
	return reply
}

// GenerateProblem produces a fresh competitive programming problem for a
// topic and difficulty. Unlike chat and grading, failures surface as typed
// errors so the caller can choose its own fallback.
func (s *AIService) GenerateProblem(ctx context.Context, topic, difficulty string) (result0 *models.GeneratedProblem, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "generate_problem",
		attribute.String("problem.topic", topic),
		observability.AttributeDifficulty(difficulty),
	)
	defer observability.FinishSpan(span, &err)

	if topic == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "topic is required")
	}
	switch difficulty {
	case "Easy", "Medium", "Hard":
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidDifficulty, "unknown difficulty %q", difficulty)
	}

	prompt, err := s.templateManager.RenderTemplate(GenerateProblemPromptTemplate, AITemplateData{
		Topic:      topic,
		Difficulty: difficulty,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to render problem generation prompt")
	}

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return ParseGeneratedProblem(raw)
}

// GradeCode evaluates a submission against its problem. It never fails to
// the caller: any AI failure falls back to the deterministic heuristic
// grader.
func (s *AIService) GradeCode(ctx context.Context, code, problemDesc, constraints string, sampleIO []models.SampleIO) *models.GradeResult {
	ctx, span := observability.TraceAIFunction(ctx, "grade_code",
		attribute.Int("code.length", len(code)),
	)
	defer span.End()

	// Truncate on rune boundaries so Arabic descriptions never get cut mid-character
	if runes := []rune(problemDesc); len(runes) > config.GradingDescriptionLimit {
		problemDesc = string(runes[:config.GradingDescriptionLimit]) + "..."
	}
	if len(sampleIO) > config.MaxSampleIOPairs {
		sampleIO = sampleIO[:config.MaxSampleIOPairs]
	}

	sampleIOText := "N/A"
	if len(sampleIO) > 0 {
		if encoded, encodeErr := json.Marshal(sampleIO); encodeErr == nil {
			sampleIOText = string(encoded)
		}
	}
	if constraints == "" {
		constraints = "N/A"
	}

	prompt, err := s.templateManager.RenderTemplate(GradeCodePromptTemplate, AITemplateData{
		ProblemDesc:  problemDesc,
		Constraints:  constraints,
		SampleIOJSON: sampleIOText,
		Code:         code,
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to render grading prompt, using heuristic grader", err, map[string]interface{}{})
		return s.heuristicGrader.Grade(ctx, code, problemDesc)
	}

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Warn(ctx, "Grading AI call failed, using heuristic grader", map[string]interface{}{
			"error_code": string(contextutils.GetErrorCode(err)),
		})
		return s.heuristicGrader.Grade(ctx, code, problemDesc)
	}

	result, err := ParseGradeResult(raw)
	if err != nil {
		s.logger.Warn(ctx, "Grading response violated contract, using heuristic grader", map[string]interface{}{
			"error": err.Error(),
		})
		return s.heuristicGrader.Grade(ctx, code, problemDesc)
	}

	span.SetAttributes(attribute.String("grade.status", string(result.Status)))
	return result
}

// ReviewSolution asks the AI for a free-form markdown review of user code
// against a problem context
func (s *AIService) ReviewSolution(ctx context.Context, problemContext, userCode string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "review_solution")
	defer observability.FinishSpan(span, &err)

	if userCode == "" {
		return "", contextutils.WrapError(contextutils.ErrInvalidInput, "user code is required")
	}

	prompt, err := s.templateManager.RenderTemplate(ReviewSolutionPromptTemplate, AITemplateData{
		ProblemContext: problemContext,
		UserCode:       userCode,
	})
	if err != nil {
		return "", contextutils.WrapError(err, "failed to render review prompt")
	}

	return s.generate(ctx, prompt)
}

// ClearHistory empties the conversation history for one (user, track) pair
func (s *AIService) ClearHistory(ctx context.Context, userID int, track models.Track) (err error) {
	ctx, span := observability.TraceAIFunction(ctx, "clear_history",
		observability.AttributeUserID(userID),
		observability.AttributeTrack(string(track)),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.IsValidTrack(string(track)) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidTrack, "unknown track %q", track)
	}

	return s.conversations.Clear(ctx, userID, track)
}

// ProblemContextFor formats a stored problem as chat context
func ProblemContextFor(problem *models.Problem) string {
	if problem == nil {
		return ""
	}
	return fmt.Sprintf("Title: %s\n%s", problem.TitleEn, problem.DescEn)
}
