package handlers

import (
	"net/http"

	"codebot/internal/config"
	"codebot/internal/middleware"
	"codebot/internal/models"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ChatHandler serves the tutoring chat endpoints. Chat is open to guests;
// history is only kept for logged-in users.
type ChatHandler struct {
	aiService      services.AIServiceInterface
	problemService services.ProblemServiceInterface
	config         *config.Config
	logger         *observability.Logger
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(aiService services.AIServiceInterface, problemService services.ProblemServiceInterface, cfg *config.Config, logger *observability.Logger) *ChatHandler {
	return &ChatHandler{
		aiService:      aiService,
		problemService: problemService,
		config:         cfg,
		logger:         logger,
	}
}

// Chat handles a tutoring turn
func (h *ChatHandler) Chat(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "chat")
	defer observability.FinishSpan(span, nil)

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	var userID *int
	if id, ok := c.Get(middleware.UserIDKey); ok {
		if intID, intOK := id.(int); intOK {
			userID = &intID
		}
	}

	span.SetAttributes(
		observability.AttributeTrack(req.Track),
		attribute.Bool("chat.authenticated", userID != nil),
		attribute.Bool("chat.problem_id_provided", req.ProblemID != nil),
	)

	// Resolve the referenced problem into chat context. A stale or unknown
	// problem id degrades to a context-free chat rather than failing the turn.
	problemContext := ""
	if req.ProblemID != nil {
		problem, err := h.problemService.GetProblem(c.Request.Context(), *req.ProblemID)
		if err != nil {
			h.logger.Warn(c.Request.Context(), "Chat problem context lookup failed", map[string]interface{}{
				"problem_id": *req.ProblemID,
				"error":      err.Error(),
			})
		} else {
			problemContext = services.ProblemContextFor(problem)
		}
	}

	reply, err := h.aiService.Chat(c.Request.Context(), userID, models.Track(req.Track), req.Message, problemContext, req.CodeContext, req.ProjectContext)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		Message:     reply.MessageEn,
		MessageAr:   reply.MessageAr,
		Suggestions: reply.Suggestions,
	})
}

// ClearHistory deletes the conversation for the authenticated user and track
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "clear_chat_history")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	track := c.Query("track")
	span.SetAttributes(
		attribute.Int("user.id", userID),
		observability.AttributeTrack(track),
	)

	if err := h.aiService.ClearHistory(c.Request.Context(), userID, models.Track(track)); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
