package handlers

import (
	"net/http"

	"codebot/internal/config"
	"codebot/internal/models"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SolutionHandler serves long-form code review
type SolutionHandler struct {
	aiService services.AIServiceInterface
	config    *config.Config
	logger    *observability.Logger
}

// NewSolutionHandler creates a new SolutionHandler instance
func NewSolutionHandler(aiService services.AIServiceInterface, cfg *config.Config, logger *observability.Logger) *SolutionHandler {
	return &SolutionHandler{
		aiService: aiService,
		config:    cfg,
		logger:    logger,
	}
}

// ReviewSolution returns markdown feedback on a user's solution
func (h *SolutionHandler) ReviewSolution(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "review_solution")
	defer observability.FinishSpan(span, nil)

	var req models.ReviewSolutionRequest
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

	span.SetAttributes(attribute.Int("review.code_length", len(req.UserCode)))

	feedback, err := h.aiService.ReviewSolution(c.Request.Context(), req.ProblemContext, req.UserCode)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ReviewSolutionResponse{Feedback: feedback})
}
