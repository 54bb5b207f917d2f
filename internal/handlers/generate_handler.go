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

// GenerateHandler serves on-demand problem generation
type GenerateHandler struct {
	aiService services.AIServiceInterface
	config    *config.Config
	logger    *observability.Logger
}

// NewGenerateHandler creates a new GenerateHandler instance
func NewGenerateHandler(aiService services.AIServiceInterface, cfg *config.Config, logger *observability.Logger) *GenerateHandler {
	return &GenerateHandler{
		aiService: aiService,
		config:    cfg,
		logger:    logger,
	}
}

// GenerateProblem creates a fresh coding problem for a topic and difficulty.
// The generated payload is mapped onto the same problem shape the problem
// bank serves so the frontend renders both identically.
func (h *GenerateHandler) GenerateProblem(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "generate_problem")
	defer observability.FinishSpan(span, nil)

	var req models.GenerateProblemRequest
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

	span.SetAttributes(
		attribute.String("generate.topic", req.Topic),
		observability.AttributeDifficulty(req.Difficulty),
	)

	generated, err := h.aiService.GenerateProblem(c.Request.Context(), req.Topic, req.Difficulty)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "Problem generation failed", map[string]interface{}{
			"topic":      req.Topic,
			"difficulty": req.Difficulty,
			"error":      err.Error(),
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GenerateProblemResponse{
		TitleEn:      generated.Title,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		DescEn:       generated.Description,
		Constraints:  generated.Constraints,
		InputFormat:  generated.InputFormat,
		OutputFormat: generated.OutputFormat,
		SampleIO:     generated.Examples,
		StarterCode:  generated.StarterCode,
	})
}
