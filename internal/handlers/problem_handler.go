package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"codebot/internal/config"
	"codebot/internal/models"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ProblemHandler serves the curated problem bank
type ProblemHandler struct {
	problemService services.ProblemServiceInterface
	config         *config.Config
	logger         *observability.Logger
}

// NewProblemHandler creates a new ProblemHandler instance
func NewProblemHandler(problemService services.ProblemServiceInterface, cfg *config.Config, logger *observability.Logger) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
		config:         cfg,
		logger:         logger,
	}
}

// ListProblems returns a filtered, paginated slice of the problem bank
func (h *ProblemHandler) ListProblems(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_problems")
	defer observability.FinishSpan(span, nil)

	topic := c.Query("topic")
	difficulty := c.Query("difficulty")
	skip := parseIntQuery(c, "skip", 0)
	limit := parseIntQuery(c, "limit", 0)

	span.SetAttributes(
		attribute.String("problems.topic", topic),
		observability.AttributeDifficulty(difficulty),
		observability.AttributeLimit(limit),
	)

	problems, total, err := h.problemService.ListProblems(c.Request.Context(), topic, difficulty, skip, limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProblemListResponse{
		Problems: problems,
		Total:    total,
	})
}

// GetProblem returns one problem by id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_problem")
	defer observability.FinishSpan(span, nil)

	problemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "problem id must be an integer"))
		return
	}

	span.SetAttributes(observability.AttributeProblemID(problemID))

	problem, err := h.problemService.GetProblem(c.Request.Context(), problemID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, problem)
}

// CreateProblem adds a problem to the bank
func (h *ProblemHandler) CreateProblem(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_problem")
	defer observability.FinishSpan(span, nil)

	var req struct {
		Topic        string            `json:"topic" binding:"required"`
		Difficulty   string            `json:"difficulty" binding:"required"`
		TitleEn      string            `json:"title_en" binding:"required"`
		TitleAr      string            `json:"title_ar"`
		DescEn       string            `json:"desc_en" binding:"required"`
		DescAr       string            `json:"desc_ar"`
		Constraints  string            `json:"constraints"`
		InputFormat  string            `json:"input_format"`
		OutputFormat string            `json:"output_format"`
		SampleIO     []models.SampleIO `json:"sample_io"`
		StarterCode  string            `json:"starter_code"`
	}
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

	problem := models.Problem{
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		TitleEn:      req.TitleEn,
		TitleAr:      nullString(req.TitleAr),
		DescEn:       req.DescEn,
		DescAr:       nullString(req.DescAr),
		Constraints:  nullString(req.Constraints),
		InputFormat:  nullString(req.InputFormat),
		OutputFormat: nullString(req.OutputFormat),
		SampleIO:     req.SampleIO,
		StarterCode:  nullString(req.StarterCode),
	}

	created, err := h.problemService.CreateProblem(c.Request.Context(), &problem)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeProblemID(created.ID))

	c.JSON(http.StatusCreated, created)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// parseIntQuery reads a non-negative integer query parameter, falling back on
// the default for missing or malformed values
func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
