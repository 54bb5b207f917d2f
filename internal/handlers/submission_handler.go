package handlers

import (
	"net/http"
	"strconv"

	"codebot/internal/config"
	"codebot/internal/middleware"
	"codebot/internal/models"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SubmissionHandler grades code submissions and records them for logged-in
// users solving problems from the bank. Guest submissions and submissions
// against generated problems are graded but never persisted.
type SubmissionHandler struct {
	aiService         services.AIServiceInterface
	problemService    services.ProblemServiceInterface
	submissionService services.SubmissionServiceInterface
	config            *config.Config
	logger            *observability.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler instance
func NewSubmissionHandler(
	aiService services.AIServiceInterface,
	problemService services.ProblemServiceInterface,
	submissionService services.SubmissionServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		aiService:         aiService,
		problemService:    problemService,
		submissionService: submissionService,
		config:            cfg,
		logger:            logger,
	}
}

// CreateSubmission grades a submission and persists it when it targets a
// stored problem and the user is logged in
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_submission")
	defer observability.FinishSpan(span, nil)

	var req models.SubmissionCreateRequest
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
		attribute.Bool("submission.authenticated", userID != nil),
		attribute.Bool("submission.problem_id_provided", req.ProblemID != nil),
	)

	// The grading context comes from the stored problem when one is
	// referenced, otherwise from the inline description.
	problemDesc := req.ProblemDescription
	constraints := req.ProblemConstraints
	sampleIO := req.ProblemSampleIO
	var storedProblem *models.Problem

	if req.ProblemID != nil {
		problem, err := h.problemService.GetProblem(c.Request.Context(), *req.ProblemID)
		if err == nil {
			storedProblem = problem
			problemDesc = problem.DescEn
			constraints = problem.Constraints.String
			sampleIO = problem.SampleIO
		} else if problemDesc == "" {
			// No stored problem and nothing inline to grade against
			HandleAppError(c, err)
			return
		}
	}

	if problemDesc == "" {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "a problem_id or problem_description is required"))
		return
	}

	grade := h.aiService.GradeCode(c.Request.Context(), req.Code, problemDesc, constraints, sampleIO)

	span.SetAttributes(
		attribute.String("submission.status", string(grade.Status)),
		attribute.Bool("submission.is_correct", grade.IsCorrect),
	)

	response := models.GradeResponse{
		Status:     grade.Status,
		IsCorrect:  grade.IsCorrect,
		FeedbackEn: grade.FeedbackEn,
		FeedbackAr: grade.FeedbackAr,
		Hint:       grade.Hint,
	}

	// Only stored problems solved by logged-in users leave a record
	if storedProblem != nil && userID != nil {
		submission, err := h.submissionService.CreateSubmission(c.Request.Context(), *userID, storedProblem.ID, req.Code, grade.Status, grade.FeedbackAr)
		if err != nil {
			// Grading succeeded; losing the record is not worth failing the request
			h.logger.Warn(c.Request.Context(), "Failed to persist submission", map[string]interface{}{
				"user_id":    *userID,
				"problem_id": storedProblem.ID,
				"error":      err.Error(),
			})
		} else {
			response.SubmissionID = submission.ID
			span.SetAttributes(observability.AttributeSubmissionID(submission.ID))
		}
	}

	c.JSON(http.StatusOK, response)
}

// ListSubmissions returns the authenticated user's recent submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_submissions")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	span.SetAttributes(attribute.Int("user.id", userID))

	var problemID *int
	if raw := c.Query("problem_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "problem_id must be an integer"))
			return
		}
		problemID = &id
		span.SetAttributes(observability.AttributeProblemID(id))
	}

	submissions, err := h.submissionService.ListSubmissions(c.Request.Context(), userID, problemID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": submissions})
}

// GetSubmission returns one of the authenticated user's submissions by id
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_submission")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	submissionID := c.Param("id")
	span.SetAttributes(
		attribute.Int("user.id", userID),
		observability.AttributeSubmissionID(submissionID),
	)

	submission, err := h.submissionService.GetSubmission(c.Request.Context(), submissionID, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}
