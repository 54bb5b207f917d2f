package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

const submissionSelectFields = "id, user_id, problem_id, code, status, ai_feedback, created_at"

// SubmissionServiceInterface defines submission persistence operations
type SubmissionServiceInterface interface {
	CreateSubmission(ctx context.Context, userID, problemID int, code string, status models.SubmissionStatus, aiFeedback string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, userID int, problemID *int) ([]models.Submission, error)
	GetSubmission(ctx context.Context, submissionID string, userID int) (*models.Submission, error)
}

// SubmissionService records graded submissions in Postgres
type SubmissionService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(db *sql.DB, logger *observability.Logger) *SubmissionService {
	return &SubmissionService{db: db, logger: logger}
}

func scanSubmission(scan func(dest ...interface{}) error) (result0 *models.Submission, err error) {
	submission := &models.Submission{}
	err = scan(
		&submission.ID, &submission.UserID, &submission.ProblemID,
		&submission.Code, &submission.Status, &submission.AIFeedback,
		&submission.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return submission, nil
}

// CreateSubmission stores a graded submission for a stored problem
func (s *SubmissionService) CreateSubmission(ctx context.Context, userID, problemID int, code string, status models.SubmissionStatus, aiFeedback string) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "create_submission",
		observability.AttributeUserID(userID),
		observability.AttributeProblemID(problemID),
	)
	defer observability.FinishSpan(span, &err)

	if !models.IsValidSubmissionStatus(string(status)) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown submission status %q", status)
	}

	submissionID := uuid.New().String()
	query := `
		INSERT INTO submissions (id, user_id, problem_id, code, status, ai_feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query, submissionID, userID, problemID, code, string(status), aiFeedback, time.Now())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create submission")
	}

	return s.GetSubmission(ctx, submissionID, userID)
}

// ListSubmissions returns the user's most recent submissions, optionally
// filtered by problem
func (s *SubmissionService) ListSubmissions(ctx context.Context, userID int, problemID *int) (result0 []models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "list_submissions", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := "SELECT " + submissionSelectFields + " FROM submissions WHERE user_id = $1"
	args := []interface{}{userID}
	if problemID != nil {
		query += " AND problem_id = $2"
		args = append(args, *problemID)
	}
	query += " ORDER BY created_at DESC LIMIT 50"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query submissions")
	}
	defer func() { _ = rows.Close() }()

	var submissions []models.Submission
	for rows.Next() {
		submission, scanErr := scanSubmission(rows.Scan)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan submission")
		}
		submissions = append(submissions, *submission)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate submissions")
	}

	return submissions, nil
}

// GetSubmission retrieves one submission scoped to its owner
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID string, userID int) (result0 *models.Submission, err error) {
	ctx, span := observability.TraceSubmissionFunction(ctx, "get_submission",
		observability.AttributeSubmissionID(submissionID),
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx, "SELECT "+submissionSelectFields+" FROM submissions WHERE id = $1 AND user_id = $2", submissionID, userID)
	submission, err := scanSubmission(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrSubmissionNotFound
		}
		return nil, contextutils.WrapError(err, "failed to get submission")
	}
	return submission, nil
}
