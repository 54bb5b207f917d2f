package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

const problemSelectFields = "id, topic, difficulty, title_en, title_ar, desc_en, desc_ar, constraints, input_format, output_format, sample_io, starter_code, created_at"

// ProblemServiceInterface defines curated problem bank operations
type ProblemServiceInterface interface {
	ListProblems(ctx context.Context, topic, difficulty string, skip, limit int) ([]models.Problem, int, error)
	GetProblem(ctx context.Context, problemID int) (*models.Problem, error)
	CreateProblem(ctx context.Context, problem *models.Problem) (*models.Problem, error)
}

// ProblemService handles the curated problem bank backed by Postgres
type ProblemService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewProblemService creates a new ProblemService
func NewProblemService(db *sql.DB, logger *observability.Logger) *ProblemService {
	return &ProblemService{db: db, logger: logger}
}

func scanProblem(scan func(dest ...interface{}) error) (result0 *models.Problem, err error) {
	problem := &models.Problem{}
	var sampleIORaw []byte
	err = scan(
		&problem.ID, &problem.Topic, &problem.Difficulty,
		&problem.TitleEn, &problem.TitleAr, &problem.DescEn, &problem.DescAr,
		&problem.Constraints, &problem.InputFormat, &problem.OutputFormat,
		&sampleIORaw, &problem.StarterCode, &problem.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(sampleIORaw) > 0 {
		if err = json.Unmarshal(sampleIORaw, &problem.SampleIO); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode sample IO")
		}
	}
	return problem, nil
}

// ListProblems returns a filtered page of problems plus the total count
func (s *ProblemService) ListProblems(ctx context.Context, topic, difficulty string, skip, limit int) (result0 []models.Problem, result1 int, err error) {
	ctx, span := observability.TraceProblemFunction(ctx, "list_problems",
		attribute.String("problem.topic", topic),
		observability.AttributeDifficulty(difficulty),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	if topic != "" {
		args = append(args, topic)
		where += " AND topic = $1"
	}
	if difficulty != "" {
		args = append(args, difficulty)
		if len(args) == 1 {
			where += " AND difficulty = $1"
		} else {
			where += " AND difficulty = $2"
		}
	}

	var total int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM problems"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count problems")
	}

	query := "SELECT " + problemSelectFields + " FROM problems" + where + " ORDER BY id"
	switch len(args) {
	case 0:
		query += " LIMIT $1 OFFSET $2"
	case 1:
		query += " LIMIT $2 OFFSET $3"
	case 2:
		query += " LIMIT $3 OFFSET $4"
	}
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to query problems")
	}
	defer func() { _ = rows.Close() }()

	var problems []models.Problem
	for rows.Next() {
		problem, scanErr := scanProblem(rows.Scan)
		if scanErr != nil {
			return nil, 0, contextutils.WrapError(scanErr, "failed to scan problem")
		}
		problems = append(problems, *problem)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to iterate problems")
	}

	return problems, total, nil
}

// GetProblem retrieves one problem by ID
func (s *ProblemService) GetProblem(ctx context.Context, problemID int) (result0 *models.Problem, err error) {
	ctx, span := observability.TraceProblemFunction(ctx, "get_problem", observability.AttributeProblemID(problemID))
	defer observability.FinishSpan(span, &err)

	row := s.db.QueryRowContext(ctx, "SELECT "+problemSelectFields+" FROM problems WHERE id = $1", problemID)
	problem, err := scanProblem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrProblemNotFound
		}
		return nil, contextutils.WrapError(err, "failed to get problem")
	}
	return problem, nil
}

// CreateProblem inserts a new curated problem
func (s *ProblemService) CreateProblem(ctx context.Context, problem *models.Problem) (result0 *models.Problem, err error) {
	ctx, span := observability.TraceProblemFunction(ctx, "create_problem",
		attribute.String("problem.topic", problem.Topic),
		observability.AttributeDifficulty(problem.Difficulty),
	)
	defer observability.FinishSpan(span, &err)

	sampleIO := problem.SampleIO
	if sampleIO == nil {
		sampleIO = []models.SampleIO{}
	}
	sampleIORaw, err := json.Marshal(sampleIO)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode sample IO")
	}

	query := `
		INSERT INTO problems (topic, difficulty, title_en, title_ar, desc_en, desc_ar, constraints, input_format, output_format, sample_io, starter_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	var id int
	err = s.db.QueryRowContext(ctx, query,
		problem.Topic, problem.Difficulty,
		problem.TitleEn, problem.TitleAr, problem.DescEn, problem.DescAr,
		problem.Constraints, problem.InputFormat, problem.OutputFormat,
		sampleIORaw, problem.StarterCode, time.Now(),
	).Scan(&id)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create problem")
	}

	return s.GetProblem(ctx, id)
}
