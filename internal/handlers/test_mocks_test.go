package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codebot/internal/config"
	"codebot/internal/middleware"
	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// stubAIService implements services.AIServiceInterface with overridable
// function fields
type stubAIService struct {
	chatFn     func(ctx context.Context, userID *int, track models.Track, message, problemContext, codeContext, projectContext string) (*models.ChatReply, error)
	generateFn func(ctx context.Context, topic, difficulty string) (*models.GeneratedProblem, error)
	gradeFn    func(ctx context.Context, code, problemDesc, constraints string, sampleIO []models.SampleIO) *models.GradeResult
	reviewFn   func(ctx context.Context, problemContext, userCode string) (string, error)
	clearFn    func(ctx context.Context, userID int, track models.Track) error
}

func (s *stubAIService) Chat(ctx context.Context, userID *int, track models.Track, message, problemContext, codeContext, projectContext string) (*models.ChatReply, error) {
	if s.chatFn != nil {
		return s.chatFn(ctx, userID, track, message, problemContext, codeContext, projectContext)
	}
	return &models.ChatReply{MessageEn: "hello", MessageAr: "مرحبا", Suggestions: []string{}}, nil
}

func (s *stubAIService) GenerateProblem(ctx context.Context, topic, difficulty string) (*models.GeneratedProblem, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, topic, difficulty)
	}
	return &models.GeneratedProblem{Title: "Stub Problem", Description: "desc"}, nil
}

func (s *stubAIService) GradeCode(ctx context.Context, code, problemDesc, constraints string, sampleIO []models.SampleIO) *models.GradeResult {
	if s.gradeFn != nil {
		return s.gradeFn(ctx, code, problemDesc, constraints, sampleIO)
	}
	return &models.GradeResult{Status: models.StatusAccepted, IsCorrect: true, FeedbackEn: "ok", FeedbackAr: "جيد"}
}

func (s *stubAIService) ReviewSolution(ctx context.Context, problemContext, userCode string) (string, error) {
	if s.reviewFn != nil {
		return s.reviewFn(ctx, problemContext, userCode)
	}
	return "## Review", nil
}

func (s *stubAIService) ClearHistory(ctx context.Context, userID int, track models.Track) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID, track)
	}
	return nil
}

// stubProblemService implements services.ProblemServiceInterface
type stubProblemService struct {
	listFn   func(ctx context.Context, topic, difficulty string, skip, limit int) ([]models.Problem, int, error)
	getFn    func(ctx context.Context, problemID int) (*models.Problem, error)
	createFn func(ctx context.Context, problem *models.Problem) (*models.Problem, error)
}

func (s *stubProblemService) ListProblems(ctx context.Context, topic, difficulty string, skip, limit int) ([]models.Problem, int, error) {
	if s.listFn != nil {
		return s.listFn(ctx, topic, difficulty, skip, limit)
	}
	return []models.Problem{}, 0, nil
}

func (s *stubProblemService) GetProblem(ctx context.Context, problemID int) (*models.Problem, error) {
	if s.getFn != nil {
		return s.getFn(ctx, problemID)
	}
	return nil, contextutils.ErrProblemNotFound
}

func (s *stubProblemService) CreateProblem(ctx context.Context, problem *models.Problem) (*models.Problem, error) {
	if s.createFn != nil {
		return s.createFn(ctx, problem)
	}
	created := *problem
	created.ID = 1
	return &created, nil
}

// stubSubmissionService implements services.SubmissionServiceInterface
type stubSubmissionService struct {
	createFn func(ctx context.Context, userID, problemID int, code string, status models.SubmissionStatus, aiFeedback string) (*models.Submission, error)
	listFn   func(ctx context.Context, userID int, problemID *int) ([]models.Submission, error)
	getFn    func(ctx context.Context, submissionID string, userID int) (*models.Submission, error)
}

func (s *stubSubmissionService) CreateSubmission(ctx context.Context, userID, problemID int, code string, status models.SubmissionStatus, aiFeedback string) (*models.Submission, error) {
	if s.createFn != nil {
		return s.createFn(ctx, userID, problemID, code, status, aiFeedback)
	}
	return &models.Submission{ID: "sub-1", UserID: userID, Code: code, Status: status}, nil
}

func (s *stubSubmissionService) ListSubmissions(ctx context.Context, userID int, problemID *int) ([]models.Submission, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, problemID)
	}
	return []models.Submission{}, nil
}

func (s *stubSubmissionService) GetSubmission(ctx context.Context, submissionID string, userID int) (*models.Submission, error) {
	if s.getFn != nil {
		return s.getFn(ctx, submissionID, userID)
	}
	return nil, contextutils.ErrSubmissionNotFound
}

// stubUserService implements services.UserServiceInterface
type stubUserService struct {
	createFn       func(ctx context.Context, username, email, password string) (*models.User, error)
	authenticateFn func(ctx context.Context, username, password string) (*models.User, error)
	byIDFn         func(ctx context.Context, id int) (*models.User, error)
	byUsernameFn   func(ctx context.Context, username string) (*models.User, error)
	byEmailFn      func(ctx context.Context, email string) (*models.User, error)
	updateTrackFn  func(ctx context.Context, userID int, track models.Track) error
}

func (s *stubUserService) CreateUserWithPassword(ctx context.Context, username, email, password string) (*models.User, error) {
	if s.createFn != nil {
		return s.createFn(ctx, username, email, password)
	}
	return &models.User{ID: 1, Username: username}, nil
}

func (s *stubUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	if s.authenticateFn != nil {
		return s.authenticateFn(ctx, username, password)
	}
	return &models.User{ID: 1, Username: username}, nil
}

func (s *stubUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	if s.byIDFn != nil {
		return s.byIDFn(ctx, id)
	}
	return &models.User{ID: id, Username: "user"}, nil
}

func (s *stubUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.byUsernameFn != nil {
		return s.byUsernameFn(ctx, username)
	}
	return &models.User{ID: 1, Username: username}, nil
}

func (s *stubUserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.byEmailFn != nil {
		return s.byEmailFn(ctx, email)
	}
	return &models.User{ID: 1, Username: "user"}, nil
}

func (s *stubUserService) UpdatePreferredTrack(ctx context.Context, userID int, track models.Track) error {
	if s.updateTrackFn != nil {
		return s.updateTrackFn(ctx, userID, track)
	}
	return nil
}

func (s *stubUserService) UpdateLastActive(ctx context.Context, userID int) error { return nil }

func (s *stubUserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error {
	return nil
}

func (s *stubUserService) DeleteUser(ctx context.Context, userID int) error { return nil }

func handlerTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:          "8080",
			SessionSecret: "test-secret",
			AdminUsername: "admin",
			Debug:         true,
		},
	}
}

func handlerTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{})
}

// newHandlerRouter builds a bare test engine with session support
func newHandlerRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))
	return router
}

func jsonBody(body string) io.Reader {
	return strings.NewReader(body)
}

// sessionCookies logs a fake user into the router and returns the cookies
func sessionCookies(t *testing.T, router *gin.Engine, userID int, username string) []*http.Cookie {
	t.Helper()

	router.GET("/test-login", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(middleware.UserIDKey, userID)
		session.Set(middleware.UsernameKey, username)
		require.NoError(t, session.Save())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test-login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Result().Cookies()
}
