package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codebot/internal/middleware"
	"codebot/internal/models"
	contextutils "codebot/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProblemRouter(problems *stubProblemService) *gin.Engine {
	router := newHandlerRouter()
	handler := NewProblemHandler(problems, handlerTestConfig(), handlerTestLogger())
	router.GET("/v1/problems", handler.ListProblems)
	router.GET("/v1/problems/:id", handler.GetProblem)
	router.POST("/v1/problems", middleware.RequireAdmin("admin"), handler.CreateProblem)
	return router
}

func TestProblemHandler_ListProblems(t *testing.T) {
	t.Run("ForwardsFilters", func(t *testing.T) {
		var seenTopic, seenDifficulty string
		var seenSkip, seenLimit int
		problems := &stubProblemService{
			listFn: func(_ context.Context, topic, difficulty string, skip, limit int) ([]models.Problem, int, error) {
				seenTopic, seenDifficulty, seenSkip, seenLimit = topic, difficulty, skip, limit
				return []models.Problem{{ID: 1, TitleEn: "Sum"}}, 1, nil
			},
		}
		router := newProblemRouter(problems)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/problems?topic=Arrays&difficulty=Easy&skip=10&limit=5", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Arrays", seenTopic)
		assert.Equal(t, "Easy", seenDifficulty)
		assert.Equal(t, 10, seenSkip)
		assert.Equal(t, 5, seenLimit)

		var resp models.ProblemListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		require.Len(t, resp.Problems, 1)
	})

	t.Run("MalformedPaginationFallsBack", func(t *testing.T) {
		var seenSkip, seenLimit int
		problems := &stubProblemService{
			listFn: func(_ context.Context, _, _ string, skip, limit int) ([]models.Problem, int, error) {
				seenSkip, seenLimit = skip, limit
				return nil, 0, nil
			},
		}
		router := newProblemRouter(problems)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/problems?skip=banana&limit=-3", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, seenSkip)
		assert.Equal(t, 0, seenLimit)
	})
}

func TestProblemHandler_GetProblem(t *testing.T) {
	t.Run("UnknownProblemIs404", func(t *testing.T) {
		router := newProblemRouter(&stubProblemService{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/problems/999", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), string(contextutils.ErrorCodeProblemNotFound))
	})

	t.Run("NonNumericIDIs400", func(t *testing.T) {
		router := newProblemRouter(&stubProblemService{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/problems/abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("FoundProblemIsReturned", func(t *testing.T) {
		problems := &stubProblemService{
			getFn: func(_ context.Context, problemID int) (*models.Problem, error) {
				return &models.Problem{ID: problemID, TitleEn: "Qaruti's Game", DescEn: "Take turns."}, nil
			},
		}
		router := newProblemRouter(problems)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/problems/3", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Qaruti's Game")
	})
}

func TestProblemHandler_CreateProblem(t *testing.T) {
	t.Run("NonAdminForbidden", func(t *testing.T) {
		router := newProblemRouter(&stubProblemService{})
		cookies := sessionCookies(t, router, 7, "hamza")

		w := postJSON(router, "/v1/problems", `{"topic":"Arrays","difficulty":"Easy","title_en":"T","desc_en":"D"}`, cookies)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("AdminCreates", func(t *testing.T) {
		var created *models.Problem
		problems := &stubProblemService{
			createFn: func(_ context.Context, problem *models.Problem) (*models.Problem, error) {
				created = problem
				out := *problem
				out.ID = 11
				return &out, nil
			},
		}
		router := newProblemRouter(problems)
		cookies := sessionCookies(t, router, 1, "admin")

		body := `{"topic":"Arrays","difficulty":"Easy","title_en":"Sum","desc_en":"Add.","constraints":"n <= 100","sample_io":[{"input":"1 2","output":"3"}]}`
		w := postJSON(router, "/v1/problems", body, cookies)

		require.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, created)
		assert.Equal(t, "Sum", created.TitleEn)
		assert.True(t, created.Constraints.Valid)
		assert.False(t, created.TitleAr.Valid)
		require.Len(t, created.SampleIO, 1)
		assert.Contains(t, w.Body.String(), `"id":11`)
	})

	t.Run("MissingTitleRejected", func(t *testing.T) {
		router := newProblemRouter(&stubProblemService{})
		cookies := sessionCookies(t, router, 1, "admin")

		w := postJSON(router, "/v1/problems", `{"topic":"Arrays","difficulty":"Easy","desc_en":"D"}`, cookies)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
