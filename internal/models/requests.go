package models

// ChatRequest is the body of POST /v1/chat
type ChatRequest struct {
	Track          string `json:"track" binding:"required" validate:"required,oneof=problem_solving robotics"`
	Message        string `json:"message" binding:"required" validate:"required"`
	ProblemID      *int   `json:"problem_id,omitempty"`
	CodeContext    string `json:"code_context,omitempty"`
	ProjectContext string `json:"project_context,omitempty"`
}

// ChatResponse is the reply of POST /v1/chat
type ChatResponse struct {
	Message     string   `json:"message"`
	MessageAr   string   `json:"message_ar"`
	Suggestions []string `json:"suggestions"`
}

// GenerateProblemRequest is the body of POST /v1/generate/problem
type GenerateProblemRequest struct {
	Topic      string `json:"topic" binding:"required" validate:"required"`
	Difficulty string `json:"difficulty" binding:"required" validate:"required,oneof=Easy Medium Hard"`
}

// GenerateProblemResponse mirrors the frontend problem shape; examples from
// the generator are mapped onto sample_io pairs.
type GenerateProblemResponse struct {
	TitleEn      string     `json:"title_en"`
	TitleAr      string     `json:"title_ar"`
	Topic        string     `json:"topic"`
	Difficulty   string     `json:"difficulty"`
	DescEn       string     `json:"desc_en"`
	DescAr       string     `json:"desc_ar"`
	Constraints  string     `json:"constraints"`
	InputFormat  string     `json:"input_format"`
	OutputFormat string     `json:"output_format"`
	SampleIO     []SampleIO `json:"sample_io"`
	StarterCode  string     `json:"starter_code"`
}

// SubmissionCreateRequest is the body of POST /v1/submissions. Either
// problem_id or problem_description must be present; the handler enforces it.
type SubmissionCreateRequest struct {
	ProblemID          *int       `json:"problem_id,omitempty"`
	Code               string     `json:"code" binding:"required" validate:"required"`
	ProblemDescription string     `json:"problem_description,omitempty"`
	ProblemConstraints string     `json:"problem_constraints,omitempty"`
	ProblemSampleIO    []SampleIO `json:"problem_sample_io,omitempty"`
}

// GradeResponse is the reply of POST /v1/submissions
type GradeResponse struct {
	SubmissionID string           `json:"submission_id,omitempty"`
	Status       SubmissionStatus `json:"status"`
	IsCorrect    bool             `json:"is_correct"`
	FeedbackEn   string           `json:"feedback_en"`
	FeedbackAr   string           `json:"feedback_ar"`
	Hint         *string          `json:"hint"`
}

// ReviewSolutionRequest is the body of POST /v1/solutions/review
type ReviewSolutionRequest struct {
	ProblemContext string `json:"problem_context" binding:"required" validate:"required"`
	UserCode       string `json:"user_code" binding:"required" validate:"required"`
}

// ReviewSolutionResponse carries markdown feedback from the reviewer
type ReviewSolutionResponse struct {
	Feedback string `json:"feedback"`
}

// SignupRequest is the body of POST /v1/auth/signup
type SignupRequest struct {
	Username string `json:"username" binding:"required" validate:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,min=8"`
}

// LoginRequest is the body of POST /v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

// ProblemListResponse is the reply of GET /v1/problems
type ProblemListResponse struct {
	Problems []Problem `json:"problems"`
	Total    int       `json:"total"`
}
