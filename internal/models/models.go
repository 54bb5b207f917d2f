// Package models defines data structures used throughout the tutoring platform.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Track identifies a learning track and selects the tutoring persona.
type Track string

const (
	// TrackProblemSolving is the C++ / competitive programming track (CodeBot)
	TrackProblemSolving Track = "problem_solving"
	// TrackRobotics is the Arduino / electronics track (RoboBot)
	TrackRobotics Track = "robotics"
)

// KnownTracks lists the wire values accepted in requests
func KnownTracks() []Track {
	return []Track{TrackProblemSolving, TrackRobotics}
}

// IsKnownTrack reports whether a wire value names a supported track
func IsKnownTrack(track string) bool {
	switch Track(track) {
	case TrackProblemSolving, TrackRobotics:
		return true
	}
	return false
}

// SubmissionStatus is a grading verdict
type SubmissionStatus string

const (
	// StatusAccepted means the code solves the problem
	StatusAccepted SubmissionStatus = "ACCEPTED"
	// StatusWrongAnswer means the code produces incorrect output
	StatusWrongAnswer SubmissionStatus = "WRONG_ANSWER"
	// StatusSyntaxError means the code does not compile
	StatusSyntaxError SubmissionStatus = "SYNTAX_ERROR"
	// StatusLogicError means the approach is flawed
	StatusLogicError SubmissionStatus = "LOGIC_ERROR"
	// StatusRuntimeError means the code crashes or misbehaves at runtime
	StatusRuntimeError SubmissionStatus = "RUNTIME_ERROR"
)

// IsValidSubmissionStatus reports whether a status string is one of the known verdicts
func IsValidSubmissionStatus(status string) bool {
	switch SubmissionStatus(status) {
	case StatusAccepted, StatusWrongAnswer, StatusSyntaxError, StatusLogicError, StatusRuntimeError:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID             int            `json:"id" yaml:"id"`
	Username       string         `json:"username" yaml:"username"`
	Email          sql.NullString `json:"email" yaml:"email"`
	PasswordHash   sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	LastActive     sql.NullTime   `json:"last_active" yaml:"last_active"`
	PreferredTrack sql.NullString `json:"preferred_track" yaml:"preferred_track"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID             int        `json:"id"`
		Username       string     `json:"username"`
		Email          *string    `json:"email"`
		LastActive     *time.Time `json:"last_active"`
		PreferredTrack *string    `json:"preferred_track"`
		CreatedAt      time.Time  `json:"created_at"`
		UpdatedAt      time.Time  `json:"updated_at"`
	}{
		ID:             u.ID,
		Username:       u.Username,
		Email:          nullStringToPointer(u.Email),
		LastActive:     nullTimeToPointer(u.LastActive),
		PreferredTrack: nullStringToPointer(u.PreferredTrack),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}

// ChatRole is the author of a conversation message
type ChatRole string

const (
	// RoleUser marks a message written by the student
	RoleUser ChatRole = "user"
	// RoleAssistant marks a message written by the tutor persona
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single turn in a tutoring conversation
type ChatMessage struct {
	Role    ChatRole `json:"role" yaml:"role"`
	Content string   `json:"content" yaml:"content"`
}

// ChatHistory is the persisted conversation for one (user, track) pair.
// Messages are stored as a JSON document; the newest message is last.
type ChatHistory struct {
	ID        string        `json:"id" yaml:"id"` // uuid
	UserID    int           `json:"user_id" yaml:"user_id"`
	Track     Track         `json:"track" yaml:"track"`
	Messages  []ChatMessage `json:"messages" yaml:"messages"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}

// SampleIO is a single input/output example for a coding problem
type SampleIO struct {
	Input       string `json:"input" yaml:"input"`
	Output      string `json:"output" yaml:"output"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Problem represents a stored coding problem. Descriptions support markdown;
// Arabic fields are optional translations.
type Problem struct {
	ID           int            `json:"id" yaml:"id"`
	Topic        string         `json:"topic" yaml:"topic"`
	Difficulty   string         `json:"difficulty" yaml:"difficulty"`
	TitleEn      string         `json:"title_en" yaml:"title_en"`
	TitleAr      sql.NullString `json:"title_ar" yaml:"title_ar"`
	DescEn       string         `json:"desc_en" yaml:"desc_en"`
	DescAr       sql.NullString `json:"desc_ar" yaml:"desc_ar"`
	Constraints  sql.NullString `json:"constraints" yaml:"constraints"`
	InputFormat  sql.NullString `json:"input_format" yaml:"input_format"`
	OutputFormat sql.NullString `json:"output_format" yaml:"output_format"`
	SampleIO     []SampleIO     `json:"sample_io" yaml:"sample_io"`
	StarterCode  sql.NullString `json:"starter_code" yaml:"starter_code"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Problem to handle sql.NullString properly
func (p Problem) MarshalJSON() (result0 []byte, err error) {
	sampleIO := p.SampleIO
	if sampleIO == nil {
		sampleIO = []SampleIO{}
	}
	return json.Marshal(&struct {
		ID           int        `json:"id"`
		Topic        string     `json:"topic"`
		Difficulty   string     `json:"difficulty"`
		TitleEn      string     `json:"title_en"`
		TitleAr      *string    `json:"title_ar"`
		DescEn       string     `json:"desc_en"`
		DescAr       *string    `json:"desc_ar"`
		Constraints  *string    `json:"constraints"`
		InputFormat  *string    `json:"input_format"`
		OutputFormat *string    `json:"output_format"`
		SampleIO     []SampleIO `json:"sample_io"`
		StarterCode  *string    `json:"starter_code"`
		CreatedAt    time.Time  `json:"created_at"`
	}{
		ID:           p.ID,
		Topic:        p.Topic,
		Difficulty:   p.Difficulty,
		TitleEn:      p.TitleEn,
		TitleAr:      nullStringToPointer(p.TitleAr),
		DescEn:       p.DescEn,
		DescAr:       nullStringToPointer(p.DescAr),
		Constraints:  nullStringToPointer(p.Constraints),
		InputFormat:  nullStringToPointer(p.InputFormat),
		OutputFormat: nullStringToPointer(p.OutputFormat),
		SampleIO:     sampleIO,
		StarterCode:  nullStringToPointer(p.StarterCode),
		CreatedAt:    p.CreatedAt,
	})
}

// GeneratedProblem is the validated payload produced by the problem generator.
// Examples are verbatim from the model; callers map them to SampleIO pairs.
type GeneratedProblem struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	InputFormat  string     `json:"input_format"`
	OutputFormat string     `json:"output_format"`
	Examples     []SampleIO `json:"examples"`
	Constraints  string     `json:"constraints"`
	StarterCode  string     `json:"starter_code,omitempty"`
}

// GradeResult is the validated payload produced by the code grader
type GradeResult struct {
	Status     SubmissionStatus `json:"status"`
	IsCorrect  bool             `json:"is_correct"`
	FeedbackEn string           `json:"feedback_en"`
	FeedbackAr string           `json:"feedback_ar"`
	Hint       *string          `json:"hint"`
}

// ChatReply is the validated payload produced by the tutor chat
type ChatReply struct {
	MessageEn   string   `json:"message_en"`
	MessageAr   string   `json:"message_ar"`
	Suggestions []string `json:"suggestions"`
}

// Submission represents a graded code submission
type Submission struct {
	ID         string           `json:"id" yaml:"id"` // uuid
	UserID     int              `json:"user_id" yaml:"user_id"`
	ProblemID  sql.NullInt32    `json:"problem_id" yaml:"problem_id"`
	Code       string           `json:"code" yaml:"code"`
	Status     SubmissionStatus `json:"status" yaml:"status"`
	AIFeedback sql.NullString   `json:"ai_feedback" yaml:"ai_feedback"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Submission to handle sql.Null types properly
func (s Submission) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         string           `json:"id"`
		UserID     int              `json:"user_id"`
		ProblemID  *int32           `json:"problem_id"`
		Code       string           `json:"code"`
		Status     SubmissionStatus `json:"status"`
		AIFeedback *string          `json:"ai_feedback"`
		CreatedAt  time.Time        `json:"created_at"`
	}{
		ID:         s.ID,
		UserID:     s.UserID,
		ProblemID:  nullInt32ToPointer(s.ProblemID),
		Code:       s.Code,
		Status:     s.Status,
		AIFeedback: nullStringToPointer(s.AIFeedback),
		CreatedAt:  s.CreatedAt,
	})
}
