// Package services provides embedded templates for AI tutor prompts
package services

import (
	"embed"
	"strings"
	"text/template"

	"codebot/internal/models"
)

//go:embed templates/*.tmpl
var aiTemplatesFS embed.FS

// Template names as constants
const (
	ChatPromptTemplate            = "chat_prompt.tmpl"
	GenerateProblemPromptTemplate = "generate_problem_prompt.tmpl"
	GradeCodePromptTemplate       = "grade_code_prompt.tmpl"
	ReviewSolutionPromptTemplate  = "review_solution_prompt.tmpl"
)

// AITemplateData holds data for rendering AI prompt templates
type AITemplateData struct {
	// Chat specific
	Track          string
	UserMessage    string
	History        []models.ChatMessage
	ProblemContext string
	CodeContext    string
	ProjectContext string

	// Problem generation specific
	Topic      string
	Difficulty string

	// Grading specific
	ProblemDesc  string
	Constraints  string
	SampleIOJSON string
	Code         string

	// Solution review specific
	UserCode string
}

// AITemplateManager manages AI prompt templates
type AITemplateManager struct {
	templates *template.Template
}

// NewAITemplateManager creates a new template manager
func NewAITemplateManager() (result0 *AITemplateManager, err error) {
	templates, err := template.New("").ParseFS(aiTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	return &AITemplateManager{
		templates: templates,
	}, nil
}

// RenderTemplate renders a template with the given data
func (tm *AITemplateManager) RenderTemplate(templateName string, data AITemplateData) (result0 string, err error) {
	var buf strings.Builder
	err = tm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
