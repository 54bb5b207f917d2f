package services

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"codebot/internal/config"
	"codebot/internal/models"
	contextutils "codebot/internal/utils"
)

// JSON contracts the AI must satisfy, one per operation
const (
	GeneratedProblemSchema = `{
		"type": "object",
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string", "minLength": 1},
			"input_format": {"type": "string"},
			"output_format": {"type": "string"},
			"examples": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"input": {"type": "string"},
						"output": {"type": "string"},
						"explanation": {"type": "string"}
					},
					"required": ["input", "output"]
				}
			},
			"constraints": {"type": "string"}
		},
		"required": ["title", "description", "input_format", "output_format", "examples", "constraints"]
	}`

	GradeResultSchema = `{
		"type": "object",
		"properties": {
			"status": {"type": "string"},
			"is_correct": {"type": "boolean"},
			"feedback_en": {"type": "string"},
			"feedback_ar": {"type": "string"},
			"hint": {"type": ["string", "null"]}
		},
		"required": ["status", "is_correct", "feedback_en", "feedback_ar"]
	}`

	ChatReplySchema = `{
		"type": "object",
		"properties": {
			"message_en": {"type": "string"},
			"message_ar": {"type": "string"},
			"suggestions": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["message_en", "message_ar"]
	}`
)

// Defaults substituted for missing or unusable grading keys
const (
	fallbackGradeFeedbackEn = "Could not fully evaluate the code."
	fallbackGradeFeedbackAr = "تعذّر تقييم الكود بشكل كامل."
)

// Contract backfill counters
var (
	ContractBackfillCounts  = make(map[string]int)
	ContractBackfillDetails = make(map[string][]string)
	ContractBackfillMu      sync.Mutex
)

func recordContractBackfill(operation string, missing []string) {
	ContractBackfillMu.Lock()
	defer ContractBackfillMu.Unlock()
	ContractBackfillCounts[operation] += len(missing)
	ContractBackfillDetails[operation] = append(ContractBackfillDetails[operation], missing...)
}

// repairResponse strips a single layer of markdown code fencing, with or
// without a language tag. Applying it to already-clean JSON is a no-op.
func repairResponse(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}

	if idx := strings.IndexByte(response, '\n'); idx >= 0 {
		response = response[idx+1:]
	} else {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSpace(response)
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

func validateAgainstSchema(schema string, payload []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "schema validation error: %v", err)
	}
	if !result.Valid() {
		var errorMessages []string
		for _, e := range result.Errors() {
			errorMessages = append(errorMessages, e.String())
		}
		return contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "response failed schema validation: %s", strings.Join(errorMessages, "; "))
	}
	return nil
}

// ParseGeneratedProblem decodes and validates a problem generation response.
// Generation has no safe defaults, so any contract violation is an error.
func ParseGeneratedProblem(raw string) (result0 *models.GeneratedProblem, err error) {
	repaired := repairResponse(raw)

	payload := []byte(repaired)
	if !json.Valid(payload) {
		return nil, contextutils.WrapError(contextutils.ErrAIResponseMalformed, "problem generation response is not valid JSON")
	}
	if err = validateAgainstSchema(GeneratedProblemSchema, payload); err != nil {
		return nil, err
	}

	var problem models.GeneratedProblem
	if err = json.Unmarshal(payload, &problem); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "failed to decode generated problem: %v", err)
	}

	if len(problem.Examples) > config.MaxSampleIOPairs {
		problem.Examples = problem.Examples[:config.MaxSampleIOPairs]
	}

	return &problem, nil
}

// ParseGradeResult decodes a grading response. Missing keys are backfilled
// with safe defaults rather than rejected; only unparseable JSON is an error.
func ParseGradeResult(raw string) (result0 *models.GradeResult, err error) {
	repaired := repairResponse(raw)

	var fields map[string]json.RawMessage
	if err = json.Unmarshal([]byte(repaired), &fields); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "grade result is not valid JSON: %v", err)
	}

	result := &models.GradeResult{
		Status:     models.StatusWrongAnswer,
		IsCorrect:  false,
		FeedbackEn: fallbackGradeFeedbackEn,
		FeedbackAr: fallbackGradeFeedbackAr,
		Hint:       nil,
	}

	var missing []string
	if rawStatus, ok := fields["status"]; ok {
		var status string
		if json.Unmarshal(rawStatus, &status) == nil && models.IsValidSubmissionStatus(status) {
			result.Status = models.SubmissionStatus(status)
		}
	} else {
		missing = append(missing, "status")
	}
	if rawCorrect, ok := fields["is_correct"]; ok {
		var isCorrect bool
		if json.Unmarshal(rawCorrect, &isCorrect) == nil {
			result.IsCorrect = isCorrect
		}
	} else {
		missing = append(missing, "is_correct")
	}
	if rawEn, ok := fields["feedback_en"]; ok {
		var feedbackEn string
		if json.Unmarshal(rawEn, &feedbackEn) == nil && feedbackEn != "" {
			result.FeedbackEn = feedbackEn
		}
	} else {
		missing = append(missing, "feedback_en")
	}
	if rawAr, ok := fields["feedback_ar"]; ok {
		var feedbackAr string
		if json.Unmarshal(rawAr, &feedbackAr) == nil && feedbackAr != "" {
			result.FeedbackAr = feedbackAr
		}
	} else {
		missing = append(missing, "feedback_ar")
	}
	if rawHint, ok := fields["hint"]; ok {
		var hint *string
		if json.Unmarshal(rawHint, &hint) == nil {
			result.Hint = hint
		}
	} else {
		missing = append(missing, "hint")
	}

	// A correct verdict is only meaningful as ACCEPTED, and carries no hint.
	// The status field wins when the two disagree.
	if result.IsCorrect && result.Status != models.StatusAccepted {
		result.IsCorrect = false
		missing = append(missing, "is_correct/status conflict")
	}
	if result.IsCorrect {
		result.Hint = nil
	}

	if len(missing) > 0 {
		recordContractBackfill("grade_code", missing)
	}

	return result, nil
}

// ParseChatReply decodes and validates a chat response
func ParseChatReply(raw string) (result0 *models.ChatReply, err error) {
	repaired := repairResponse(raw)

	payload := []byte(repaired)
	if !json.Valid(payload) {
		return nil, contextutils.WrapError(contextutils.ErrAIResponseMalformed, "chat response is not valid JSON")
	}
	if err = validateAgainstSchema(ChatReplySchema, payload); err != nil {
		return nil, err
	}

	var reply models.ChatReply
	if err = json.Unmarshal(payload, &reply); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseMalformed, "failed to decode chat reply: %v", err)
	}

	if reply.Suggestions == nil {
		recordContractBackfill("chat", []string{"suggestions"})
		reply.Suggestions = []string{}
	}
	if len(reply.Suggestions) > config.MaxSuggestions {
		reply.Suggestions = reply.Suggestions[:config.MaxSuggestions]
	}

	return &reply, nil
}
