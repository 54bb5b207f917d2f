package services

import (
	"context"
	"strings"

	"codebot/internal/models"
	"codebot/internal/observability"
)

// keywordCheck ties a phrase category in the problem description to a code
// pattern the solution is expected to contain
type keywordCheck struct {
	keywords []string
	patterns []string
	hintEn   string
	hintAr   string
}

var gradingKeywordChecks = []keywordCheck{
	{
		keywords: []string{"sum", "total", "average", "مجموع"},
		patterns: []string{"+", "accumulate("},
		hintEn:   "The problem asks for a sum, but your code never adds values together.",
		hintAr:   "المسألة تطلب حساب المجموع، لكن الكود لا يقوم بأي عملية جمع.",
	},
	{
		keywords: []string{"maximum", "largest", "biggest", "الأكبر"},
		patterns: []string{"max", " > "},
		hintEn:   "The problem asks for a maximum, but your code never compares values.",
		hintAr:   "المسألة تطلب إيجاد القيمة الأكبر، لكن الكود لا يقارن بين القيم.",
	},
	{
		keywords: []string{"hello", "greeting", "welcome", "مرحبا"},
		patterns: []string{"hello", "مرحبا", "welcome"},
		hintEn:   "The problem asks you to print a greeting, but your code never prints one.",
		hintAr:   "المسألة تطلب طباعة تحية، لكن الكود لا يطبعها.",
	},
}

// HeuristicGrader produces a coarse offline verdict when the AI grader is
// unreachable. It never returns an error.
type HeuristicGrader struct {
	logger *observability.Logger
}

// NewHeuristicGrader creates a new heuristic grader
func NewHeuristicGrader(logger *observability.Logger) *HeuristicGrader {
	return &HeuristicGrader{logger: logger}
}

// Grade runs deterministic structural checks against the submitted code.
// The first failed check yields a wrong answer with a targeted hint;
// otherwise the code is accepted with an offline review disclaimer.
func (g *HeuristicGrader) Grade(ctx context.Context, code, problemDesc string) *models.GradeResult {
	_, span := observability.TraceAIFunction(ctx, "heuristic_grade")
	defer span.End()

	loweredCode := strings.ToLower(code)
	loweredDesc := strings.ToLower(problemDesc)

	if !strings.Contains(loweredCode, "int main") && !strings.Contains(loweredCode, "void setup") {
		return wrongAnswer(
			"Your program has no entry point. C++ programs need int main() and Arduino sketches need void setup().",
			"برنامجك لا يحتوي على نقطة بداية. برامج C++ تحتاج إلى int main() ومشاريع Arduino تحتاج إلى void setup().",
			"Add an int main() function (or void setup() for Arduino) that contains your program logic.",
		)
	}

	if !strings.Contains(loweredCode, "cout") && !strings.Contains(loweredCode, "printf") && !strings.Contains(loweredCode, "serial.print") {
		return wrongAnswer(
			"Your program never produces output, so its answer cannot be checked.",
			"برنامجك لا يطبع أي ناتج، لذلك لا يمكن التحقق من إجابته.",
			"Print your result with cout, printf, or Serial.print.",
		)
	}

	for _, check := range gradingKeywordChecks {
		if !containsAny(loweredDesc, check.keywords) {
			continue
		}
		if !containsAny(loweredCode, check.patterns) {
			return wrongAnswer(check.hintEn, check.hintAr, check.hintEn)
		}
	}

	g.logger.Info(ctx, "Heuristic grading passed basic checks", map[string]interface{}{
		"code_length": len(code),
	})

	return &models.GradeResult{
		Status:     models.StatusAccepted,
		IsCorrect:  true,
		FeedbackEn: "Your code passed the basic offline checks. The automatic reviewer was unavailable, so this verdict is a heuristic review and not a full evaluation.",
		FeedbackAr: "اجتاز كودك الفحوصات الأساسية دون اتصال. لم يكن المراجع الآلي متاحاً، لذا هذا التقييم تقريبي وليس تقييماً كاملاً.",
		Hint:       nil,
	}
}

func wrongAnswer(feedbackEn, feedbackAr, hint string) *models.GradeResult {
	return &models.GradeResult{
		Status:     models.StatusWrongAnswer,
		IsCorrect:  false,
		FeedbackEn: feedbackEn,
		FeedbackAr: feedbackAr,
		Hint:       &hint,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
