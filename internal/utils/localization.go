package contextutils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Locale represents a language locale (e.g., "en", "ar")
type Locale string

const (
	// LocaleEnglish represents English language
	LocaleEnglish Locale = "en"
	// LocaleArabic represents Arabic language
	LocaleArabic Locale = "ar"
)

// LocalizedMessages contains localized error messages for different locales
type LocalizedMessages struct {
	messages map[ErrorCode]map[Locale]string
}

// NewLocalizedMessages creates a new instance of localized messages
func NewLocalizedMessages() *LocalizedMessages {
	return &LocalizedMessages{
		messages: make(map[ErrorCode]map[Locale]string),
	}
}

// AddMessage adds a localized message for a specific error code and locale
func (lm *LocalizedMessages) AddMessage(code ErrorCode, locale Locale, message string) {
	if lm.messages[code] == nil {
		lm.messages[code] = make(map[Locale]string)
	}
	lm.messages[code][locale] = message
}

// GetMessage returns the localized message for an error code and locale
func (lm *LocalizedMessages) GetMessage(code ErrorCode, locale Locale) string {
	if localeMessages, exists := lm.messages[code]; exists {
		if message, exists := localeMessages[locale]; exists {
			return message
		}

		// Fallback to English if the specific locale doesn't have a message
		if message, exists := localeMessages[LocaleEnglish]; exists {
			return message
		}
	}

	return getDefaultMessage(code)
}

// GetMessageWithDetails returns a localized message with additional details
func (lm *LocalizedMessages) GetMessageWithDetails(code ErrorCode, locale Locale, details string) string {
	message := lm.GetMessage(code, locale)
	if details != "" {
		return fmt.Sprintf("%s: %s", message, details)
	}
	return message
}

// getDefaultMessage returns a default English message for error codes
func getDefaultMessage(code ErrorCode) string {
	switch code {
	case ErrorCodeDatabaseConnection:
		return "Database connection failed"
	case ErrorCodeDatabaseQuery:
		return "Database query failed"
	case ErrorCodeRecordNotFound:
		return "Record not found"
	case ErrorCodeRecordExists:
		return "Record already exists"
	case ErrorCodeInvalidInput:
		return "Invalid input"
	case ErrorCodeMissingRequired:
		return "Missing required field"
	case ErrorCodeValidationFailed:
		return "Validation failed"
	case ErrorCodeUnauthorized:
		return "Unauthorized access"
	case ErrorCodeForbidden:
		return "Access forbidden"
	case ErrorCodeInvalidCredentials:
		return "Invalid credentials"
	case ErrorCodeSessionExpired:
		return "Session expired"
	case ErrorCodeTimeout:
		return "Request timeout"
	case ErrorCodeInternalError:
		return "Internal server error"
	case ErrorCodeProblemNotFound:
		return "Problem not found"
	case ErrorCodeSubmissionNotFound:
		return "Submission not found"
	case ErrorCodeInvalidTrack:
		return "Unknown learning track"
	case ErrorCodeInvalidDifficulty:
		return "Unknown difficulty level"
	case ErrorCodeAIRateLimited:
		return "AI provider rate limited the request"
	case ErrorCodeAIUnavailable:
		return "AI service unavailable"
	case ErrorCodeAIResponseMalformed:
		return "AI response malformed"
	case ErrorCodeAIConfigInvalid:
		return "AI configuration invalid"
	default:
		return "An error occurred"
	}
}

// LoadMessagesFromJSON loads localized messages from a JSON structure
func (lm *LocalizedMessages) LoadMessagesFromJSON(jsonData string) error {
	var data map[string]map[string]string
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return WrapError(err, "failed to parse localization JSON")
	}

	for codeStr, localeMessages := range data {
		code := ErrorCode(codeStr)
		for localeStr, message := range localeMessages {
			locale := Locale(localeStr)
			lm.AddMessage(code, locale, message)
		}
	}

	return nil
}

// ParseLocale parses a locale string (e.g., "en-US", "ar-JO") and returns the language part
func ParseLocale(localeStr string) Locale {
	parts := strings.Split(localeStr, "-")
	if len(parts) > 0 && parts[0] != "" {
		return Locale(strings.ToLower(parts[0]))
	}
	return LocaleEnglish
}

// Global instance of localized messages
var globalLocalizedMessages = NewLocalizedMessages()

// init loads the Arabic messages for the error codes that reach end users.
func init() {
	globalLocalizedMessages.AddMessage(ErrorCodeInvalidInput, LocaleArabic, "مدخلات غير صالحة")
	globalLocalizedMessages.AddMessage(ErrorCodeRecordNotFound, LocaleArabic, "السجل غير موجود")
	globalLocalizedMessages.AddMessage(ErrorCodeUnauthorized, LocaleArabic, "الوصول غير مصرح به")
	globalLocalizedMessages.AddMessage(ErrorCodeInvalidCredentials, LocaleArabic, "بيانات الدخول غير صحيحة")
	globalLocalizedMessages.AddMessage(ErrorCodeProblemNotFound, LocaleArabic, "المسألة غير موجودة")
	globalLocalizedMessages.AddMessage(ErrorCodeSubmissionNotFound, LocaleArabic, "المحاولة غير موجودة")
	globalLocalizedMessages.AddMessage(ErrorCodeAIUnavailable, LocaleArabic, "خدمة الذكاء الاصطناعي غير متاحة حالياً")
	globalLocalizedMessages.AddMessage(ErrorCodeAIResponseMalformed, LocaleArabic, "تعذّر فهم استجابة الذكاء الاصطناعي")
	globalLocalizedMessages.AddMessage(ErrorCodeInternalError, LocaleArabic, "خطأ داخلي في الخادم")
}

// GetLocalizedMessage returns a localized error message using the global instance
func GetLocalizedMessage(code ErrorCode, locale Locale) string {
	return globalLocalizedMessages.GetMessage(code, locale)
}

// GetLocalizedMessageWithDetails returns a localized error message with details
func GetLocalizedMessageWithDetails(code ErrorCode, locale Locale, details string) string {
	return globalLocalizedMessages.GetMessageWithDetails(code, locale, details)
}

// SetGlobalLocalizedMessages sets the global localized messages instance
func SetGlobalLocalizedMessages(messages *LocalizedMessages) {
	globalLocalizedMessages = messages
}
