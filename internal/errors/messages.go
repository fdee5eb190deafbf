package errors

import (
	"context"
	"errors"
	"fmt"
)

// Supported message languages
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

type messageKey int

const (
	msgQuota messageKey = iota
	msgAuth
	msgNoKey
	msgOverloaded
	msgNetwork
	msgTimeout
	msgBlocked
	msgCanceled
	msgGeneric
	msgUnknown
)

var catalog = map[string]map[messageKey]string{
	LangArabic: {
		msgQuota:      "تجاوزت الحصة المسموحة (Quota Exceeded). حاول مجدداً بعد دقيقة.",
		msgAuth:       "خطأ في مفتاح API. يرجى التأكد من صلاحية المفتاح.",
		msgNoKey:      "عذراً، يجب تسجيل مفتاح API أولاً.",
		msgOverloaded: "الخدمة مشغولة حالياً. حاول مرة أخرى بعد قليل.",
		msgNetwork:    "تعذر الاتصال بالخادم. يرجى التحقق من اتصالك بالإنترنت.",
		msgTimeout:    "انتهت مهلة الطلب. حاول مرة أخرى.",
		msgBlocked:    "تم حجب الرد بواسطة فلاتر الأمان.",
		msgCanceled:   "تم إلغاء الطلب.",
		msgGeneric:    "حدث خطأ: %s",
		msgUnknown:    "حدث خطأ غير معروف",
	},
	LangEnglish: {
		msgQuota:      "Quota exceeded. Try again in a minute.",
		msgAuth:       "API key error. Please check that the key is valid.",
		msgNoKey:      "Sorry, you need to set an API key first.",
		msgOverloaded: "The service is busy right now. Try again shortly.",
		msgNetwork:    "Could not reach the server. Check your internet connection.",
		msgTimeout:    "The request timed out. Try again.",
		msgBlocked:    "The response was blocked by safety filters.",
		msgCanceled:   "The request was canceled.",
		msgGeneric:    "An error occurred: %s",
		msgUnknown:    "An unknown error occurred",
	},
}

// UserMessage maps err to a localized, user-facing message.
// Unknown languages fall back to Arabic.
func UserMessage(err error, lang string) string {
	messages, ok := catalog[lang]
	if !ok {
		messages = catalog[LangArabic]
	}
	if err == nil {
		return messages[msgUnknown]
	}

	if errors.Is(err, ErrNoAPIKey) {
		return messages[msgNoKey]
	}
	if errors.Is(err, context.Canceled) {
		return messages[msgCanceled]
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return messages[msgTimeout]
	}

	err = Classify(err)

	switch {
	case IsRateLimitError(err):
		return messages[msgQuota]
	case IsAuthError(err):
		return messages[msgAuth]
	case IsOverloaded(err):
		return messages[msgOverloaded]
	case IsTimeoutError(err):
		return messages[msgTimeout]
	case IsNetworkError(err):
		return messages[msgNetwork]
	case IsBlockedError(err):
		return messages[msgBlocked]
	}

	if msg := err.Error(); msg != "" {
		return fmt.Sprintf(messages[msgGeneric], msg)
	}
	return messages[msgUnknown]
}
