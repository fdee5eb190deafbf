package chat

import (
	"fmt"

	apierrors "github.com/diogo/techtouch/internal/errors"
)

type textKey int

const (
	msgImageFailed textKey = iota
	msgExtracting
	msgExtracted
	msgTranslated
	msgUnexpected
	msgImageEdited
)

var texts = map[string]map[textKey]string{
	apierrors.LangArabic: {
		msgImageFailed: "خطأ في معالجة الصورة.",
		msgExtracting:  "جاري استخراج النص من %s...",
		msgExtracted:   "تم الاستخراج. جاري الترجمة والمعالجة...",
		msgTranslated:  "تمت ترجمة وتنسيق الملف بنجاح.",
		msgUnexpected:  "حدث خطأ غير متوقع.",
		msgImageEdited: "تم تعديل الصورة بنجاح.",
	},
	apierrors.LangEnglish: {
		msgImageFailed: "Could not process the image.",
		msgExtracting:  "Extracting text from %s...",
		msgExtracted:   "Extracted. Translating and formatting...",
		msgTranslated:  "The file was translated and formatted successfully.",
		msgUnexpected:  "An unexpected error occurred.",
		msgImageEdited: "The image was edited successfully.",
	},
}

func (s *Service) text(key textKey, args ...any) string {
	catalog, ok := texts[s.lang]
	if !ok {
		catalog = texts[apierrors.LangArabic]
	}
	if len(args) == 0 {
		return catalog[key]
	}
	return fmt.Sprintf(catalog[key], args...)
}
