package translator

import "sort"

// DefaultLanguage is the language the corpus and the model work in.
const DefaultLanguage = "en"

// SupportedLanguages maps ISO 639-1 codes accepted from clients to their
// display names.
var SupportedLanguages = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese (Simplified)",
	"ja": "Japanese",
	"ko": "Korean",
	"pt": "Portuguese",
	"ru": "Russian",
	"it": "Italian",
	"nl": "Dutch",
	"sv": "Swedish",
	"pl": "Polish",
	"tr": "Turkish",
	"ar": "Arabic",
	"te": "Telugu",
	"ta": "Tamil",
	"bn": "Bengali",
}

// Language is a supported language entry.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// IsSupported reports whether code is a supported language.
func IsSupported(code string) bool {
	_, ok := SupportedLanguages[code]
	return ok
}

// LanguageName returns the display name for code, or "Unknown".
func LanguageName(code string) string {
	if name, ok := SupportedLanguages[code]; ok {
		return name
	}
	return "Unknown"
}

// Languages returns the supported languages sorted by code.
func Languages() []Language {
	out := make([]Language, 0, len(SupportedLanguages))
	for code, name := range SupportedLanguages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
