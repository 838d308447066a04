package local

import "fmt"

type Language string

const (
	Eng        = Language("en")
	Spanish    = Language("es")
	French     = Language("fr")
	German     = Language("de")
	Hindi      = Language("hi")
	Kannada    = Language("kn")
	Telugu     = Language("te")
	Tamil      = Language("ta")
	Malayalam  = Language("ml")
	Chinese    = Language("zh")
	Japanese   = Language("ja")
	Portuguese = Language("pt")
)

var languageNames = map[Language]string{
	Eng:        "English",
	Spanish:    "Spanish",
	French:     "French",
	German:     "German",
	Hindi:      "Hindi",
	Kannada:    "Kannada",
	Telugu:     "Telugu",
	Tamil:      "Tamil",
	Malayalam:  "Malayalam",
	Chinese:    "Chinese",
	Japanese:   "Japanese",
	Portuguese: "Portuguese",
}

// Name returns the English name of a supported language.
func (l Language) Name() (string, bool) {
	name, ok := languageNames[l]
	return name, ok
}

type Localization struct {
	language Language
	text     string
}

type TextSet struct {
	Default          string
	translationsText map[Language]string
}

func NewTrans(language Language, text string) Localization {
	return Localization{
		language: language,
		text:     text,
	}
}

func NewSet(defaultText string, localizations ...Localization) TextSet {
	set := TextSet{
		Default:          defaultText,
		translationsText: make(map[Language]string),
	}
	for _, localization := range localizations {
		set.translationsText[localization.language] = localization.text
	}
	return set
}

func (l TextSet) Text(language Language) string {
	if text, ok := l.translationsText[language]; ok {
		return text
	}
	return l.Default
}

func (l TextSet) DefaultFormat(a ...any) string {
	return fmt.Sprintf(l.Default, a...)
}

func (l TextSet) Format(language Language, a ...any) string {
	if text, ok := l.translationsText[language]; ok {
		return fmt.Sprintf(text, a...)
	}
	return l.DefaultFormat(a...)
}
