package model

const (
	SettingsVersion = 1

	ThemeLight = "light"
	ThemeDark  = "dark"

	DefaultSystemInstruction = "You are VedAI, a helpful assistant."
	DefaultLanguage          = "en"
)

type Settings struct {
	Version           int    `json:"version"`
	SystemInstruction string `json:"systemInstruction"`
	Theme             string `json:"theme"`
	Language          string `json:"language"`
	Notifications     bool   `json:"notifications"`
}

func DefaultSettings() Settings {
	return Settings{
		Version:           SettingsVersion,
		SystemInstruction: DefaultSystemInstruction,
		Theme:             ThemeLight,
		Language:          DefaultLanguage,
		Notifications:     true,
	}
}

// Normalize replaces invalid or missing fields with their defaults.
func (s Settings) Normalize() Settings {
	defaults := DefaultSettings()
	if s.Theme != ThemeLight && s.Theme != ThemeDark {
		s.Theme = defaults.Theme
	}
	if s.Language == "" {
		s.Language = defaults.Language
	}
	s.Version = SettingsVersion
	return s
}
