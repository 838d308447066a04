package usecase

import (
	"encoding/json"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/iamvkosarev/vedai/pkg/local"
	"log/slog"
	"strings"
)

const (
	SettingsKey = "vedai_settings"

	languageDirectiveFormat = "IMPORTANT: Respond in %s."
)

type LocalStorage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

type SettingsUsecaseDeps struct {
	LocalStorage LocalStorage
}

type SettingsUsecase struct {
	SettingsUsecaseDeps
}

func NewSettingsUsecase(deps SettingsUsecaseDeps) *SettingsUsecase {
	return &SettingsUsecase{
		SettingsUsecaseDeps: deps,
	}
}

// Get returns the stored settings merged over the defaults. It never fails:
// missing or corrupt data yields defaults.
func (s *SettingsUsecase) Get() model.Settings {
	raw, ok, err := s.LocalStorage.GetItem(SettingsKey)
	if err != nil {
		slog.Warn("failed to read settings", "error", err)
		return model.DefaultSettings()
	}
	if !ok {
		return model.DefaultSettings()
	}
	settings := model.DefaultSettings()
	if err = json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("failed to parse settings, using defaults", "error", err)
		return model.DefaultSettings()
	}
	return settings.Normalize()
}

func (s *SettingsUsecase) Save(settings model.Settings) {
	raw, err := json.Marshal(settings.Normalize())
	if err != nil {
		slog.Error("failed to marshal settings", "error", err)
		return
	}
	if err = s.LocalStorage.SetItem(SettingsKey, string(raw)); err != nil {
		slog.Error("failed to save settings", "error", err)
	}
}

// Update applies fn to the current settings and stores the result.
func (s *SettingsUsecase) Update(fn func(settings *model.Settings)) model.Settings {
	settings := s.Get()
	fn(&settings)
	settings = settings.Normalize()
	s.Save(settings)
	return settings
}

func (s *SettingsUsecase) Language() local.Language {
	return local.Language(s.Get().Language)
}

// SystemMessage builds the instruction sent ahead of the conversation.
// ok is false when there is nothing to send.
func (s *SettingsUsecase) SystemMessage() (model.Message, bool) {
	settings := s.Get()
	content := settings.SystemInstruction

	language := local.Language(settings.Language)
	if language != local.Eng {
		if name, known := language.Name(); known {
			if content != "" {
				content += "\n\n"
			}
			content += fmt.Sprintf(languageDirectiveFormat, name)
		}
	}
	if strings.TrimSpace(content) == "" {
		return model.Message{}, false
	}
	return model.Message{
		Role:    model.MessageRoleSystem,
		Content: content,
	}, true
}
