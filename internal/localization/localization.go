// Package localization provides the notification texts shown to chat users.
// Catalogs are JSON files named by language code (e.g. "en.json") mapping a
// key to a template with {placeholder} variables.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// DefaultLanguage is used when a key is missing from the requested language.
const DefaultLanguage = "en"

// Catalog keys.
const (
	KeyNotifyChat         = "notification.chat"
	KeyNotifyChatFile     = "notification.chat_file"
	KeyNotifyGroupMessage = "notification.group_message"
	KeyNotifyGroupFile    = "notification.group_file"
	KeyPushChat           = "push.chat"
	KeyPushChatFile       = "push.chat_file"
	KeySenderUnknown      = "sender.unknown"
	KeySenderSomeone      = "sender.someone"
)

//go:embed locales/*.json
var builtin embed.FS

// Localizer holds one translation map per language.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer loads every *.json catalog in the directory at path.
func NewLocalizer(path string) (*Localizer, error) {
	return Load(os.DirFS(path))
}

// Default returns the catalogs compiled into the binary.
func Default() *Localizer {
	sub, err := fs.Sub(builtin, "locales")
	if err != nil {
		panic(err)
	}
	l, err := Load(sub)
	if err != nil {
		panic(err)
	}
	return l
}

// Load reads every *.json catalog at the root of fsys.
func Load(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// HasLanguage reports whether lang has a catalog.
func (l *Localizer) HasLanguage(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[lang]
	return ok
}

// GetString returns the template for key in lang, falling back to the
// default language and finally to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLanguage {
		if enTranslations, ok := l.translations[DefaultLanguage]; ok {
			if value, ok := enTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format looks up key and substitutes {name} placeholders from vars.
// Placeholders without a value are left as written.
func (l *Localizer) Format(lang, key string, vars map[string]string) string {
	text := l.GetString(lang, key)
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
