package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Translations map[string]string

var (
	mu      sync.RWMutex
	locales = make(map[string]Translations)
	active  = "VN"
)

// LoadTranslations reads <localePath>/<locale>/strings.yaml for every locale
// directory present. Missing files are skipped, malformed ones fail loading.
func LoadTranslations(localePath string) error {
	mu.Lock()
	defer mu.Unlock()

	entries, err := os.ReadDir(localePath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		locale := strings.ToUpper(entry.Name())
		filePath := filepath.Join(localePath, entry.Name(), "strings.yaml")
		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}
		var config struct {
			Strings Translations `yaml:"STRINGS"`
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filePath, err)
		}
		locales[locale] = config.Strings
	}
	return nil
}

// SetLanguage switches the active locale. Unknown locales are rejected so a
// store write cannot point the engine at a dictionary that does not exist.
func SetLanguage(locale string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := locales[locale]; !ok {
		return fmt.Errorf("unknown locale %q", locale)
	}
	active = locale
	return nil
}

// Active returns the currently selected locale.
func Active() string {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// T translates key in the active locale, falling back to VN, then the key
// itself.
func T(key string) string {
	return Translate(Active(), key)
}

func Translate(locale, key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if trans, ok := locales[locale]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	if locale != "VN" {
		if trans, ok := locales["VN"]; ok {
			if val, ok := trans[key]; ok {
				return val
			}
		}
	}
	return key
}

// Reset clears loaded locales and restores the default language. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	locales = make(map[string]Translations)
	active = "VN"
}
