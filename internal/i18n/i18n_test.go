package i18n_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipline/internal/i18n"
)

func load(t *testing.T) {
	t.Helper()
	i18n.Reset()
	require.NoError(t, i18n.LoadTranslations("../../locales"))
	t.Cleanup(i18n.Reset)
}

func TestLoadTranslations(t *testing.T) {
	load(t)
	assert.Equal(t, "VN", i18n.Active())
	assert.NotEqual(t, "COMMON_GREET", i18n.T("COMMON_GREET"),
		"bundled locales resolve known keys")
}

func TestSetLanguage(t *testing.T) {
	load(t)
	require.NoError(t, i18n.SetLanguage("EN"))
	assert.Equal(t, "EN", i18n.Active())

	err := i18n.SetLanguage("DE")
	assert.Error(t, err)
	assert.Equal(t, "EN", i18n.Active(), "a rejected switch leaves the locale alone")
}

func TestTranslateFallsBackToVN(t *testing.T) {
	i18n.Reset()
	t.Cleanup(i18n.Reset)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vn"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "en"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vn", "strings.yaml"),
		[]byte("STRINGS:\n  ONLY_VN: \"xin chao\"\n  BOTH: \"ca hai\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en", "strings.yaml"),
		[]byte("STRINGS:\n  BOTH: \"both\"\n"), 0o644))
	require.NoError(t, i18n.LoadTranslations(dir))

	assert.Equal(t, "both", i18n.Translate("EN", "BOTH"))
	assert.Equal(t, "xin chao", i18n.Translate("EN", "ONLY_VN"), "missing keys fall back to VN")
	assert.Equal(t, "MISSING_EVERYWHERE", i18n.Translate("EN", "MISSING_EVERYWHERE"),
		"unknown keys come back verbatim")
}

func TestLoadTranslationsMissingDir(t *testing.T) {
	i18n.Reset()
	t.Cleanup(i18n.Reset)
	assert.Error(t, i18n.LoadTranslations(filepath.Join(t.TempDir(), "nope")))
}
