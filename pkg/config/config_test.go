package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "notes")
	p := writeFile(t, "name: ${SAMPLE_NAME}\nlimit: 3\n")

	var s sample
	require.NoError(t, Load(p, &s))
	assert.Equal(t, sample{Name: "notes", Limit: 3}, s)
}

func TestLoad_Validates(t *testing.T) {
	p := writeFile(t, "limit: -1\n")

	var s sample
	err := Load(p, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &s))
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Limit: 5}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s))
	assert.Equal(t, "default", s.Name)

	require.NoError(t, LoadOptional("", &s))
	assert.Equal(t, 5, s.Limit)
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	p := writeFile(t, "limit: 9\n")
	s := sample{Name: "default", Limit: 5}
	require.NoError(t, LoadOptional(p, &s))
	assert.Equal(t, sample{Name: "default", Limit: 9}, s)
}

func TestLoadOptional_ValidatesDefaults(t *testing.T) {
	s := sample{Limit: -2}
	assert.Error(t, LoadOptional("", &s))
}
