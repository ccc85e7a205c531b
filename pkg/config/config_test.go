package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sampleConfig struct {
	Name    string `default:"patty"`
	Retries int    `default:"3"`
}

type checkedConfig struct {
	Limit int `default:"0"`
}

var errLimit = errors.New("limit must be positive")

func (c *checkedConfig) Validate() error {
	if c.Limit <= 0 {
		return errLimit
	}
	return nil
}

func TestNewAppliesPrefix(t *testing.T) {
	t.Setenv("SAMPLETEST_NAME", "dealer")

	conf, err := New[sampleConfig]("SAMPLETEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Name != "dealer" || conf.Retries != 3 {
		t.Fatalf("unexpected config: %+v", conf)
	}
}

func TestNewRunsValidator(t *testing.T) {
	t.Setenv("CHECKEDTEST_LIMIT", "0")

	_, err := New[checkedConfig]("CHECKEDTEST")
	if !errors.Is(err, errLimit) {
		t.Fatalf("expected validator error, got %v", err)
	}
}

func TestExportEnvironmentKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("EXPORTTEST_A=file\nEXPORTTEST_B=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("EXPORTTEST_A", "process")
	t.Setenv("EXPORTTEST_B", "")
	os.Unsetenv("EXPORTTEST_B")

	if err := exportEnvironment(path); err != nil {
		t.Fatalf("exportEnvironment() error = %v", err)
	}
	if got := os.Getenv("EXPORTTEST_A"); got != "process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if got := os.Getenv("EXPORTTEST_B"); got != "file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
