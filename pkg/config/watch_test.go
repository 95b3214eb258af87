package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWatch_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	watching, err := Watch("", func(*Config) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if watching {
		t.Fatal("Watch() = true, want false when no config file exists")
	}
}

func TestWatch_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: INFO\n"), 0600); err != nil {
		t.Fatal(err)
	}

	watching, err := Watch(path, func(*Config) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if !watching {
		t.Fatal("Watch() = false, want true when a config file exists")
	}
}
