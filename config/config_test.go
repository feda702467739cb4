package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAPIKey(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "env.json")
	if err := os.WriteFile(path, []byte(`{"CENSUS_API": "abc123"}`), 0644); err != nil {
		t.Fatal(err)
	}

	key, err := LoadAPIKey(path)
	if err != nil {
		t.Fatalf("LoadAPIKey: %v", err)
	}
	if key != "abc123" {
		t.Errorf("key = %q; want %q", key, "abc123")
	}
}

func TestLoadAPIKeyMissingFile(t *testing.T) {
	if _, err := LoadAPIKey(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing secrets file")
	}
}

func TestLoadAPIKeyEmptyKey(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "env.json")
	if err := os.WriteFile(path, []byte(`{"OTHER": "x"}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadAPIKey(path); err == nil {
		t.Error("expected error for secrets file without CENSUS_API")
	}
}

func TestLongForm(t *testing.T) {
	tests := []struct {
		concatType string
		want       bool
	}{
		{"long", true},
		{"Long", true},
		{"l", true},
		{"wide", false},
		{"WIDE", false},
	}

	for _, tt := range tests {
		c := &Config{ConcatType: tt.concatType}
		if got := c.LongForm(); got != tt.want {
			t.Errorf("LongForm(%q) = %t; want %t", tt.concatType, got, tt.want)
		}
	}
}

func TestOutputPaths(t *testing.T) {
	c := &Config{Year: 2021, Geography: "tract", OutputDir: "/out"}

	if got := c.FeaturesPath(); !strings.HasSuffix(got, "census_features_2021_tract.csv") {
		t.Errorf("FeaturesPath() = %q", got)
	}
	if got := c.ManifestPath(); !strings.HasSuffix(got, "census_variables_2021_tract.txt") {
		t.Errorf("ManifestPath() = %q", got)
	}
}
