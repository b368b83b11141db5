package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "cosmetics.schema.json")
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"--out", out}, &stdout, &stderr), stderr.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "AuraVFX Cosmetic Catalog", doc["title"])
	assert.Contains(t, string(data), `"modelAssetId"`)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(out), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRunRequiresAMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--out or --check")
}

func TestRunCheckReportsCatalogIssues(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "clean.json")
	require.NoError(t, os.WriteFile(clean, []byte(`[{"id": "glow", "category": "auras", "effectId": "Glow"}]`), 0o644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`[{"id": "x", "category": "hats"}]`), 0o644))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--check", clean}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "catalog:")

	stdout.Reset()
	stderr.Reset()
	assert.Equal(t, 2, run([]string{"--check", clean, broken}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "hats")
}
