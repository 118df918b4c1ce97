package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourcesFile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoadSources_File(t *testing.T) {
	sources, err := loadSources(writeSourcesFile(t, "- id: west\n  url: http://feeds.local/west\n"))
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "west", sources[0].ID)
}

func TestLoadSources_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty list", "[]"},
		{"missing url", "- id: west\n"},
		{"duplicate id", "- id: a\n  url: http://a\n- id: a\n  url: http://b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSources(writeSourcesFile(t, tt.doc))
			require.Error(t, err)
		})
	}
}

func TestRun_EmptySourcesFileFailsWithoutPanic(t *testing.T) {
	path := writeSourcesFile(t, "[]")
	assert.NotPanics(t, func() {
		assert.Equal(t, 1, run(path, 0, true))
	})
}
