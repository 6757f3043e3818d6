package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namelens/draftprune/internal/output"
)

func TestResolveOutPath(t *testing.T) {
	path, err := resolveOutPath(" report.json ", "", "history", output.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, "report.json", path)

	_, err = resolveOutPath("a", "b", "history", output.FormatJSON)
	require.Error(t, err)

	dir := t.TempDir()
	path, err = resolveOutPath("", filepath.Join(dir, "out"), "history", output.FormatYAML)
	require.NoError(t, err)
	require.Equal(t, "history.yaml", filepath.Base(path))
	require.DirExists(t, filepath.Join(dir, "out"))
}

func TestOpenSink(t *testing.T) {
	var stdout bytes.Buffer
	sink, err := openSink("-", &stdout)
	require.NoError(t, err)
	_, _ = sink.writer.Write([]byte("hello"))
	require.NoError(t, sink.close())
	require.Equal(t, "hello", stdout.String())

	path := filepath.Join(t.TempDir(), "nested", "history.txt")
	sink, err = openSink(path, &stdout)
	require.NoError(t, err)
	_, _ = sink.writer.Write([]byte("journal"))
	require.NoError(t, sink.close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "journal", string(data))
}
