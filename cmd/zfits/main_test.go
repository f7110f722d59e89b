package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/zfits/pkg/config"
	"github.com/ajitpratap0/zfits/pkg/container/zfile"
	"github.com/ajitpratap0/zfits/pkg/testutil"
)

func writeContainer(t *testing.T, path string, ids ...uint64) {
	t.Helper()
	sink, err := zfile.NewDriver(nil, testutil.TestLogger(t)).CreateSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.DeclareTable("Events", "R1_CAMERA_EVENT"))
	for _, id := range ids {
		require.NoError(t, sink.AppendRow(testutil.Row(t, "R1.CameraEvent", map[string]any{"event_id": id})))
	}
	require.NoError(t, sink.Close())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "zfits v"+version)
}

func TestTablesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.zfits")
	writeContainer(t, path, 1, 2)

	out, err := run(t, "tables", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"Events", "R1.CameraEvent", "2"}, strings.Fields(lines[1]))
}

func TestMergeAndDumpCommands(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.zfits"), filepath.Join(dir, "b.zfits")
	writeContainer(t, a, 1, 4)
	writeContainer(t, b, 2, 3)
	merged := filepath.Join(dir, "merged.zfits")

	_, err := run(t, "merge", a, b, "--out", merged)
	require.NoError(t, err)

	out, err := run(t, "dump", merged, "--table", "Events")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	for i, line := range lines {
		assert.Contains(t, line, `"event_id":`+string(rune('1'+i)))
	}

	avro := filepath.Join(dir, "merged.avro")
	_, err = run(t, "merge", a, b, "--format", "avro", "--out", avro)
	require.NoError(t, err)
	data, err := os.ReadFile(avro)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("Obj\x01")))
}

func TestCopyCommand(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.zfits"), filepath.Join(dir, "out.zfits")
	writeContainer(t, in, 5, 6, 7)

	t.Setenv("ZFITS_WRITER_COMPRESSION", "snappy")
	_, err := run(t, "copy", in, out)
	require.NoError(t, err)

	descs, err := zfile.NewDriver(nil, testutil.TestLogger(t)).ListTables(out)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, 3, descs[0].Rows)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.zfits")
	writeContainer(t, path, 1)

	_, err := run(t, "dump", path, "--format", "xml")
	assert.Error(t, err)

	_, err = run(t, "merge", path)
	assert.ErrorContains(t, err, "--out or --format")

	_, err = run(t, "tables", filepath.Join(dir, "missing.zfits"))
	assert.Error(t, err)

	_, err = run(t, "tables", path, "--config", filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "configuration error")
}

func TestConfigWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zfits.yaml")
	_, err := run(t, "config", "write", path, "--table", "RunHeader")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "RunHeader", cfg.Reader.Table)
	assert.Equal(t, "error", cfg.Logging.Level)
}
