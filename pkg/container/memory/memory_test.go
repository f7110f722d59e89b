package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
)

func TestListTablesSkipsNonBinaryExtensions(t *testing.T) {
	c := NewContainer("run.fits")
	c.AddExtension(map[string]string{container.KeyExtension: "IMAGE", container.KeyExtName: "Preview"})
	c.AddTable("Events", "R1.CameraEvent", []byte("a"), []byte("b"))

	s := NewStore()
	s.Put(c)

	tables, err := s.ListTables("run.fits")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, container.TableDescriptor{
		Path:        "run.fits",
		ExtName:     "Events",
		MessageType: "R1.CameraEvent",
		Rows:        2,
		Header: map[string]string{
			container.KeyExtension:   container.BinTable,
			container.KeyExtName:     "Events",
			container.KeyMessageType: "R1.CameraEvent",
			container.KeyTypeTag:     "R1_CAMERA_EVENT",
			container.KeyRows:        "2",
		},
	}, tables[0])

	_, err = s.ListTables("missing.fits")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestInvalidRowCount(t *testing.T) {
	c := NewContainer("bad.fits")
	c.AddExtension(map[string]string{
		container.KeyExtension: container.BinTable,
		container.KeyExtName:   "Events",
		container.KeyRows:      "many",
	})
	s := NewStore()
	s.Put(c)

	_, err := s.ListTables("bad.fits")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestReaderCursor(t *testing.T) {
	c := NewContainer("run.fits")
	c.AddTable("Events", "R1.CameraEvent", []byte("1"), []byte("2"), []byte("3"))
	c.AddTable("CameraConfig", "R1.CameraConfiguration", []byte("cfg"))

	r := NewReader(c)
	assert.Equal(t, "", r.Current())
	assert.Equal(t, 0, r.NumRows())

	require.NoError(t, r.Open("Events"))
	row, err := r.ReadRowAt(2)
	require.NoError(t, err)
	assert.Equal(t, "2", string(row))

	row, ok, err := r.ReadNextRow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", string(row))

	_, ok, err = r.ReadNextRow()
	require.NoError(t, err)
	assert.False(t, ok)

	// Switching tables resets the cursor.
	require.NoError(t, r.Open("CameraConfig"))
	row, ok, err = r.ReadNextRow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cfg", string(row))

	require.NoError(t, r.Open("Events"))
	row, _, err = r.ReadNextRow()
	require.NoError(t, err)
	assert.Equal(t, "1", string(row))

	_, err = r.ReadRowAt(4)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, r.Close())
	assert.True(t, errors.IsType(r.Open("Events"), errors.ErrorTypeFile))
}

func TestSinkRoundTrip(t *testing.T) {
	s := NewStore()
	sink, err := s.CreateSink("out.fits")
	require.NoError(t, err)

	assert.True(t, errors.IsType(sink.AppendRow([]byte("x")), errors.ErrorTypeValidation))
	require.NoError(t, sink.DeclareTable("RunHeader", "DL0_RUN_HEADER"))

	row := []byte("header")
	require.NoError(t, sink.AppendRow(row))
	row[0] = 'X'
	require.NoError(t, sink.Close())
	assert.True(t, errors.IsType(sink.AppendRow(row), errors.ErrorTypeFile))

	tables, err := s.ListTables("out.fits")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "DataModel.CameraRunHeader", tables[0].MessageType)
	assert.Equal(t, 1, tables[0].Rows)

	r, err := s.OpenReader("out.fits")
	require.NoError(t, err)
	require.NoError(t, r.Open("RunHeader"))
	got, err := r.ReadRowAt(1)
	require.NoError(t, err)
	assert.Equal(t, "header", string(got))
}

func TestSinkAbort(t *testing.T) {
	s := NewStore()
	sink, err := s.CreateSink("out.fits")
	require.NoError(t, err)
	require.NoError(t, sink.DeclareTable("Events", "R1_CAMERA_EVENT"))
	require.NoError(t, sink.AppendRow([]byte("a")))

	require.NoError(t, sink.Abort())
	_, ok := s.Get("out.fits")
	assert.False(t, ok)
	assert.True(t, errors.IsType(sink.AppendRow([]byte("b")), errors.ErrorTypeFile))
	require.NoError(t, sink.Close())

	c := NewContainer("direct.fits")
	direct := NewSink(c)
	require.NoError(t, direct.DeclareTable("Events", "R1_CAMERA_EVENT"))
	require.NoError(t, direct.Abort())
	assert.Empty(t, c.headers())
}
