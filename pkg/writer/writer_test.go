package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/container/memory"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/testutil"
)

func newWriter(t *testing.T) (*Writer, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	sink, err := store.CreateSink("out.fits")
	require.NoError(t, err)
	return New(sink, nil, testutil.TestLogger(t)), store
}

func event(id uint64) *record.Record {
	return record.NewBuilder("R1.CameraEvent").Set("event_id", record.Uint(id)).Build()
}

func TestWriterLocksOnFirstAppend(t *testing.T) {
	w, store := newWriter(t)
	assert.Equal(t, "", w.MessageType())

	require.NoError(t, w.Append(event(1)))
	assert.Equal(t, "R1.CameraEvent", w.MessageType())
	assert.Equal(t, "Events", w.Table())
	assert.Equal(t, "R1_CAMERA_EVENT", w.TypeTag())
	require.NoError(t, w.Append(event(2)))
	assert.Equal(t, 2, w.Rows())
	require.NoError(t, w.Close())

	tables, err := store.ListTables("out.fits")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Events", tables[0].ExtName)
	assert.Equal(t, 2, tables[0].Rows)
}

func TestWriterRejectsOtherType(t *testing.T) {
	w, _ := newWriter(t)
	require.NoError(t, w.Append(event(1)))

	cfg := record.NewBuilder("R1.CameraConfiguration").Set("telescope_id", record.Uint(1)).Build()
	err := w.Append(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTableTypeMismatch))
	assert.Equal(t, 1, w.Rows())
	assert.Equal(t, "R1.CameraEvent", w.MessageType())

	// The writer stays usable for the locked type.
	require.NoError(t, w.Append(event(2)))
	assert.Equal(t, 2, w.Rows())
}

func TestWriterAliasIsSameType(t *testing.T) {
	w, _ := newWriter(t)
	l0 := record.NewBuilder("L0.CameraEvent").Set("eventNumber", record.Uint(1)).Build()
	dm := record.NewBuilder("DataModel.CameraEvent").Set("eventNumber", record.Uint(2)).Build()

	require.NoError(t, w.Append(l0))
	require.NoError(t, w.Append(dm))
	assert.Equal(t, "DataModel.CameraEvent", w.MessageType())
	assert.Equal(t, "DL0_CAMERA_EVENT", w.TypeTag())
}

func TestWriterFailedEncodeKeepsUnlocked(t *testing.T) {
	w, _ := newWriter(t)
	bad := record.NewBuilder("R1.CameraEvent").Set("no_such_field", record.Int(1)).Build()

	err := w.Append(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownField))
	assert.Equal(t, "", w.MessageType())
	assert.Equal(t, 0, w.Rows())

	cfg := record.NewBuilder("R1.CameraConfiguration").Set("telescope_id", record.Uint(1)).Build()
	require.NoError(t, w.Append(cfg))
	assert.Equal(t, "CameraConfig", w.Table())
}

func TestWriterUnknownType(t *testing.T) {
	w, _ := newWriter(t)
	err := w.AppendRaw("R9.Nothing", []byte{1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownMessageType))
}

func TestAppendMessageAndRaw(t *testing.T) {
	w, store := newWriter(t)

	msg, err := catalog.Default().NewMessage("DataModel.CameraRunHeader")
	require.NoError(t, err)
	msg.Set(msg.Descriptor().Fields().ByName("runNumber"), protoreflect.ValueOfUint32(7))
	require.NoError(t, w.AppendMessage(msg))
	assert.Equal(t, "RunHeader", w.Table())
	assert.Equal(t, "DL0_RUN_HEADER", w.TypeTag())

	require.NoError(t, w.AppendRaw("DataModel.CameraRunHeader", nil))
	require.NoError(t, w.Close())

	r, err := store.OpenReader("out.fits")
	require.NoError(t, err)
	require.NoError(t, r.Open("RunHeader"))
	row, err := r.ReadRowAt(1)
	require.NoError(t, err)

	got, err := record.NewCodec(nil, testutil.TestLogger(t)).Unmarshal("DataModel.CameraRunHeader", row)
	require.NoError(t, err)
	n, ok := got.Uint("runNumber")
	require.True(t, ok)
	assert.Equal(t, uint64(7), n)
}

func TestWriterClose(t *testing.T) {
	w, _ := newWriter(t)
	require.NoError(t, w.Append(event(1)))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err := w.Append(event(2))
	assert.True(t, errors.IsType(err, errors.ErrorTypeWriterClosed))
	assert.Equal(t, 1, w.Rows())
}
