package export

import (
	"bytes"
	"math"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/json"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/schema"
	"github.com/ajitpratap0/zfits/pkg/testutil"
)

func runHeader() *record.Record {
	return record.NewBuilder("DataModel.CameraRunHeader").
		Set("telescopeID", record.Int(1)).
		Set("runNumber", record.Uint(42)).
		Set("cameraVersion", record.String("v2")).
		Build()
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": JSON, "JSONL": JSON, "ndjson": JSON, "Avro": Avro} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("parquet")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	exp := NewJSONLines(&buf)

	ev := record.NewBuilder("R1.CameraEvent").
		Set("event_id", record.Uint(7)).
		Set("calibration_gain", record.Float(math.NaN())).
		Set("waveform", record.ArrayOf([]uint8{1, 255})).
		Set("pixel_status", record.ArrayOf([]float32{0.5})).
		Build()
	require.NoError(t, exp.Write(ev))
	require.NoError(t, exp.Write(runHeader()))
	require.NoError(t, exp.Close())
	assert.Equal(t, 2, exp.Count())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, `{"event_id":7,"calibration_gain":null,"waveform":[1,255],"pixel_status":[0.5]}`, string(lines[0]))

	var header map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &header))
	assert.Equal(t, "v2", header["cameraVersion"])
	assert.Equal(t, float64(42), header["runNumber"])
}

func readAvro(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	require.NoError(t, err)
	var out []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		out = append(out, datum.(map[string]interface{}))
	}
	require.NoError(t, ocf.Err())
	return out
}

func TestAvroRunHeader(t *testing.T) {
	var buf bytes.Buffer
	exp, err := New(Avro, &buf, nil, "DataModel.CameraRunHeader")
	require.NoError(t, err)
	require.NoError(t, exp.Write(runHeader()))
	require.NoError(t, exp.Close())
	assert.Equal(t, 1, exp.Count())

	rows := readAvro(t, buf.Bytes())
	require.Len(t, rows, 1)
	assert.Equal(t, int32(1), rows[0]["telescopeID"])
	assert.Equal(t, int64(42), rows[0]["runNumber"])
	assert.Equal(t, "v2", rows[0]["cameraVersion"])
	assert.Equal(t, int32(-1), rows[0]["numGainChannels"])
	assert.Equal(t, false, rows[0]["isSimulation"])
}

func TestAvroNestedEvent(t *testing.T) {
	reg := schema.NewRegistry(nil, testutil.TestLogger(t))
	var buf bytes.Buffer
	exp, err := NewAvro(&buf, reg, "L0.CameraEvent")
	require.NoError(t, err)

	ev := record.NewBuilder("DataModel.CameraEvent").
		Set("eventNumber", record.Uint(3)).
		Set("eventType", record.Enum("DARK")).
		Set("pixels_flags", record.ArrayOf([]uint16{1, 2})).
		Set("trig", record.NewBuilder("DataModel.TriggerInfo").Set("timeSec", record.Uint(9)).Build()).
		Build()
	require.NoError(t, exp.Write(ev))

	rows := readAvro(t, buf.Bytes())
	require.Len(t, rows, 1)
	assert.Equal(t, "DARK", rows[0]["eventType"])
	assert.Equal(t, int64(3), rows[0]["eventNumber"])

	flags := rows[0]["pixels_flags"].(map[string]interface{})
	assert.Equal(t, "uint16", flags["dtype"])
	assert.Equal(t, []byte{1, 0, 2, 0}, flags["data"])

	empty := rows[0]["trigger_input_traces"].(map[string]interface{})
	assert.Equal(t, "none", empty["dtype"])

	trig := rows[0]["trig"].(map[string]interface{})
	assert.Equal(t, int64(9), trig["timeSec"])

	// loGain shares the PixelsChannel definition of hiGain.
	lo := rows[0]["loGain"].(map[string]interface{})
	assert.Contains(t, lo, "waveforms")
}

func TestAvroErrors(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewAvro(&buf, nil, "R9.Nothing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownMessageType))

	exp, err := NewAvro(&buf, nil, "DataModel.CameraRunHeader")
	require.NoError(t, err)

	err = exp.Write(record.NewBuilder("R1.CameraEvent").Build())
	assert.True(t, errors.IsType(err, errors.ErrorTypeTableTypeMismatch))

	err = exp.Write(record.NewBuilder("DataModel.CameraRunHeader").Set("cameraVersion", record.Int(1)).Build())
	assert.True(t, errors.IsType(err, errors.ErrorTypeFieldTypeMismatch))

	bad := record.NewBuilder("DataModel.CameraEvent").Set("eventType", record.Enum("NOPE")).Build()
	evExp, err := NewAvro(&buf, nil, "DataModel.CameraEvent")
	require.NoError(t, err)
	assert.True(t, errors.IsType(evExp.Write(bad), errors.ErrorTypeUnknownEnumValue))
	assert.Equal(t, 0, evExp.Count())
}

func TestAvroSchemaDefinesNamesOnce(t *testing.T) {
	s, err := AvroSchema(schema.NewRegistry(nil, testutil.TestLogger(t)), "R1.CameraEvent")
	require.NoError(t, err)
	_, err = goavro.NewCodec(s)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count([]byte(s), []byte(`"name":"CoreMessages.AnyArray","type":"record"`))+
		bytes.Count([]byte(s), []byte(`"type":"record","name":"CoreMessages.AnyArray"`)))
}
