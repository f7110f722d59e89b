package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/errors"
)

func newCodec(t *testing.T) *Codec {
	return NewCodec(nil, zaptest.NewLogger(t))
}

func runHeader() *Record {
	return NewBuilder("DataModel.CameraRunHeader").
		Set("telescopeID", Int(1)).
		Set("dateMJD", Uint(58000)).
		Set("runNumber", Uint(42)).
		Set("numTraces", Uint(50)).
		Set("numGainChannels", Int(2)).
		Set("cameraVersion", String("digicam-v2")).
		Set("isSimulation", Bool(true)).
		Build()
}

func pixelsChannel() *Record {
	waveforms := NewBuilder("DataModel.WaveFormData").
		Set("samples", ArrayOf([]int16{10, -3, 4095, 7})).
		Set("pixelsIndices", ArrayOf([]uint16{0, 1})).
		Set("firstSplIdx", ArrayOf([]int16{-1})).
		Set("num_samples", Int(2)).
		Set("baselines", ArrayOf([]float32{200.5, 201})).
		Set("peak_time_pos", ArrayOf([]float32{12.25})).
		Set("time_over_threshold", ArrayOf([]float32{3})).
		Build()
	integrals := NewBuilder("DataModel.IntegralData").
		Set("gains", ArrayOf([]int32{1000, 2000})).
		Set("maximumTimes", ArrayOf([]uint8{3, 4})).
		Set("tailTimes", ArrayOf([]uint8{5})).
		Set("raiseTimes", ArrayOf([]uint8{6})).
		Set("pixelsIndices", ArrayOf([]uint16{9, 10})).
		Set("firstSplIdx", ArrayOf([]int16{0, 1})).
		Build()
	return NewBuilder("DataModel.PixelsChannel").
		Set("waveforms", waveforms).
		Set("integrals", integrals).
		Build()
}

func TestRoundTrip(t *testing.T) {
	c := newCodec(t)

	for _, rec := range []*Record{runHeader(), pixelsChannel()} {
		t.Run(rec.TypeName(), func(t *testing.T) {
			data, err := c.Marshal(rec)
			require.NoError(t, err)

			got, err := c.Unmarshal(rec.TypeName(), data)
			require.NoError(t, err)
			assert.True(t, rec.Equal(got), "want %s\ngot  %s", rec, got)

			msg, err := c.Encode(rec, "")
			require.NoError(t, err)
			direct, err := c.Decode(msg)
			require.NoError(t, err)
			assert.True(t, rec.Equal(direct))
		})
	}
}

func TestRoundTripFieldOrderIrrelevant(t *testing.T) {
	c := newCodec(t)
	reordered := NewBuilder("DataModel.TriggerInfo").
		Set("timeNanoSec", Uint(500)).
		Set("timeSec", Uint(1500000000)).
		Build()

	data, err := c.Marshal(reordered)
	require.NoError(t, err)
	got, err := c.Unmarshal("DataModel.TriggerInfo", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"timeSec", "timeNanoSec"}, got.Fields())
	assert.True(t, reordered.Equal(got))
}

func TestDecodeDefaults(t *testing.T) {
	c := newCodec(t)
	rec, err := c.Unmarshal("L0.CameraEvent", nil)
	require.NoError(t, err)

	assert.Equal(t, "DataModel.CameraEvent", rec.TypeName())
	assert.Equal(t, 17, rec.Len())
	assert.Equal(t, "telescopeID", rec.Fields()[0])

	label, ok := rec.Enum("eventType")
	assert.True(t, ok)
	assert.Equal(t, "NONE", label)

	n, ok := rec.Int("head.numGainChannels")
	assert.True(t, ok)
	assert.Equal(t, int64(-1), n)

	samples, ok := rec.Array("hiGain.waveforms.samples")
	require.True(t, ok)
	assert.Equal(t, anyarray.None, samples.Type())
	assert.Equal(t, 0, samples.Len())
}

func TestEncodeOmitsDefaults(t *testing.T) {
	c := newCodec(t)
	rec := NewBuilder("DataModel.CameraRunHeader").
		Set("numGainChannels", Int(-1)).
		Set("runNumber", Uint(0)).
		Set("cameraVersion", String("")).
		Build()

	data, err := c.Marshal(rec)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = c.Marshal(NewBuilder("DataModel.CameraRunHeader").Set("numGainChannels", Int(0)).Build())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRoundTripFloatEdges(t *testing.T) {
	c := newCodec(t)
	negZero := math.Copysign(0, -1)

	tests := map[string]*Record{
		"float32 exact": NewBuilder("R1.CameraEvent").Set("calibration_gain", Float(0.5)).Build(),
		"float nan":     NewBuilder("R1.CameraEvent").Set("calibration_gain", Float(math.NaN())).Build(),
		"float inf":     NewBuilder("R1.CameraEvent").Set("calibration_gain", Float(math.Inf(-1))).Build(),
		"float -0":      NewBuilder("R1.CameraEvent").Set("calibration_gain", Float(negZero)).Build(),
		"double -0":     NewBuilder("DataModel.CameraEvent").Set("dateMJD", Float(negZero)).Build(),
		"double":        NewBuilder("DataModel.CameraEvent").Set("dateMJD", Float(0.1)).Build(),
	}
	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := c.Marshal(rec)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			got, err := c.Unmarshal(rec.TypeName(), data)
			require.NoError(t, err)
			for _, f := range rec.Fields() {
				want, _ := rec.Get(f)
				v, ok := got.Get(f)
				require.True(t, ok, f)
				assert.True(t, Equal(want, v), "%s: want %v, got %v", f, want, v)
			}
		})
	}
}

func TestEncodeEmptyNestedIsCleared(t *testing.T) {
	c := newCodec(t)
	rec := NewBuilder("DataModel.CameraEvent").
		Set("trig", NewBuilder("DataModel.TriggerInfo").Set("timeSec", Uint(0)).Build()).
		Build()

	msg, err := c.Encode(rec, "")
	require.NoError(t, err)
	assert.False(t, msg.Has(msg.Descriptor().Fields().ByName("trig")))
}

func TestEncodeErrors(t *testing.T) {
	c := newCodec(t)

	tests := []struct {
		name    string
		rec     *Record
		errType errors.ErrorType
	}{
		{
			name:    "unknown field",
			rec:     NewBuilder("R1.CameraEvent").Set("bogus", Int(1)).Build(),
			errType: errors.ErrorTypeUnknownField,
		},
		{
			name:    "unknown enum label",
			rec:     NewBuilder("DataModel.CameraEvent").Set("eventType", Enum("SOMETIMES")).Build(),
			errType: errors.ErrorTypeUnknownEnumValue,
		},
		{
			name:    "string into integer",
			rec:     NewBuilder("R1.CameraEvent").Set("event_id", String("7")).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name:    "negative into unsigned",
			rec:     NewBuilder("R1.CameraEvent").Set("event_id", Int(-7)).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name:    "overflowing int32",
			rec:     NewBuilder("DataModel.CameraEvent").Set("telescopeID", Int(1<<40)).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name:    "double precision into float",
			rec:     NewBuilder("R1.CameraEvent").Set("calibration_gain", Float(0.1)).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name:    "scalar into array",
			rec:     NewBuilder("R1.CameraEvent").Set("waveform", Int(1)).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name: "nested record of wrong type",
			rec: NewBuilder("R1.CameraEvent").
				Set("lstcam", NewBuilder("R1_DigiCam.DigiCamEvent").Build()).Build(),
			errType: errors.ErrorTypeFieldTypeMismatch,
		},
		{
			name:    "unknown type",
			rec:     NewBuilder("R9.CameraEvent").Build(),
			errType: errors.ErrorTypeUnknownMessageType,
		},
		{
			name: "unknown field in nested record",
			rec: NewBuilder("DataModel.CameraEvent").
				Set("trig", NewBuilder("DataModel.TriggerInfo").Set("when", Uint(1)).Build()).Build(),
			errType: errors.ErrorTypeUnknownField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Encode(tt.rec, "")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestEncodeAsOtherType(t *testing.T) {
	c := newCodec(t)
	_, err := c.Encode(runHeader(), "R1.CameraEvent")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFieldTypeMismatch))

	// untyped records take the target type
	untyped := NewBuilder("").Set("event_id", Uint(9)).Build()
	msg, err := c.Encode(untyped, "R1.CameraEvent")
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("R1.CameraEvent"), msg.Descriptor().FullName())
}

func TestDecodeUnknownEnumValue(t *testing.T) {
	c := newCodec(t)
	msg, err := catalog.Default().NewMessage("DataModel.CameraEvent")
	require.NoError(t, err)
	msg.Set(msg.Descriptor().Fields().ByName("eventType"), protoreflect.ValueOfEnum(42))

	_, err = c.Decode(msg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownEnumValue))
}

func TestDecodeArrayErrors(t *testing.T) {
	c := newCodec(t)

	build := func(tag anyarray.Type, data []byte) protoreflect.Message {
		msg, err := catalog.Default().NewMessage("R1.CameraEvent")
		require.NoError(t, err)
		sub := msg.Mutable(msg.Descriptor().Fields().ByName("pixel_status")).Message()
		fields := sub.Descriptor().Fields()
		sub.Set(fields.ByName("type"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(tag)))
		sub.Set(fields.ByName("data"), protoreflect.ValueOfBytes(data))
		return msg
	}

	_, err := c.Decode(build(anyarray.None, []byte{1}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeUndefinedArrayType))

	_, err = c.Decode(build(anyarray.Bool, []byte{1}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedArrayType))

	rec, err := c.Decode(build(anyarray.Uint8, []byte{4, 5}))
	require.NoError(t, err)
	status, ok := rec.Array("pixel_status")
	require.True(t, ok)
	values, ok := anyarray.Values[uint8](status)
	require.True(t, ok)
	assert.Equal(t, []uint8{4, 5}, values)
}

func TestUnmarshalGarbage(t *testing.T) {
	c := newCodec(t)
	_, err := c.Unmarshal("R1.CameraEvent", []byte{0xff, 0xff, 0xff})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	_, err = c.Unmarshal("R1.Missing", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownMessageType))
}

func TestUnmarshalFromProtoMarshal(t *testing.T) {
	msg, err := catalog.Default().NewMessage("R1.CameraEvent")
	require.NoError(t, err)
	fields := msg.Descriptor().Fields()
	msg.Set(fields.ByName("event_id"), protoreflect.ValueOfUint64(97750287))
	msg.Set(fields.ByName("calibration_gain"), protoreflect.ValueOfFloat32(0.5))
	msg.Set(fields.ByName("num_channels"), protoreflect.ValueOfInt64(-2))
	data, err := proto.Marshal(msg)
	require.NoError(t, err)

	rec, err := newCodec(t).Unmarshal("R1.CameraEvent", data)
	require.NoError(t, err)
	id, _ := rec.Uint("event_id")
	assert.Equal(t, uint64(97750287), id)
	gain, _ := rec.Float("calibration_gain")
	assert.Equal(t, 0.5, gain)
	ch, _ := rec.Int("num_channels")
	assert.Equal(t, int64(-2), ch)
}
