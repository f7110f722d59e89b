package digicam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/testutil"
	"github.com/ajitpratap0/zfits/pkg/trigger"
)

func waveforms(ids []uint16, samples []int16, baselines []float32) *record.Record {
	b := record.NewBuilder("DataModel.WaveFormData").
		Set("pixelsIndices", record.ArrayOf(ids)).
		Set("samples", record.ArrayOf(samples))
	if baselines != nil {
		b.Set("baselines", record.ArrayOf(baselines))
	}
	return b.Build()
}

func cameraEvent(number uint32, wf *record.Record, patch7 []uint8) *record.Record {
	b := record.NewBuilder("DataModel.CameraEvent").
		Set("telescopeID", record.Int(1)).
		Set("eventNumber", record.Uint(number)).
		Set("arrayEvtNum", record.Int(9)).
		Set("eventType", record.Enum("PHYSICAL")).
		Set("event_type", record.Uint(2)).
		Set("num_gains", record.Int(1)).
		Set("head", record.NewBuilder("DataModel.EventHeader").Set("numGainChannels", record.Int(1)).Build()).
		Set("trig", record.NewBuilder("DataModel.TriggerInfo").
			Set("timeSec", record.Uint(3)).
			Set("timeNanoSec", record.Uint(5)).Build()).
		Set("local_time_sec", record.Uint(4)).
		Set("local_time_nanosec", record.Uint(6)).
		Set("pixels_flags", record.ArrayOf([]uint16{20, 0, 10})).
		Set("hiGain", record.NewBuilder("DataModel.PixelsChannel").Set("waveforms", wf).Build())
	if patch7 != nil {
		b.Set("trigger_output_patch7", record.ArrayOf(patch7))
	}
	return b.Build()
}

func TestDecodeSortsByPixelID(t *testing.T) {
	d := NewDecoder(nil, 12, testutil.TestLogger(t))

	patch7 := make([]uint8, 54)
	patch7[0] = 1 << 5 // hardware patch 5, sample 0
	wf := waveforms([]uint16{2, 0, 1}, []int16{20, 21, 0, 1, 10, 11}, []float32{2.5, 0.5, 1.5})

	e, err := d.Decode(cameraEvent(7, wf, patch7))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0}, d.SortIDs())
	assert.Equal(t, 12, e.RunID)
	assert.Equal(t, int64(1), e.TelescopeID)
	assert.Equal(t, uint64(7), e.EventNumber)
	assert.Equal(t, int64(9), e.EventNumberArray)
	assert.Equal(t, "PHYSICAL", e.ArrayEventType)
	assert.Equal(t, uint64(2), e.CameraEventType)
	assert.Equal(t, int64(1), e.NumChannels)
	assert.Equal(t, uint64(3_000_000_005), e.CentralEventGPSTime)
	assert.Equal(t, uint64(4_000_000_006), e.LocalTime)

	assert.Equal(t, 3, e.NumPixels)
	assert.Equal(t, 2, e.NumSamples)
	assert.Equal(t, []int64{2, 0, 1}, e.PixelIDs)
	assert.Equal(t, [][]int64{{0, 1}, {10, 11}, {20, 21}}, e.ADCSamples)
	assert.Equal(t, []int64{0, 10, 20}, e.PixelFlags)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, e.Baseline)

	require.Equal(t, trigger.Patches, e.TriggerOutputPatch7.Rows)
	require.Equal(t, 1, e.TriggerOutputPatch7.Cols)
	row := trigger.Default().OutputRow(5)
	for i := 0; i < trigger.Patches; i++ {
		want := uint8(0)
		if i == row {
			want = 1
		}
		assert.Equal(t, want, e.TriggerOutputPatch7.At(i, 0), "row %d", i)
	}
	assert.Equal(t, 0, e.TriggerInputTraces.Cols)
}

func TestSortOrderFromFirstEvent(t *testing.T) {
	d := NewDecoder(nil, 0, testutil.TestLogger(t))

	_, err := d.Decode(cameraEvent(1, waveforms([]uint16{2, 0, 1}, []int16{2, 0, 1}, []float32{2, 0, 1}), nil))
	require.NoError(t, err)

	// Later events reuse the first order even when their ids differ.
	e, err := d.Decode(cameraEvent(2, waveforms([]uint16{0, 1, 2}, []int16{5, 6, 7}, []float32{5, 6, 7}), nil))
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{6}, {7}, {5}}, e.ADCSamples)

	_, err = d.Decode(cameraEvent(3, waveforms([]uint16{0, 1}, []int16{5, 6}, nil), nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidShape))
}

func TestMissingBaselineIsNaN(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDecoder(nil, 4, zap.New(core))

	e, err := d.Decode(cameraEvent(8, waveforms([]uint16{1, 0, 2}, []int16{1, 0, 2}, nil), nil))
	require.NoError(t, err)
	require.Len(t, e.Baseline, 3)
	for _, b := range e.Baseline {
		assert.True(t, math.IsNaN(b))
	}
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, uint64(8), logs.All()[0].ContextMap()["event_number"])
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(nil, 0, testutil.TestLogger(t))

	_, err := d.Decode(record.NewBuilder("R1.CameraEvent").Build())
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownMessageType))

	_, err = d.Decode(cameraEvent(1, waveforms([]uint16{0, 1}, []int16{1, 2, 3}, nil), nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidShape))

	d = NewDecoder(nil, 0, testutil.TestLogger(t))
	_, err = d.Decode(cameraEvent(1, waveforms([]uint16{0, 1, 2}, []int16{1, 2, 3}, nil), []uint8{1, 2, 3}))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidShape))
}

type rows []*record.Record

func (r *rows) Next() (*record.Record, bool, error) {
	if len(*r) == 0 {
		return nil, false, nil
	}
	head := (*r)[0]
	*r = (*r)[1:]
	return head, true, nil
}

func TestAll(t *testing.T) {
	wf := waveforms([]uint16{1, 0}, []int16{1, 0}, []float32{1, 0})
	src := rows{cameraEvent(1, wf, nil), cameraEvent(2, wf, nil)}

	var numbers []uint64
	for e, err := range NewDecoder(nil, 0, testutil.TestLogger(t)).All(&src) {
		require.NoError(t, err)
		numbers = append(numbers, e.EventNumber)
	}
	assert.Equal(t, []uint64{1, 2}, numbers)
}
