// Package digicam is a flattened view of DigiCam camera events stored as
// DataModel.CameraEvent rows: pixel data sorted by pixel id, timestamps in
// nanoseconds and trigger patches decoded into hardware order.
package digicam

import (
	"iter"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/trigger"
)

// MessageType is the row type the view reads.
const MessageType = "DataModel.CameraEvent"

// Event is one decoded DigiCam event. Per-pixel slices are in ascending
// pixel id order.
type Event struct {
	RunID               int
	TelescopeID         int64
	EventNumber         uint64
	EventNumberArray    int64
	CentralEventGPSTime uint64 // ns
	LocalTime           uint64 // ns
	CameraEventType     uint64
	ArrayEventType      string
	NumGains            int64
	NumChannels         int64
	NumPixels           int
	NumSamples          int

	PixelIDs   []int64 // as stored, unsorted
	PixelFlags []int64
	ADCSamples [][]int64 // NumPixels x NumSamples
	Baseline   []float64

	TriggerInputTraces   trigger.Matrix
	TriggerOutputPatch7  trigger.Matrix
	TriggerOutputPatch19 trigger.Matrix
}

// Decoder turns CameraEvent records into Events. The pixel sort order is
// taken from the first event and reused for every later one.
type Decoder struct {
	transform *trigger.Transform
	runID     int
	logger    *zap.Logger

	once    sync.Once
	sortIDs []int
}

// NewDecoder creates a decoder. A nil transform uses the default patch layout.
func NewDecoder(t *trigger.Transform, runID int, log *zap.Logger) *Decoder {
	if t == nil {
		t = trigger.Default()
	}
	return &Decoder{transform: t, runID: runID, logger: logger.OrDefault(log, "digicam")}
}

// SortIDs returns the pixel sort order, nil before the first Decode.
func (d *Decoder) SortIDs() []int {
	return d.sortIDs
}

// Decode builds the view of r.
func (d *Decoder) Decode(r *record.Record) (*Event, error) {
	if r.TypeName() != MessageType && r.TypeName() != "L0.CameraEvent" {
		return nil, errors.Newf(errors.ErrorTypeUnknownMessageType, "digicam view needs %s, got %s", MessageType, r.TypeName())
	}

	pixelIDs, err := ints(r, "hiGain.waveforms.pixelsIndices")
	if err != nil {
		return nil, err
	}
	d.once.Do(func() { d.sortIDs = argsort(pixelIDs) })
	n := len(pixelIDs)
	if len(d.sortIDs) != n {
		return nil, errors.Newf(errors.ErrorTypeInvalidShape, "event has %d pixels, the run started with %d", n, len(d.sortIDs))
	}

	e := &Event{RunID: d.runID, NumPixels: n, PixelIDs: pixelIDs}
	e.TelescopeID, _ = r.Int("telescopeID")
	e.EventNumber, _ = r.Uint("eventNumber")
	e.EventNumberArray, _ = r.Int("arrayEvtNum")
	e.CameraEventType, _ = r.Uint("event_type")
	e.ArrayEventType, _ = r.Enum("eventType")
	e.NumGains, _ = r.Int("num_gains")
	e.NumChannels, _ = r.Int("head.numGainChannels")
	e.CentralEventGPSTime = nanos(r, "trig.timeSec", "trig.timeNanoSec")
	e.LocalTime = nanos(r, "local_time_sec", "local_time_nanosec")

	samples, err := ints(r, "hiGain.waveforms.samples")
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if len(samples)%n != 0 {
			return nil, errors.Newf(errors.ErrorTypeInvalidShape, "%d samples do not split over %d pixels", len(samples), n)
		}
		e.NumSamples = len(samples) / n
	}
	e.ADCSamples = make([][]int64, n)
	for i, src := range d.sortIDs {
		e.ADCSamples[i] = samples[src*e.NumSamples : (src+1)*e.NumSamples]
	}

	flags, err := ints(r, "pixels_flags")
	if err != nil {
		return nil, err
	}
	if e.PixelFlags, err = d.sorted(flags, "pixels_flags"); err != nil {
		return nil, err
	}

	e.Baseline = d.baseline(r, e)

	if e.TriggerOutputPatch7, err = d.decodeTrigger(r, "trigger_output_patch7", d.transform.DecodeOutput); err != nil {
		return nil, err
	}
	if e.TriggerOutputPatch19, err = d.decodeTrigger(r, "trigger_output_patch19", d.transform.DecodeOutput); err != nil {
		return nil, err
	}
	if e.TriggerInputTraces, err = d.decodeTrigger(r, "trigger_input_traces", d.transform.DecodeInput); err != nil {
		return nil, err
	}
	return e, nil
}

// All decodes every remaining row of rows.
func (d *Decoder) All(rows interface {
	Next() (*record.Record, bool, error)
}) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			r, ok, err := rows.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			e, err := d.Decode(r)
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// baseline falls back to NaN for every pixel when the event carries no
// usable baselines.
func (d *Decoder) baseline(r *record.Record, e *Event) []float64 {
	a, _ := r.Array("hiGain.waveforms.baselines")
	values := anyarray.Float64s(a)
	if len(values) == e.NumPixels {
		out := make([]float64, e.NumPixels)
		for i, src := range d.sortIDs {
			out[i] = values[src]
		}
		return out
	}

	d.logger.Warn("could not read hiGain.waveforms.baselines",
		zap.Uint64("event_number", e.EventNumber),
		zap.Int("run_id", d.runID),
		zap.Int("baselines", len(values)),
		zap.Int("pixels", e.NumPixels))
	out := make([]float64, e.NumPixels)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func (d *Decoder) sorted(values []int64, field string) ([]int64, error) {
	if len(values) != len(d.sortIDs) {
		return nil, errors.Newf(errors.ErrorTypeInvalidShape, "%s has %d values for %d pixels", field, len(values), len(d.sortIDs))
	}
	out := make([]int64, len(values))
	for i, src := range d.sortIDs {
		out[i] = values[src]
	}
	return out, nil
}

func (d *Decoder) decodeTrigger(r *record.Record, field string, decode func([]uint8) (trigger.Matrix, error)) (trigger.Matrix, error) {
	a, _ := r.Array(field)
	var packed []uint8
	switch a.Type() {
	case anyarray.None:
	case anyarray.Uint8, anyarray.Int8:
		raw, err := a.Raw()
		if err != nil {
			return trigger.Matrix{}, err
		}
		packed = raw.Data
	default:
		return trigger.Matrix{}, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "%s holds %s, want bytes", field, a.Type())
	}
	m, err := decode(packed)
	if err != nil {
		return trigger.Matrix{}, errors.Wrap(err, errors.TypeOf(err), "failed to decode trigger field").WithDetail("field", field)
	}
	return m, nil
}

func ints(r *record.Record, path string) ([]int64, error) {
	a, ok := r.Array(path)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnknownField, "%s has no array %s", r.TypeName(), path)
	}
	out, ok := anyarray.Int64s(a)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "%s holds %s, want integers", path, a.Type())
	}
	return out, nil
}

func nanos(r *record.Record, secPath, nsPath string) uint64 {
	sec, _ := r.Uint(secPath)
	ns, _ := r.Uint(nsPath)
	return sec*1e9 + ns
}

func argsort(ids []int64) []int {
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ids[idx[a]] < ids[idx[b]] })
	return idx
}
