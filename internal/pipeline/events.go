package pipeline

import (
	"context"
	"io"

	"github.com/ajitpratap0/zfits/pkg/digicam"
	"github.com/ajitpratap0/zfits/pkg/json"
	"github.com/ajitpratap0/zfits/pkg/observability"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// EventSummary is the per-event line written by Events.
type EventSummary struct {
	RunID           int    `json:"run_id"`
	TelescopeID     int64  `json:"telescope_id"`
	EventNumber     uint64 `json:"event_number"`
	GPSTime         uint64 `json:"gps_time_ns"`
	LocalTime       uint64 `json:"local_time_ns"`
	CameraEventType uint64 `json:"camera_event_type"`
	ArrayEventType  string `json:"array_event_type"`
	NumPixels       int    `json:"num_pixels"`
	NumSamples      int    `json:"num_samples"`
	TriggeredPatch7 int    `json:"triggered_patches_7"`
}

func summarize(e *digicam.Event) EventSummary {
	s := EventSummary{
		RunID:           e.RunID,
		TelescopeID:     e.TelescopeID,
		EventNumber:     e.EventNumber,
		GPSTime:         e.CentralEventGPSTime,
		LocalTime:       e.LocalTime,
		CameraEventType: e.CameraEventType,
		ArrayEventType:  e.ArrayEventType,
		NumPixels:       e.NumPixels,
		NumSamples:      e.NumSamples,
	}
	m := e.TriggerOutputPatch7
	for i := 0; i < m.Rows; i++ {
		for _, v := range m.Row(i) {
			if v != 0 {
				s.TriggeredPatch7++
				break
			}
		}
	}
	return s
}

// Events decodes the configured table of path as DigiCam camera events and
// writes one JSON summary line per event to w.
func (p *Pipeline) Events(ctx context.Context, path string, w io.Writer) (Stats, error) {
	return p.run(ctx, "events", func(ctx context.Context, span *observability.Span, progress *observability.Progress, stats *Stats) error {
		span.SetAttribute("path", path)
		stats.Inputs = 1

		f, t, err := p.openTable(path, p.opts.Table)
		if err != nil {
			return err
		}
		defer f.Close()
		stats.Table, stats.MessageType = t.Name(), t.MessageType()

		dec := digicam.NewDecoder(p.opts.Trigger, p.opts.RunID, p.logger)
		enc := json.NewStreamingEncoder(w, false)
		err = stream(ctx, p.opts.BufferSize, t.Next, func(r *record.Record) error {
			e, err := dec.Decode(r)
			if err != nil {
				progress.Error()
				return err
			}
			if err := enc.Encode(summarize(e)); err != nil {
				return err
			}
			progress.Row(0)
			return nil
		})
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		return err
	})
}
