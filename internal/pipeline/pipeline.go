// Package pipeline runs whole-container operations: listing tables, dumping
// a table through an exporter, copying tables between containers, merging
// tables of several containers by sequence key and summarizing DigiCam
// events.
//
// # Basic Usage
//
//	p := pipeline.New(zfile.NewDriver(nil, logger), nil, pipeline.DefaultOptions(), logger)
//	stats, err := p.Merge(ctx, []string{"a.zfits", "b.zfits"}, "merged.zfits")
//
// Every operation reads in one goroutine and writes in another, records a
// span and reports rows and latency to the metrics package.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/config"
	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/export"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/merge"
	"github.com/ajitpratap0/zfits/pkg/metrics"
	"github.com/ajitpratap0/zfits/pkg/observability"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/table"
	"github.com/ajitpratap0/zfits/pkg/trigger"
	"github.com/ajitpratap0/zfits/pkg/writer"
)

// Options control table selection and buffering.
type Options struct {
	Table       string        // table read by Dump, Merge and Events
	KeyFields   []string      // merge sequence-key fields, tried in order
	BufferSize  int           // rows in flight between reader and writer
	LogInterval time.Duration // progress log interval
	Trigger     *trigger.Transform
	RunID       int // run id stamped on DigiCam events
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		Table:       "Events",
		KeyFields:   merge.DefaultKeyFields,
		BufferSize:  256,
		LogInterval: 30 * time.Second,
	}
}

// OptionsFromConfig derives options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	opts.Table = cfg.Reader.Table
	opts.KeyFields = cfg.Reader.KeyFields
	t, err := cfg.Trigger.Transform()
	if err != nil {
		return Options{}, err
	}
	opts.Trigger = t
	return opts, nil
}

// Stats summarizes one finished operation.
type Stats struct {
	Operation   string
	Table       string
	MessageType string
	Inputs      int
	Rows        int64
	Duration    time.Duration
}

// Pipeline runs operations against containers opened through one driver.
type Pipeline struct {
	driver container.Driver
	codec  *record.Codec
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline. A nil codec uses one over the default catalog.
func New(driver container.Driver, codec *record.Codec, opts Options, log *zap.Logger) *Pipeline {
	log = logger.OrDefault(log, "pipeline")
	if codec == nil {
		codec = record.NewCodec(nil, log)
	}
	if len(opts.KeyFields) == 0 {
		opts.KeyFields = merge.DefaultKeyFields
	}
	return &Pipeline{driver: driver, codec: codec, opts: opts, logger: log}
}

// Options returns the pipeline options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// run wraps an operation with a span, a latency timer and progress logging.
func (p *Pipeline) run(ctx context.Context, op string, fn func(context.Context, *observability.Span, *observability.Progress, *Stats) error) (Stats, error) {
	stats := Stats{Operation: op}
	ctx, span := observability.StartSpan(ctx, op)
	timer := metrics.NewTimer(op)
	progress := observability.NewProgress(p.logger, op)
	if p.opts.LogInterval > 0 {
		progress.SetLogInterval(p.opts.LogInterval)
	}

	err := fn(ctx, span, progress, &stats)

	stats.Rows = progress.Rows()
	stats.Duration = timer.ObserveDuration()
	span.SetAttribute("rows", stats.Rows)
	span.SetAttribute("table", stats.Table)
	span.SetAttribute("message_type", stats.MessageType)
	span.End(err)
	if err != nil {
		p.logger.Error("operation failed", zap.String("operation", op), zap.Int64("rows", stats.Rows), zap.Error(err))
		return stats, err
	}
	progress.Done()
	return stats, nil
}

// Tables lists the binary tables of the container at path.
func (p *Pipeline) Tables(ctx context.Context, path string) ([]container.TableDescriptor, error) {
	_, span := observability.StartSpan(ctx, "tables")
	span.SetAttribute("path", path)
	descs, err := p.driver.ListTables(path)
	span.End(err)
	return descs, err
}

// Dump writes every row of the configured table of path to w in format.
func (p *Pipeline) Dump(ctx context.Context, path string, format export.Format, w io.Writer) (Stats, error) {
	return p.run(ctx, "dump", func(ctx context.Context, span *observability.Span, progress *observability.Progress, stats *Stats) error {
		span.SetAttribute("path", path)
		span.SetAttribute("format", string(format))
		stats.Inputs = 1

		f, t, err := p.openTable(path, p.opts.Table)
		if err != nil {
			return err
		}
		defer f.Close()
		stats.Table, stats.MessageType = t.Name(), t.MessageType()

		exp, err := export.New(format, w, p.codec.Registry(), t.MessageType())
		if err != nil {
			return err
		}
		err = stream(ctx, p.opts.BufferSize, t.Next, func(r *record.Record) error {
			if err := exp.Write(r); err != nil {
				progress.Error()
				return err
			}
			progress.Row(0)
			return nil
		})
		if cerr := exp.Close(); err == nil {
			err = cerr
		}
		return err
	})
}

// Copy copies every table of in into a new container at out. Rows are
// copied as stored; each table gets its own writer, so output tables are
// named by message type.
func (p *Pipeline) Copy(ctx context.Context, in, out string) (Stats, error) {
	return p.run(ctx, "copy", func(ctx context.Context, span *observability.Span, progress *observability.Progress, stats *Stats) error {
		span.SetAttribute("path", in)
		span.SetAttribute("output", out)
		stats.Inputs = 1

		f, err := table.Open(p.driver, in, p.codec, p.logger)
		if err != nil {
			return err
		}
		defer f.Close()

		sink, err := p.driver.CreateSink(out)
		if err != nil {
			return err
		}
		shared := &sharedSink{Sink: sink}

		for _, t := range f.Tables() {
			if err := p.copyTable(ctx, t, shared, progress); err != nil {
				p.abort(sink, out)
				return err
			}
			stats.Table, stats.MessageType = t.Name(), t.MessageType()
		}
		return sink.Close()
	})
}

func (p *Pipeline) copyTable(ctx context.Context, t *table.Table, sink container.Sink, progress *observability.Progress) error {
	t.Rewind()
	wr := writer.New(sink, p.codec, p.logger)
	messageType := t.MessageType()

	err := stream(ctx, p.opts.BufferSize, t.NextRaw, func(row []byte) error {
		if err := wr.AppendRaw(messageType, row); err != nil {
			progress.Error()
			return err
		}
		progress.Row(len(row))
		return nil
	})
	if err != nil {
		return err
	}
	if wr.Rows() == 0 {
		p.logger.Warn("table is empty, not copied", zap.String("path", t.Path()), zap.String("table", t.Name()))
	} else {
		p.logger.Debug("copied table",
			zap.String("table", t.Name()),
			zap.String("output_table", wr.Table()),
			zap.Int("rows", wr.Rows()))
	}
	return wr.Close()
}

// Merge merges the configured table of every input by sequence key and
// writes the result as one table of a new container at out.
func (p *Pipeline) Merge(ctx context.Context, inputs []string, out string) (Stats, error) {
	return p.run(ctx, "merge", func(ctx context.Context, span *observability.Span, progress *observability.Progress, stats *Stats) error {
		span.SetAttribute("inputs", inputs)
		span.SetAttribute("output", out)

		m, closeAll, err := p.openMerge(inputs, stats)
		if err != nil {
			return err
		}
		defer closeAll()

		sink, err := p.driver.CreateSink(out)
		if err != nil {
			return err
		}
		wr := writer.New(sink, p.codec, p.logger)
		err = stream(ctx, p.opts.BufferSize, m.Next, func(r *record.Record) error {
			if err := wr.Append(r); err != nil {
				progress.Error()
				return err
			}
			progress.Row(0)
			return nil
		})
		if err != nil {
			p.abort(sink, out)
			return err
		}
		return wr.Close()
	})
}

// MergeExport merges like Merge but writes the rows to w in format.
func (p *Pipeline) MergeExport(ctx context.Context, inputs []string, format export.Format, w io.Writer) (Stats, error) {
	return p.run(ctx, "merge", func(ctx context.Context, span *observability.Span, progress *observability.Progress, stats *Stats) error {
		span.SetAttribute("inputs", inputs)
		span.SetAttribute("format", string(format))

		m, closeAll, err := p.openMerge(inputs, stats)
		if err != nil {
			return err
		}
		defer closeAll()

		exp, err := export.New(format, w, p.codec.Registry(), stats.MessageType)
		if err != nil {
			return err
		}
		err = stream(ctx, p.opts.BufferSize, m.Next, func(r *record.Record) error {
			if err := exp.Write(r); err != nil {
				progress.Error()
				return err
			}
			progress.Row(0)
			return nil
		})
		if cerr := exp.Close(); err == nil {
			err = cerr
		}
		return err
	})
}

// openMerge opens the configured table of every input. All tables must
// hold the same message type.
func (p *Pipeline) openMerge(inputs []string, stats *Stats) (*merge.Merge, func(), error) {
	if len(inputs) == 0 {
		return nil, nil, errors.New(errors.ErrorTypeValidation, "merge needs at least one input")
	}

	var files []*table.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	sources := make([]merge.Source, 0, len(inputs))
	for _, path := range inputs {
		f, t, err := p.openTable(path, p.opts.Table)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)

		if stats.MessageType == "" {
			stats.Table, stats.MessageType = t.Name(), t.MessageType()
		} else if !sameType(p.codec, stats.MessageType, t.MessageType()) {
			closeAll()
			return nil, nil, errors.Newf(errors.ErrorTypeTableTypeMismatch,
				"%s holds %s, other inputs hold %s", path, t.MessageType(), stats.MessageType)
		}
		sources = append(sources, t)
	}
	stats.Inputs = len(inputs)

	m, err := merge.New(sources, merge.FieldKey(p.opts.KeyFields...), p.logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	for key, values := range m.Headers() {
		if key == container.KeyRows {
			p.logger.Debug("merging", zap.String("table", stats.Table), zap.Any("rows", values), zap.Int("total", m.Len()))
		}
	}
	return m, closeAll, nil
}

func (p *Pipeline) openTable(path, name string) (*table.File, *table.Table, error) {
	f, err := table.Open(p.driver, path, p.codec, p.logger)
	if err != nil {
		return nil, nil, err
	}
	t, err := f.Table(name)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, t, nil
}

// sameType reports whether a and b name the same catalog message.
func sameType(codec *record.Codec, a, b string) bool {
	cat := codec.Registry().Catalog()
	ma, err := cat.Lookup(a)
	if err != nil {
		return false
	}
	mb, err := cat.Lookup(b)
	if err != nil {
		return false
	}
	return ma.FullName() == mb.FullName()
}

// abort removes a partly written output so a failed run leaves nothing
// that reads as a complete container.
func (p *Pipeline) abort(sink container.Sink, out string) {
	if err := sink.Abort(); err != nil {
		p.logger.Warn("failed to discard partial output", zap.String("path", out), zap.Error(err))
		return
	}
	p.logger.Warn("discarded partial output", zap.String("path", out))
}

// sharedSink lets several writers append tables to one sink. Closing a
// writer does not close the sink.
type sharedSink struct {
	container.Sink
}

func (sharedSink) Close() error { return nil }
