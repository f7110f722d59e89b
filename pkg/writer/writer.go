// Package writer appends records to one output table. The table's message
// type is taken from the first append and locked for the writer's lifetime.
package writer

import (
	"sync"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/metrics"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// Writer is safe for concurrent use; appends are serialized.
type Writer struct {
	mu      sync.Mutex
	sink    container.Sink
	codec   *record.Codec
	catalog *catalog.Catalog
	logger  *zap.Logger

	messageType string // empty until the first successful append
	table       string
	typeTag     string
	rows        int
	closed      bool
}

// New creates an unlocked writer over sink. A nil codec uses a fresh one
// over the default catalog.
func New(sink container.Sink, codec *record.Codec, log *zap.Logger) *Writer {
	log = logger.OrDefault(log, "writer")
	if codec == nil {
		codec = record.NewCodec(nil, log)
	}
	return &Writer{
		sink:    sink,
		codec:   codec,
		catalog: codec.Registry().Catalog(),
		logger:  log,
	}
}

// Append encodes r and appends it.
func (w *Writer) Append(r *record.Record) error {
	return w.append(r.TypeName(), func() ([]byte, error) {
		data, err := w.codec.Marshal(r)
		if err != nil {
			metrics.CodecErrors.WithLabelValues("encode", string(errors.TypeOf(err))).Inc()
		}
		return data, err
	})
}

// AppendMessage serializes a catalog message and appends it.
func (w *Writer) AppendMessage(m proto.Message) error {
	typeName := string(m.ProtoReflect().Descriptor().FullName())
	return w.append(typeName, func() ([]byte, error) {
		data, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize message").WithDetail("type", typeName)
		}
		return data, nil
	})
}

// AppendRaw appends an already serialized row of typeName unchanged.
func (w *Writer) AppendRaw(typeName string, data []byte) error {
	return w.append(typeName, func() ([]byte, error) { return data, nil })
}

func (w *Writer) append(typeName string, serialize func() ([]byte, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New(errors.ErrorTypeWriterClosed, "append after close")
	}
	md, err := w.catalog.Lookup(typeName)
	if err != nil {
		return err
	}
	name := string(md.FullName())
	if w.messageType != "" && name != w.messageType {
		metrics.TypeMismatches.Inc()
		return errors.Newf(errors.ErrorTypeTableTypeMismatch, "table %s holds %s, cannot append %s", w.table, w.messageType, name).
			WithDetail("table", w.table)
	}

	data, err := serialize()
	if err != nil {
		return err
	}
	if w.messageType == "" {
		if err := w.lock(name); err != nil {
			return err
		}
	}
	if err := w.sink.AppendRow(data); err != nil {
		return err
	}
	w.rows++
	metrics.RowsWritten.WithLabelValues(w.table, w.messageType).Inc()
	return nil
}

// lock declares the output table for name. On failure the writer stays
// unlocked.
func (w *Writer) lock(name string) error {
	table, err := catalog.TableName(name)
	if err != nil {
		return err
	}
	tag, err := catalog.TypeTag(name)
	if err != nil {
		return err
	}
	if err := w.sink.DeclareTable(table, tag); err != nil {
		return err
	}
	w.messageType, w.table, w.typeTag = name, table, tag
	w.logger.Debug("table locked",
		zap.String("table", table),
		zap.String("message_type", name),
		zap.String("type_tag", tag))
	return nil
}

// MessageType returns the locked message type, or "" before the first append.
func (w *Writer) MessageType() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.messageType
}

// Table returns the output table name, or "" before the first append.
func (w *Writer) Table() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.table
}

// TypeTag returns the output type tag, or "" before the first append.
func (w *Writer) TypeTag() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.typeTag
}

// Rows returns the number of appended rows.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close closes the sink. Further calls return nil.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Debug("writer closed", zap.String("table", w.table), zap.Int("rows", w.rows))
	return w.sink.Close()
}
