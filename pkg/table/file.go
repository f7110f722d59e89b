package table

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// File groups the binary tables of one container by extension name. All
// tables share one Reader.
type File struct {
	path   string
	cur    *cursor
	tables map[string]*Table
	order  []string
	logger *zap.Logger
}

// Open lists and opens every binary table of the container at path.
// Tables whose message type is not in the catalog are skipped with a
// warning.
func Open(d container.Driver, path string, codec *record.Codec, log *zap.Logger) (*File, error) {
	log = logger.OrDefault(log, "table")
	descs, err := d.ListTables(path)
	if err != nil {
		return nil, err
	}
	r, err := d.OpenReader(path)
	if err != nil {
		return nil, err
	}
	if codec == nil {
		codec = record.NewCodec(nil, log)
	}

	f := &File{
		path:   path,
		cur:    &cursor{reader: r},
		tables: make(map[string]*Table, len(descs)),
		logger: log,
	}
	for _, desc := range descs {
		t, err := newTable(f.cur, desc, codec, log)
		if err != nil {
			log.Warn("skipping table",
				zap.String("path", path),
				zap.String("table", desc.ExtName),
				zap.String("message_type", desc.MessageType),
				zap.Error(err))
			continue
		}
		if _, dup := f.tables[desc.ExtName]; dup {
			log.Warn("duplicate table name, keeping the first", zap.String("path", path), zap.String("table", desc.ExtName))
			continue
		}
		f.tables[desc.ExtName] = t
		f.order = append(f.order, desc.ExtName)
	}
	return f, nil
}

// Path returns the container path.
func (f *File) Path() string { return f.path }

// Names returns the table names in container order.
func (f *File) Names() []string {
	return append([]string(nil), f.order...)
}

// Table returns the named table.
func (f *File) Table(name string) (*Table, error) {
	t, ok := f.tables[name]
	if !ok {
		known := f.Names()
		sort.Strings(known)
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no table %q in %s", name, f.path).
			WithDetail("tables", known)
	}
	return t, nil
}

// Tables returns all tables in container order.
func (f *File) Tables() []*Table {
	out := make([]*Table, len(f.order))
	for i, name := range f.order {
		out[i] = f.tables[name]
	}
	return out
}

// Close closes the shared Reader.
func (f *File) Close() error {
	f.cur.mu.Lock()
	defer f.cur.mu.Unlock()
	f.cur.owner = nil
	return f.cur.reader.Close()
}
