package zfile

import (
	"bufio"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/compression"
	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/json"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/mmap"
)

// Driver opens zfile containers on the local filesystem.
type Driver struct {
	compression *compression.Config
	catalog     *catalog.Catalog
	logger      *zap.Logger
}

// NewDriver creates a driver. Sinks compress rows with cfg; nil means
// compression.DefaultConfig().
func NewDriver(cfg *compression.Config, log *zap.Logger) *Driver {
	if cfg == nil {
		cfg = compression.DefaultConfig()
	}
	return &Driver{
		compression: cfg,
		catalog:     catalog.Default(),
		logger:      logger.OrDefault(log, "zfile"),
	}
}

// ListTables implements container.Lister.
func (d *Driver) ListTables(path string) ([]container.TableDescriptor, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := f.Slice(0, int(f.Size()))
	if err != nil {
		return nil, err
	}
	ft, err := parseFooter(path, data)
	if err != nil {
		return nil, err
	}
	return container.Describe(path, ft.headers())
}

// OpenReader implements container.Driver. The file stays mapped until the
// reader is closed.
func (d *Driver) OpenReader(path string) (container.Reader, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := f.Slice(0, int(f.Size()))
	if err != nil {
		f.Close()
		return nil, err
	}
	ft, err := parseFooter(path, data)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.logger.Debug("opened container", zap.String("path", path), zap.Int("extensions", len(ft.Extensions)))
	return &Reader{file: f, footer: ft, compressors: make(map[compression.Algorithm]compression.Compressor)}, nil
}

// CreateSink implements container.Driver. An existing file at path is truncated.
func (d *Driver) CreateSink(path string) (container.Sink, error) {
	comp, err := compression.NewCompressor(d.compression)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create container").WithDetail("path", path)
	}
	w := bufio.NewWriterSize(f, 1<<16)
	if _, err := w.WriteString(magic); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to write container").WithDetail("path", path)
	}
	return &Sink{
		path:       path,
		file:       f,
		w:          w,
		offset:     int64(len(magic)),
		compressor: comp,
		catalog:    d.catalog,
		logger:     d.logger,
		footer: footer{
			Version: formatVersion,
			Primary: map[string]string{"SIMPLE": "T", "CREATOR": "zfits"},
		},
	}, nil
}

// Reader reads rows of a mapped zfile container.
type Reader struct {
	mu          sync.Mutex
	file        *mmap.File
	footer      *footer
	compressors map[compression.Algorithm]compression.Compressor
	cur         *extension
	name        string
	pos         int
	closed      bool
}

func (r *Reader) Path() string { return r.file.Path() }

func (r *Reader) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *Reader) Open(extName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New(errors.ErrorTypeFile, "reader is closed")
	}
	for _, ext := range r.footer.Extensions {
		if ext.Header[container.KeyExtension] == container.BinTable && ext.Header[container.KeyExtName] == extName {
			r.cur, r.name, r.pos = ext, extName, 0
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeNotFound, "no table %q in %s", extName, r.file.Path())
}

func (r *Reader) NumRows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return 0
	}
	return len(r.cur.Rows)
}

func (r *Reader) ReadNextRow() ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, false, err
	}
	if r.pos >= len(r.cur.Rows) {
		return nil, false, nil
	}
	row, err := r.row(r.pos)
	if err != nil {
		return nil, false, err
	}
	r.pos++
	return row, true, nil
}

func (r *Reader) ReadRowAt(index int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := container.CheckRowIndex(index, len(r.cur.Rows)); err != nil {
		return nil, err
	}
	row, err := r.row(index - 1)
	if err != nil {
		return nil, err
	}
	r.pos = index
	return row, nil
}

func (r *Reader) Rewind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	r.pos = 0
	return nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.cur = nil
	return r.file.Close()
}

func (r *Reader) ready() error {
	if r.closed {
		return errors.New(errors.ErrorTypeFile, "reader is closed")
	}
	if r.cur == nil {
		return errors.New(errors.ErrorTypeValidation, "no table is open")
	}
	return nil
}

// row returns the decompressed row at a 0-based index of the current table.
func (r *Reader) row(i int) ([]byte, error) {
	e := r.cur.Rows[i]
	packed, err := r.file.Slice(e.Offset, e.Size)
	if err != nil {
		return nil, err
	}
	if checksum(packed) != e.Hash {
		return nil, errors.Newf(errors.ErrorTypeFile, "checksum mismatch in row %d of %q", i+1, r.name).
			WithDetail("path", r.file.Path())
	}
	comp, err := r.compressor(r.cur.Compression)
	if err != nil {
		return nil, err
	}
	row, err := comp.Decompress(packed, e.RawSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decompress row").
			WithDetail("path", r.file.Path()).
			WithDetail("row", i+1)
	}
	return row, nil
}

func (r *Reader) compressor(alg compression.Algorithm) (compression.Compressor, error) {
	if alg == "" {
		alg = compression.None
	}
	if c, ok := r.compressors[alg]; ok {
		return c, nil
	}
	c, err := compression.NewCompressor(&compression.Config{Algorithm: alg, Level: compression.Default})
	if err != nil {
		return nil, err
	}
	r.compressors[alg] = c
	return c, nil
}

// Sink writes a new zfile container. Nothing is readable until Close
// writes the footer.
type Sink struct {
	path       string
	file       *os.File
	w          *bufio.Writer
	offset     int64
	compressor compression.Compressor
	catalog    *catalog.Catalog
	logger     *zap.Logger
	footer     footer
	cur        *extension
	closed     bool
}

func (s *Sink) DeclareTable(name, typeTag string) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	messageType, err := s.catalog.TypeForTag(typeTag)
	if err != nil {
		return err
	}
	s.cur = &extension{
		Header:      container.TableHeader(name, messageType, typeTag, 0),
		Compression: s.compressor.Algorithm(),
	}
	s.footer.Extensions = append(s.footer.Extensions, s.cur)
	return nil
}

func (s *Sink) AppendRow(data []byte) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	if s.cur == nil {
		return errors.New(errors.ErrorTypeValidation, "no table declared")
	}
	packed, err := s.compressor.Compress(data)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(packed); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row").WithDetail("path", s.path)
	}
	s.cur.Rows = append(s.cur.Rows, rowEntry{
		Offset:  s.offset,
		Size:    len(packed),
		RawSize: len(data),
		Hash:    checksum(packed),
	})
	s.offset += int64(len(packed))
	s.cur.Header[container.KeyRows] = strconv.Itoa(len(s.cur.Rows))
	return nil
}

// Close writes the footer and closes the file. It is safe to call more than once.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	body, err := json.Marshal(&s.footer)
	if err != nil {
		s.file.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode footer")
	}
	_, err = s.w.Write(body)
	if err == nil {
		_, err = s.w.Write(encodeTrailer(len(body)))
	}
	if err == nil {
		err = s.w.Flush()
	}
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish container").WithDetail("path", s.path)
	}
	s.logger.Debug("wrote container", zap.String("path", s.path), zap.Int("tables", len(s.footer.Extensions)))
	return nil
}

// Abort closes the file without a footer and removes it.
func (s *Sink) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.file.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove aborted container").WithDetail("path", s.path)
	}
	s.logger.Debug("aborted container", zap.String("path", s.path))
	return nil
}

var _ container.Driver = (*Driver)(nil)
