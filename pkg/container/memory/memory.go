// Package memory is an in-process container store. It backs tests and
// pipelines that never touch disk.
package memory

import (
	"strconv"
	"sync"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
)

type table struct {
	header map[string]string
	rows   [][]byte
}

// Container holds the tables of one in-memory container.
type Container struct {
	mu     sync.RWMutex
	path   string
	tables []*table
}

// NewContainer creates an empty container.
func NewContainer(path string) *Container {
	return &Container{path: path}
}

// AddTable appends a binary table with the given rows.
func (c *Container) AddTable(extName, messageType string, rows ...[]byte) {
	tag, _ := catalog.TypeTag(messageType)
	c.AddExtension(container.TableHeader(extName, messageType, tag, len(rows)), rows...)
}

// AddExtension appends an extension with a raw header. Rows are kept as is;
// ZNAXIS2 is whatever the header says.
func (c *Container) AddExtension(header map[string]string, rows ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = append(c.tables, &table{header: copyHeader(header), rows: rows})
}

func (c *Container) headers() []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]map[string]string, len(c.tables))
	for i, t := range c.tables {
		out[i] = copyHeader(t.header)
	}
	return out
}

func (c *Container) find(extName string) (*table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tables {
		if t.header[container.KeyExtension] == container.BinTable && t.header[container.KeyExtName] == extName {
			return t, true
		}
	}
	return nil, false
}

// Store maps paths to containers and implements container.Driver.
type Store struct {
	mu         sync.Mutex
	containers map[string]*Container
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{containers: make(map[string]*Container)}
}

// Put registers c under its path.
func (s *Store) Put(c *Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[c.path] = c
}

// Get returns the container at path.
func (s *Store) Get(path string) (*Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[path]
	return c, ok
}

func (s *Store) get(path string) (*Container, error) {
	c, ok := s.Get(path)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no container at %q", path)
	}
	return c, nil
}

// ListTables implements container.Lister.
func (s *Store) ListTables(path string) ([]container.TableDescriptor, error) {
	c, err := s.get(path)
	if err != nil {
		return nil, err
	}
	return container.Describe(path, c.headers())
}

// OpenReader implements container.Driver.
func (s *Store) OpenReader(path string) (container.Reader, error) {
	c, err := s.get(path)
	if err != nil {
		return nil, err
	}
	return &Reader{c: c}, nil
}

// CreateSink implements container.Driver. An existing container at path is replaced.
func (s *Store) CreateSink(path string) (container.Sink, error) {
	c := NewContainer(path)
	s.Put(c)
	return &Sink{c: c, store: s, catalog: catalog.Default()}, nil
}

// Reader reads one container. Each Reader has its own cursor.
type Reader struct {
	c      *Container
	cur    *table
	name   string
	pos    int
	closed bool
}

// NewReader opens a reader over c.
func NewReader(c *Container) *Reader {
	return &Reader{c: c}
}

func (r *Reader) Path() string    { return r.c.path }
func (r *Reader) Current() string { return r.name }

func (r *Reader) Open(extName string) error {
	if r.closed {
		return errors.New(errors.ErrorTypeFile, "reader is closed")
	}
	t, ok := r.c.find(extName)
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "no table %q in %s", extName, r.c.path)
	}
	r.cur, r.name, r.pos = t, extName, 0
	return nil
}

func (r *Reader) NumRows() int {
	if r.cur == nil {
		return 0
	}
	return len(r.cur.rows)
}

func (r *Reader) ReadNextRow() ([]byte, bool, error) {
	if err := r.ready(); err != nil {
		return nil, false, err
	}
	if r.pos >= len(r.cur.rows) {
		return nil, false, nil
	}
	row := r.cur.rows[r.pos]
	r.pos++
	return row, true, nil
}

func (r *Reader) ReadRowAt(index int) ([]byte, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := container.CheckRowIndex(index, len(r.cur.rows)); err != nil {
		return nil, err
	}
	r.pos = index
	return r.cur.rows[index-1], nil
}

func (r *Reader) Rewind() error {
	if err := r.ready(); err != nil {
		return err
	}
	r.pos = 0
	return nil
}

func (r *Reader) Close() error {
	r.closed = true
	r.cur = nil
	return nil
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

// Sink appends tables to a container.
type Sink struct {
	c       *Container
	store   *Store
	catalog *catalog.Catalog
	cur     *table
	closed  bool
}

// NewSink returns a sink writing into c.
func NewSink(c *Container) *Sink {
	return &Sink{c: c, catalog: catalog.Default()}
}

func (s *Sink) DeclareTable(name, typeTag string) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	messageType, err := s.catalog.TypeForTag(typeTag)
	if err != nil {
		return err
	}
	t := &table{header: container.TableHeader(name, messageType, typeTag, 0)}
	s.c.mu.Lock()
	s.c.tables = append(s.c.tables, t)
	s.c.mu.Unlock()
	s.cur = t
	return nil
}

func (s *Sink) AppendRow(data []byte) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}
	if s.cur == nil {
		return errors.New(errors.ErrorTypeValidation, "no table declared")
	}
	row := make([]byte, len(data))
	copy(row, data)

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.cur.rows = append(s.cur.rows, row)
	s.cur.header[container.KeyRows] = strconv.Itoa(len(s.cur.rows))
	return nil
}

func (s *Sink) Close() error {
	s.closed = true
	return nil
}

// Abort drops the tables declared so far. A container created by a Store
// is also removed from it.
func (s *Sink) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cur = nil

	s.c.mu.Lock()
	s.c.tables = nil
	s.c.mu.Unlock()

	if s.store != nil {
		s.store.mu.Lock()
		if s.store.containers[s.c.path] == s.c {
			delete(s.store.containers, s.c.path)
		}
		s.store.mu.Unlock()
	}
	return nil
}

func copyHeader(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
