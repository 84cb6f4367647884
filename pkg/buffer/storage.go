package buffer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileExtension is the suffix of uncompressed JSON Lines files.
const FileExtension = ".jsonl"

// Storage is the byte sink a Buffer writes into. Open is called once; the
// returned writer is only used until Close.
type Storage interface {
	// Open acquires the sink.
	Open() (io.Writer, error)
	// Flush pushes buffered bytes to the backing medium.
	Flush() error
	// Close releases the sink. Stored bytes stay readable until Delete.
	Close() error
	// Reader opens the stored bytes for reading.
	Reader() (io.ReadCloser, error)
	// Filename is the base name the stored bytes should be published as.
	Filename() string
	// Size returns the number of bytes written so far.
	Size() int64
	// Delete discards the stored bytes.
	Delete() error
}

// FileStorageConfig holds configuration for file backed storage
type FileStorageConfig struct {
	Dir        string // Directory for buffer files (os.TempDir() when empty)
	Name       string // File name (random when empty)
	BufferSize int    // Write buffer size
	Fsync      bool   // Fsync the file on every Flush
}

// FileStorage writes buffer bytes to a file on local disk
type FileStorage struct {
	config FileStorageConfig
	path   string
	file   *os.File
	writer *bufio.Writer
	offset int64
	closed bool
	mutex  sync.Mutex
}

// NewFileStorage creates file storage; the file itself is created by Open
func NewFileStorage(config FileStorageConfig) *FileStorage {
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	if config.Name == "" {
		config.Name = uuid.NewString() + FileExtension
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64 << 10
	}
	return &FileStorage{
		config: config,
		path:   filepath.Join(config.Dir, config.Name),
	}
}

// Open creates the file, truncating any previous content
func (s *FileStorage) Open() (io.Writer, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.file != nil || s.closed {
		return nil, fmt.Errorf("file storage %s already opened", s.path)
	}

	// Ensure directory exists
	if err := os.MkdirAll(s.config.Dir, 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	s.file = file
	s.writer = bufio.NewWriterSize(file, s.config.BufferSize)
	return fileSink{s}, nil
}

func (s *FileStorage) write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.writer == nil || s.closed {
		return 0, os.ErrClosed
	}
	n, err := s.writer.Write(p)
	s.offset += int64(n)
	return n, err
}

// Flush writes buffered bytes to the file, with an fsync when configured
func (s *FileStorage) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.writer == nil || s.closed {
		return nil
	}
	return s.flush()
}

func (s *FileStorage) flush() error {
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.config.Fsync {
		return s.file.Sync()
	}
	return nil
}

// Close flushes and closes the file. The file itself is kept.
func (s *FileStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}

	flushErr := s.flush()
	closeErr := s.file.Close()
	return errors.Join(flushErr, closeErr)
}

// Reader opens the file for reading
func (s *FileStorage) Reader() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// Filename returns the file's base name
func (s *FileStorage) Filename() string {
	return s.config.Name
}

// Path returns the file path
func (s *FileStorage) Path() string {
	return s.path
}

// Size returns the number of bytes written
func (s *FileStorage) Size() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.offset
}

// Delete closes the storage and removes the file
func (s *FileStorage) Delete() error {
	closeErr := s.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return closeErr
}

type fileSink struct{ s *FileStorage }

func (f fileSink) Write(p []byte) (int, error) { return f.s.write(p) }

// MemoryStorage keeps buffer bytes in memory.
type MemoryStorage struct {
	name   string
	buf    bytes.Buffer
	opened bool
	closed bool
	mutex  sync.Mutex
}

// NewMemoryStorage creates in-memory storage published under name (random
// when empty).
func NewMemoryStorage(name string) *MemoryStorage {
	if name == "" {
		name = uuid.NewString() + FileExtension
	}
	return &MemoryStorage{name: name}
}

// Open returns a writer appending to the in-memory buffer.
func (s *MemoryStorage) Open() (io.Writer, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.opened {
		return nil, fmt.Errorf("memory storage %s already opened", s.name)
	}
	s.opened = true
	return memorySink{s}, nil
}

func (s *MemoryStorage) write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}
	return s.buf.Write(p)
}

// Flush is a no-op.
func (s *MemoryStorage) Flush() error { return nil }

// Close stops accepting writes.
func (s *MemoryStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}

// Reader returns a reader over a copy of the stored bytes.
func (s *MemoryStorage) Reader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Bytes())), nil
}

// Bytes returns a copy of the stored bytes.
func (s *MemoryStorage) Bytes() []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Filename returns the published name.
func (s *MemoryStorage) Filename() string { return s.name }

// Size returns the number of stored bytes.
func (s *MemoryStorage) Size() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return int64(s.buf.Len())
}

// Delete drops the stored bytes.
func (s *MemoryStorage) Delete() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	s.buf.Reset()
	return nil
}

type memorySink struct{ s *MemoryStorage }

func (m memorySink) Write(p []byte) (int, error) { return m.s.write(p) }
