// Package sink implements the table emitters (C2, §6): seven
// column-disjoint output streams, each written as tab-delimited text or
// length-prefixed msgpack, optionally gzip-compressed, with a per-table
// row truncation limit.
package sink

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Config mirrors the {truncate, binary, compression_level} options every
// table accepts (§6).
type Config struct {
	Truncate         int // max rows, 0 = unbounded
	Binary           bool
	CompressionLevel int // 0 = uncompressed, else gzip level 1-9
}

// Sink is one table's writer: a header followed by any number of rows.
type Sink interface {
	WriteHeader(columns []string) error
	WriteRow(values []string) error
	Close() error
}

// Open returns a TextSink or BinarySink for name under dir, per
// cfg.Binary.
func Open(dir, name string, cfg Config) (Sink, error) {
	if cfg.Binary {
		return OpenBinarySink(dir, name, cfg)
	}
	return OpenTextSink(dir, name, cfg)
}

// TextSink writes a tab-delimited header row followed by tab-delimited
// data rows, each column NFC-normalized so hosts that hand back
// decomposed Unicode don't produce spurious diffs downstream.
type TextSink struct {
	file *os.File
	gz   *gzip.Writer
	w    *bufio.Writer
	cfg  Config
	rows int
}

// OpenTextSink creates dir/name.tsv (or .tsv.gz when compression is
// requested).
func OpenTextSink(dir, name string, cfg Config) (*TextSink, error) {
	path := filepath.Join(dir, name+".tsv")
	if cfg.CompressionLevel > 0 {
		path += ".gz"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &TextSink{file: f, cfg: cfg}
	if cfg.CompressionLevel > 0 {
		gz, err := gzip.NewWriterLevel(f, cfg.CompressionLevel)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.gz = gz
		s.w = bufio.NewWriter(gz)
	} else {
		s.w = bufio.NewWriter(f)
	}
	return s, nil
}

// WriteHeader writes columns as the first tab-delimited line.
func (s *TextSink) WriteHeader(columns []string) error {
	_, err := s.w.WriteString(strings.Join(columns, "\t") + "\n")
	return err
}

// WriteRow writes one tab-delimited data line, dropping rows past the
// configured truncation limit.
func (s *TextSink) WriteRow(values []string) error {
	if s.cfg.Truncate > 0 && s.rows >= s.cfg.Truncate {
		return nil
	}
	s.rows++
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = norm.NFC.String(v)
	}
	_, err := s.w.WriteString(strings.Join(normalized, "\t") + "\n")
	return err
}

// Close flushes the buffered writer and, in turn, the gzip writer and
// the underlying file.
func (s *TextSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			return err
		}
	}
	return s.file.Close()
}

// BinarySink writes each row (header included) as a msgpack-encoded
// string slice prefixed by its big-endian uint32 byte length (§6,
// "length-prefixed packed encoding").
type BinarySink struct {
	file *os.File
	gz   *gzip.Writer
	w    *bufio.Writer
	cfg  Config
	rows int
}

// OpenBinarySink creates dir/name.bin (or .bin.gz when compression is
// requested).
func OpenBinarySink(dir, name string, cfg Config) (*BinarySink, error) {
	path := filepath.Join(dir, name+".bin")
	if cfg.CompressionLevel > 0 {
		path += ".gz"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &BinarySink{file: f, cfg: cfg}
	if cfg.CompressionLevel > 0 {
		gz, err := gzip.NewWriterLevel(f, cfg.CompressionLevel)
		if err != nil {
			f.Close()
			return nil, err
		}
		s.gz = gz
		s.w = bufio.NewWriter(gz)
	} else {
		s.w = bufio.NewWriter(f)
	}
	return s, nil
}

// WriteHeader writes columns as the first frame.
func (s *BinarySink) WriteHeader(columns []string) error {
	return s.writeFrame(columns)
}

// WriteRow writes one frame, dropping rows past the truncation limit.
func (s *BinarySink) WriteRow(values []string) error {
	if s.cfg.Truncate > 0 && s.rows >= s.cfg.Truncate {
		return nil
	}
	s.rows++
	return s.writeFrame(values)
}

func (s *BinarySink) writeFrame(values []string) error {
	payload, err := msgpack.Marshal(values)
	if err != nil {
		return err
	}
	n, err := safecast.Conv[uint32](len(payload))
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], n)
	if _, err := s.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = s.w.Write(payload)
	return err
}

// Close flushes and closes the underlying writers, mirroring TextSink.
func (s *BinarySink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			return err
		}
	}
	return s.file.Close()
}

// TableNames lists the seven output streams in the order the original
// tracer opens them.
var TableNames = []string{
	"object_count",
	"call_summary",
	"function_definition",
	"arguments",
	"escaped_arguments",
	"promises",
	"promise_lifecycle",
}

// Set owns one Sink per table and flushes them concurrently at
// teardown, since each is independent and column-disjoint (§4.13).
type Set struct {
	sinks map[string]Sink
}

// OpenSet creates dir and opens every table in TableNames under it.
func OpenSet(dir string, cfg Config) (*Set, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	set := &Set{sinks: make(map[string]Sink, len(TableNames))}
	for _, name := range TableNames {
		s, err := Open(dir, name, cfg)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.sinks[name] = s
	}
	return set, nil
}

// Table returns the sink for name, or nil if name is not one of
// TableNames.
func (s *Set) Table(name string) Sink { return s.sinks[name] }

// Close flushes and closes every table concurrently, returning the
// first error encountered (if any).
func (s *Set) Close() error {
	g := new(errgroup.Group)
	for _, sk := range s.sinks {
		sk := sk
		if sk == nil {
			continue
		}
		g.Go(sk.Close)
	}
	return g.Wait()
}
