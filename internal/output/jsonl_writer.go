package output

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matthieugras/vidctl/internal/logging"
)

// RecordWriter is the interface for writing batch records
type RecordWriter interface {
	WriteRecord(rec Record) error
	Close() error
}

// RecordFilter decides whether a record is written. Nil writes everything.
type RecordFilter func(rec Record) bool

// FailuresOnly keeps records whose request failed or returned a non-2xx status
func FailuresOnly(rec Record) bool {
	return rec.Error != "" || rec.Status < 200 || rec.Status >= 300
}

// JSONLWriter writes JSON objects as newline-delimited JSON (JSONL).
type JSONLWriter struct {
	closer     io.Closer     // nil for writers that do not own their destination
	gzipWriter *gzip.Writer  // nil if not compressing
	writer     *bufio.Writer // Buffered writer for better I/O performance
	filter     RecordFilter
	mu         sync.Mutex

	writtenCount  int
	filteredCount int
	closed        bool
}

// NewJSONLWriter creates a new JSONL writer at the specified path.
// If useGzip is true, the output is compressed with gzip.
func NewJSONLWriter(path string, useGzip bool) (*JSONLWriter, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := newJSONLWriter(file, useGzip)
	w.closer = file
	return w, nil
}

// NewStreamWriter writes JSONL to w (e.g. stdout) without taking ownership of it
func NewStreamWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w, false)
}

func newJSONLWriter(dst io.Writer, useGzip bool) *JSONLWriter {
	var gzipWriter *gzip.Writer
	baseWriter := dst
	if useGzip {
		gzipWriter = gzip.NewWriter(dst)
		baseWriter = gzipWriter
	}
	return &JSONLWriter{
		gzipWriter: gzipWriter,
		writer:     bufio.NewWriterSize(baseWriter, 64*1024), // 64KB buffer
	}
}

// SetFilter installs a record filter; call before the first write
func (w *JSONLWriter) SetFilter(f RecordFilter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filter = f
}

// WriteRecord writes a record unless the filter rejects it
func (w *JSONLWriter) WriteRecord(rec Record) error {
	w.mu.Lock()
	filter := w.filter
	w.mu.Unlock()

	if filter != nil && !filter(rec) {
		w.mu.Lock()
		w.filteredCount++
		w.mu.Unlock()
		return nil
	}
	return w.WriteAny(rec)
}

// Write writes a raw JSON value as one line
func (w *JSONLWriter) Write(data json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	return w.writeData(data)
}

// writeData writes data to the buffer (must be called with lock held)
func (w *JSONLWriter) writeData(data json.RawMessage) error {
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	w.writtenCount++
	return nil
}

// WriteAny writes any value as JSON
func (w *JSONLWriter) WriteAny(v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return w.Write(data)
}

// Count returns the number of items written
func (w *JSONLWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writtenCount
}

// FilteredCount returns the number of records that were filtered out
func (w *JSONLWriter) FilteredCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filteredCount
}

// Flush pushes buffered lines to the destination without closing it
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close flushes the buffer and closes the writer
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	// Flush buffered data before closing
	if err := w.writer.Flush(); err != nil {
		w.closeDst() // Still try to close file
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	// Close gzip writer if used (flushes compression buffer)
	if w.gzipWriter != nil {
		if err := w.gzipWriter.Close(); err != nil {
			w.closeDst()
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	if w.filteredCount > 0 {
		logging.Debug("JSONL writer: %d written, %d filtered", w.writtenCount, w.filteredCount)
	}
	return w.closeDst()
}

func (w *JSONLWriter) closeDst() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// FileManager creates output files in one directory
type FileManager struct {
	outputDir string
	gzip      bool
	now       func() time.Time
}

// NewFileManager creates a new file manager
func NewFileManager(outputDir string, gzip bool) (*FileManager, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &FileManager{
		outputDir: outputDir,
		gzip:      gzip,
		now:       time.Now,
	}, nil
}

// Gzip returns whether gzip compression is enabled
func (fm *FileManager) Gzip() bool {
	return fm.gzip
}

// batchFilename generates a filename like "videos_20260102_150405.jsonl.gz"
func batchFilename(name string, ts time.Time, useGzip bool) string {
	ext := ".jsonl"
	if useGzip {
		ext = ".jsonl.gz"
	}
	name = sanitizeFilename(truncateDisplayName(strings.Trim(name, "/"), maxDisplayNameLen))
	if name == "" {
		name = "batch"
	}
	return fmt.Sprintf("%s_%s%s", name, ts.Format("20060102_150405"), ext)
}

// GetWriter returns a new writer for a batch named after name.
// The caller is responsible for closing the writer when done.
func (fm *FileManager) GetWriter(name string) (*JSONLWriter, string, error) {
	path := filepath.Join(fm.outputDir, batchFilename(name, fm.now(), fm.gzip))

	writer, err := NewJSONLWriter(path, fm.gzip)
	if err != nil {
		return nil, "", err
	}
	return writer, path, nil
}

// OutputDir returns the output directory
func (fm *FileManager) OutputDir() string {
	return fm.outputDir
}

// sanitizeFilename replaces invalid filename characters with underscores
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "&", "="}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}

// truncateDisplayName truncates a name to maxLen characters for use in filenames.
// Simple cutoff without ellipsis to avoid special characters in filenames.
func truncateDisplayName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	return name[:maxLen]
}

// maxDisplayNameLen is the maximum length for names in output filenames
const maxDisplayNameLen = 30
