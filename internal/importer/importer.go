// Package importer finds mail batch files dropped into import/, decodes them
// into raw mails and moves them aside once processed.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cleared-dev/mailtx/internal/model"
)

// Reader decodes one mail batch format.
type Reader interface {
	Read(r io.Reader) ([]model.RawMail, error)
	// Format is the file extension the reader handles, without the dot.
	Format() string
}

// Registry holds readers by format.
type Registry struct {
	readers map[string]Reader
}

// FileInfo describes a batch file in the import directory.
type FileInfo struct {
	Name   string
	Path   string
	Size   int64
	Format string
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// ForFile returns the reader matching name's extension, or nil.
func (r *Registry) ForFile(name string) Reader {
	return r.Get(formatOf(name))
}

// DefaultRegistry returns a registry with all built-in readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(JSONReader{})
	r.Register(JSONLReader{})
	return r
}

// ReadFile decodes the batch at path. Mails without an ID get
// "<file name>#<position>" so transactions can always be traced back.
func (r *Registry) ReadFile(path string) ([]model.RawMail, error) {
	rd := r.ForFile(path)
	if rd == nil {
		return nil, fmt.Errorf("no reader for %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch: %w", err)
	}
	defer f.Close()

	mails, err := rd.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	name := filepath.Base(path)
	for i := range mails {
		if mails[i].ID == "" {
			mails[i].ID = name + "#" + strconv.Itoa(i+1)
		}
	}
	return mails, nil
}

func formatOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// importDir is the subdirectory for incoming batches.
const importDir = "import"

// processedDir is the subdirectory for processed batches.
const processedDir = "import/processed"

// Scan returns batch files in <repoRoot>/import/ that r can read, in
// directory order (sorted by name).
func (r *Registry) Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || r.ForFile(e.Name()) == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Size:   info.Size(),
			Format: formatOf(e.Name()),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
