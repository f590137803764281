// Package loader reads knowledge source files into documents, normalizes
// their text and redacts sensitive data before chunking.
package loader

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/model"
)

// ErrUnsupportedFormat marks file extensions the loader does not handle.
// Callers walking a mixed directory match on it to skip rather than fail.
var ErrUnsupportedFormat = eris.New("loader: unsupported file format")

// Document is raw loaded content plus what the chunker needs to know
// about it.
type Document struct {
	Content  string
	Path     string
	Language string
	Kind     model.ContentKind
}

// languages maps code extensions to the boundary-recognizer language.
var languages = map[string]string{
	".java": "java",
	".py":   "python",
	".go":   "go",
}

// Loader loads documents from the filesystem.
type Loader struct{}

// New creates a Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the file at path into a Document, dispatching on extension.
// Markdown and plain text load as prose, known code extensions as code,
// PDFs via the pdftotext tool. Anything else is ErrUnsupportedFormat.
func (l *Loader) Load(ctx context.Context, path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown", ".txt":
		return l.loadText(path, "markdown", model.KindDocument)
	case ".java", ".py", ".go":
		return l.loadText(path, languages[ext], model.KindCode)
	case ".pdf":
		return l.loadPDF(ctx, path)
	default:
		return Document{}, eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

func (l *Loader) loadText(path, language string, kind model.ContentKind) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, eris.Wrapf(err, "loader: read %s", path)
	}
	return Document{
		Content:  string(data),
		Path:     path,
		Language: language,
		Kind:     kind,
	}, nil
}

// loadPDF extracts text with the pdftotext tool, writing to stdout.
func (l *Loader) loadPDF(ctx context.Context, path string) (Document, error) {
	out, err := exec.CommandContext(ctx, "pdftotext", path, "-").Output()
	if err != nil {
		return Document{}, eris.Wrapf(err, "loader: pdftotext %s", path)
	}

	zap.L().Debug("loader: pdf extracted", zap.String("path", path), zap.Int("bytes", len(out)))
	return Document{
		Content:  strings.TrimSpace(string(out)),
		Path:     path,
		Language: "pdf",
		Kind:     model.KindDocument,
	}, nil
}

// Supported reports whether the loader handles the file at path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".java", ".py", ".go", ".pdf":
		return true
	default:
		return false
	}
}
