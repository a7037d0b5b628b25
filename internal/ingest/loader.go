package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Source type values recorded in chunk metadata.
const (
	SourceTypePDF  = "pdf"
	SourceTypeText = "text"
)

// supportedExtensions maps file extensions to their source type.
var supportedExtensions = map[string]string{
	".pdf": SourceTypePDF,
	".txt": SourceTypeText,
	".md":  SourceTypeText,
}

// Page is one unit of extracted text. PDF pages carry their 1-based page
// number; plain-text files load as a single page with Number 0, meaning
// the source has no page structure.
type Page struct {
	Number int
	Text   string
}

// FileContent is the extracted text of one source file.
type FileContent struct {
	// Path is the absolute path the file was loaded from.
	Path string

	// Name is the base file name, used as the source identifier in chunk
	// metadata.
	Name string

	// SourceType is one of the SourceType constants.
	SourceType string

	// Pages holds the extracted text in page order.
	Pages []Page
}

// Supported reports whether the file extension is an ingestible type.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadFile extracts the text of a single file. Unsupported extensions are
// an error; callers walking directories should filter with Supported
// first.
func LoadFile(path string) (*FileContent, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	sourceType, ok := supportedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	content := &FileContent{
		Path:       absPath,
		Name:       filepath.Base(absPath),
		SourceType: sourceType,
	}

	if sourceType == SourceTypePDF {
		content.Pages, err = loadPDF(absPath)
	} else {
		content.Pages, err = loadText(absPath)
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// loadText reads the whole file as one page without a page number.
func loadText(path string) ([]Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path chosen by the operator running ingestion
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return []Page{{Number: 0, Text: string(data)}}, nil
}

// loadPDF extracts plain text per page. Pages that fail extraction are
// skipped rather than failing the whole document; scanned or image-only
// pages commonly yield nothing.
func loadPDF(path string) ([]Page, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", filepath.Base(path))
	}
	return pages, nil
}
