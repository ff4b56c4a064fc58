// Package export renders project briefs as HTML, PDF and DOCX.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Brief is the printable summary of a project.
type Brief struct {
	Title       string
	Description string
	Status      string
	Tags        []string
	Owner       string
	UpdatedAt   time.Time
	Members     []Member
	Messages    []Note
	Files       []File
	GeneratedAt time.Time
}

type Member struct {
	Name string
	Role string
}

type Note struct {
	Author string
	Body   string
	At     time.Time
}

type File struct {
	Name string
	Size int64
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("export format not supported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
