package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const renderTimeout = 30 * time.Second

type Options struct {
	// DOCXReference is a .docx whose styles pandoc applies to DOCX briefs.
	DOCXReference string
}

type Service struct {
	log  *zap.Logger
	opts Options
	now  func() time.Time
}

func NewService(logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{log: logger.Named("export"), opts: opts, now: time.Now}
}

// Export renders the brief in the requested format.
func (s *Service) Export(ctx context.Context, brief Brief, format Format) (*Result, error) {
	if brief.GeneratedAt.IsZero() {
		brief.GeneratedAt = s.now()
	}
	html, err := RenderBriefHTML(brief)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	var result *Result
	switch format {
	case FormatHTML:
		result = &Result{
			Data:     []byte(html),
			Filename: fileStem(brief.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}
	case FormatPDF:
		result, err = s.renderPDF(ctx, brief, html)
	case FormatDOCX:
		result, err = s.renderDOCX(ctx, brief, html)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		s.log.Warn("export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}
	return result, nil
}
