package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pandocArgs converts the brief's HTML to DOCX on stdout. The document
// properties come from the brief so Word shows the project, not "Untitled".
func pandocArgs(brief Brief, referenceDoc string) []string {
	args := []string{
		"--from=html",
		"--to=docx",
		"--standalone",
		"--output=-",
		"--metadata=title:" + brief.Title,
		"--metadata=subject:Project brief",
	}
	if brief.Owner != "" {
		args = append(args, "--metadata=author:"+brief.Owner)
	}
	if !brief.GeneratedAt.IsZero() {
		args = append(args, "--metadata=date:"+brief.GeneratedAt.UTC().Format("2006-01-02"))
	}
	if len(brief.Tags) > 0 {
		args = append(args, "--metadata=keywords:"+strings.Join(brief.Tags, ", "))
	}
	if referenceDoc != "" {
		args = append(args, "--reference-doc="+referenceDoc)
	}
	return args
}

func (s *Service) renderDOCX(ctx context.Context, brief Brief, html string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pandoc", pandocArgs(brief, s.opts.DOCXReference)...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run pandoc: %w", err)
	}
	return &Result{Data: stdout.Bytes(), Filename: fileStem(brief.Title) + ".docx", MimeType: docxMimeType}, nil
}
