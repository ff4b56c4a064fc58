package export

import (
	"context"
	"fmt"
	"html/template"
	"os/exec"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

func chromiumPath() (string, error) {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
}

const pdfFooter = `<div style="font-size:8px;width:100%;padding:0 0.6in;color:#666;display:flex;justify-content:space-between">` +
	`<span>{{.}}</span><span><span class="pageNumber"></span> / <span class="totalPages"></span></span></div>`

var pdfFooterTemplate = template.Must(template.New("footer").Parse(pdfFooter))

// printParams lays the brief out on A4 with the project title and page
// numbers in the footer.
func printParams(brief Brief) (*page.PrintToPDFParams, error) {
	var footer strings.Builder
	if err := pdfFooterTemplate.Execute(&footer, brief.Title); err != nil {
		return nil, fmt.Errorf("render pdf footer: %w", err)
	}
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(8.27).
		WithPaperHeight(11.69).
		WithMarginTop(0.6).
		WithMarginBottom(0.8).
		WithMarginLeft(0.6).
		WithMarginRight(0.6).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate("<span></span>").
		WithFooterTemplate(footer.String()), nil
}

func allocatorOptions(browser string) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(browser),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
}

// renderPDF loads the brief into a blank tab and prints it.
func (s *Service) renderPDF(ctx context.Context, brief Brief, html string) (*Result, error) {
	browser, err := chromiumPath()
	if err != nil {
		return nil, err
	}
	params, err := printParams(brief)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(browser)...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var data []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			data, _, printErr = params.Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print brief to pdf: %w", err)
	}
	return &Result{Data: data, Filename: fileStem(brief.Title) + ".pdf", MimeType: "application/pdf"}, nil
}
