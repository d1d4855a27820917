// Package render turns the harvested HTML buffer into a paginated PDF.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// Result describes a rendered PDF
type Result struct {
	Path     string `yaml:"path"`
	Pages    int    `yaml:"pages,omitempty"` // 0 when verification is off
	HTMLPath string `yaml:"html_path,omitempty"`
	Bytes    int64  `yaml:"bytes"`
}

// Renderer prints documents through a browser.PDFPage
type Renderer struct {
	page browser.PDFPage
	cfg  config.OutputConfig
	log  *logrus.Entry
}

// NewRenderer creates a Renderer
func NewRenderer(page browser.PDFPage, cfg config.OutputConfig, log *logrus.Entry) *Renderer {
	return &Renderer{page: page, cfg: cfg, log: log}
}

// Render writes body as an A4 PDF at outPath. The PDF is exported under a
// temporary name and renamed into place, so a failed render leaves nothing at outPath.
// Every error wraps utils.ErrRender.
func (r *Renderer) Render(ctx context.Context, title, body, outPath string) (*Result, error) {
	res, err := r.render(ctx, title, body, outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRender, err)
	}
	return res, nil
}

func (r *Renderer) render(ctx context.Context, title, body, outPath string) (*Result, error) {
	renderLog := r.log.WithField("pdf", outPath)
	start := time.Now()

	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, outDir, err)
	}

	doc, err := BuildDocument(title, body, r.cfg.MarginMM)
	if err != nil {
		return nil, fmt.Errorf("%w: building document: %w", utils.ErrParsing, err)
	}

	htmlPath, err := writeTemp(outDir, ".quiz-*.html", []byte(doc))
	if err != nil {
		return nil, err
	}
	keepHTML := false
	defer func() {
		if !keepHTML {
			os.Remove(htmlPath)
		}
	}()

	fileURL, err := toFileURL(htmlPath)
	if err != nil {
		return nil, err
	}
	if err := r.page.Load(ctx, fileURL); err != nil {
		return nil, err
	}
	if err := r.page.Execute(ctx, browser.ScrollToBottomScript); err != nil {
		return nil, err
	}
	renderLog.Debugf("Waiting %v for images to settle", r.cfg.RenderSettle)
	if err := utils.SleepContext(ctx, r.cfg.RenderSettle); err != nil {
		return nil, err
	}

	tmpPDF, err := writeTemp(outDir, ".quiz-*.pdf", nil)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPDF) // no-op after a successful rename

	if err := r.page.ExportPDF(ctx, tmpPDF, browser.A4(r.cfg.MarginMM)); err != nil {
		return nil, err
	}

	res := &Result{Path: outPath}
	if r.cfg.VerifyEnabled() {
		pages, err := VerifyPDF(tmpPDF)
		if err != nil {
			return nil, err
		}
		res.Pages = pages
	}

	if err := os.Rename(tmpPDF, outPath); err != nil {
		return nil, fmt.Errorf("%w: moving PDF into place: %w", utils.ErrFilesystem, err)
	}
	if info, err := os.Stat(outPath); err == nil {
		res.Bytes = info.Size()
	}

	if r.cfg.KeepHTML {
		keptPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".html"
		if err := os.Rename(htmlPath, keptPath); err != nil {
			renderLog.Warnf("Failed to keep rendered HTML: %v", err)
		} else {
			keepHTML = true
			res.HTMLPath = keptPath
		}
	}

	renderLog.WithFields(logrus.Fields{
		"pages":    res.Pages,
		"bytes":    res.Bytes,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("PDF written")
	return res, nil
}

// VerifyPDF validates a PDF file and returns its page count
func VerifyPDF(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("invalid PDF '%s': %w", path, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages of '%s': %w", path, err)
	}
	if pages == 0 {
		return 0, errors.New("PDF has no pages")
	}
	return pages, nil
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %w", utils.ErrFilesystem, err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("%w: writing temp file: %w", utils.ErrFilesystem, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("%w: closing temp file: %w", utils.ErrFilesystem, err)
	}
	return name, nil
}

func toFileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolving '%s': %w", utils.ErrFilesystem, path, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}
