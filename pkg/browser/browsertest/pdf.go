package browsertest

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// SamplePDF builds a valid PDF with one page per image, for use as PDFPage.Output.
// Scratch files are written to dir.
func SamplePDF(dir string, pages int) ([]byte, error) {
	if pages < 1 {
		pages = 1
	}
	imgs := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		img.Set(i%8, i%8, color.RGBA{R: 0x1a, G: 0x25, B: 0x2f, A: 0xff})

		path := filepath.Join(dir, "page"+string(rune('a'+i%26))+".png")
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		imgs = append(imgs, path)
	}

	out := filepath.Join(dir, "sample.pdf")
	if err := api.ImportImagesFile(imgs, out, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}
