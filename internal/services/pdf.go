package services

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ValidateSeedPDF checks that path is a readable PDF and returns its page
// count. Validation is relaxed, matching what generation accepts.
func ValidateSeedPDF(path string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, fmt.Errorf("%s is not a valid PDF: %w", path, err)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count of %s: %w", path, err)
	}
	if pageCount == 0 {
		return 0, fmt.Errorf("%s has no pages", path)
	}
	return pageCount, nil
}
