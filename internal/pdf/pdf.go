// Package pdf wraps pdfcpu for the document transforms the bot exposes:
// the ordered batch merge behind /merge and the optimize pass behind
// /compress.
package pdf

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/nibras/valet/internal/merge"
)

// Merger implements merge.Merger using pdfcpu. The output contains all
// pages of all inputs in input order.
type Merger struct{}

// Merge validates each input, then merges them into outPath. Validation
// happens up front so a corrupt document is reported by its arrival
// position instead of as an opaque mid-merge failure. Fatal on first
// error: a bad input aborts the whole merge.
func (Merger) Merge(ctx context.Context, paths []string, outPath string) error {
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := api.ValidateFile(p, nil); err != nil {
			return &merge.MalformedInputError{Position: i + 1, Err: err}
		}
	}
	if err := api.MergeCreateFile(paths, outPath, false, nil); err != nil {
		return fmt.Errorf("pdf: merge %d files: %w", len(paths), err)
	}
	return nil
}

// Compress rewrites inPath to outPath with pdfcpu's optimizer (dedupes
// resources, drops unused objects).
func Compress(inPath, outPath string) error {
	if err := api.ValidateFile(inPath, nil); err != nil {
		return fmt.Errorf("pdf: %s is not a valid PDF: %w", inPath, err)
	}
	if err := api.OptimizeFile(inPath, outPath, nil); err != nil {
		return fmt.Errorf("pdf: optimize %s: %w", inPath, err)
	}
	return nil
}
