// Package dedup decides whether an origin file was already imported for a
// company, so a re-upload never double-counts rows. It has no side effects:
// it only signals; skipping versus force-reimporting is the caller's call.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateFile is the sentinel matched by errors.Is for duplicate-file
// signals.
var ErrDuplicateFile = errors.New("duplicate file")

// DuplicateFileError lists the origin files already present for the
// company/category. Non-fatal by design: a corrected re-upload with the
// same name is legitimate, and the engine does not infer intent.
type DuplicateFileError struct {
	CompanyID int64
	FileType  string
	Files     []string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("duplicate %s file(s) for company %d: %s",
		e.FileType, e.CompanyID, strings.Join(e.Files, ", "))
}

func (e *DuplicateFileError) Is(target error) bool {
	return target == ErrDuplicateFile
}

// OriginLookup reads the origin filenames already persisted for one
// company and file category.
type OriginLookup interface {
	GetExistingOriginFiles(ctx context.Context, companyID int64, fileType string, filenames []string) ([]string, error)
}

type Checker struct {
	repo OriginLookup
}

func NewChecker(repo OriginLookup) *Checker {
	return &Checker{repo: repo}
}

// Check returns a DuplicateFileError when any of the candidate filenames
// was already imported for the company. The whole batch is rejected as a
// unit; partial re-imports are never suggested.
func (c *Checker) Check(ctx context.Context, companyID int64, fileType string, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	existing, err := c.repo.GetExistingOriginFiles(ctx, companyID, fileType, filenames)
	if err != nil {
		return fmt.Errorf("failed to check existing files: %w", err)
	}
	if len(existing) > 0 {
		return &DuplicateFileError{CompanyID: companyID, FileType: fileType, Files: existing}
	}
	return nil
}
