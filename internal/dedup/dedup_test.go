package dedup

import (
	"context"
	"errors"
	"testing"
)

type fakeOriginLookup struct {
	existing []string
	err      error
}

func (f *fakeOriginLookup) GetExistingOriginFiles(ctx context.Context, companyID int64, fileType string, filenames []string) ([]string, error) {
	return f.existing, f.err
}

func TestCheckNoDuplicates(t *testing.T) {
	c := NewChecker(&fakeOriginLookup{})
	if err := c.Check(context.Background(), 1, "OFX", []string{"extrato.ofx"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckEmptyFilenames(t *testing.T) {
	c := NewChecker(&fakeOriginLookup{err: errors.New("should not be called")})
	if err := c.Check(context.Background(), 1, "OFX", nil); err != nil {
		t.Errorf("empty filename set must short-circuit, got %v", err)
	}
}

func TestCheckDuplicates(t *testing.T) {
	c := NewChecker(&fakeOriginLookup{existing: []string{"extrato.ofx"}})

	err := c.Check(context.Background(), 7, "OFX", []string{"extrato.ofx", "outro.ofx"})
	if err == nil {
		t.Fatal("expected duplicate error")
	}

	if !errors.Is(err, ErrDuplicateFile) {
		t.Error("err must match ErrDuplicateFile sentinel")
	}

	var dupErr *DuplicateFileError
	if !errors.As(err, &dupErr) {
		t.Fatal("err must be a *DuplicateFileError")
	}
	if dupErr.CompanyID != 7 || dupErr.FileType != "OFX" {
		t.Errorf("error context = (%d, %s), want (7, OFX)", dupErr.CompanyID, dupErr.FileType)
	}
	if len(dupErr.Files) != 1 || dupErr.Files[0] != "extrato.ofx" {
		t.Errorf("files = %v, want [extrato.ofx]", dupErr.Files)
	}
}

func TestCheckLookupError(t *testing.T) {
	wantErr := errors.New("db down")
	c := NewChecker(&fakeOriginLookup{err: wantErr})

	err := c.Check(context.Background(), 1, "OFX", []string{"a.ofx"})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
	if errors.Is(err, ErrDuplicateFile) {
		t.Error("lookup failure must not read as a duplicate signal")
	}
}
