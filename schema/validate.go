package schema

import (
	"fmt"

	"marketstore/models"
)

// MissingDescriptorError reports a table with no asset_class column.
// Without the descriptor the asset-class-conditional checks cannot
// run, so this is detected before any field check.
type MissingDescriptorError struct {
	Column string
}

func (e *MissingDescriptorError) Error() string {
	return fmt.Sprintf("column %s not found", e.Column)
}

// ValidationError reports the first canonical field missing for the
// table's kind and asset class.
type ValidationError struct {
	Kind   models.Kind
	Column string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("column %s not found for %s data", e.Column, e.Kind)
}

// ValidateColumns checks a table against the canonical column set for
// the declared kind. Option fields are required whenever any row is
// tagged with the option asset class; non-option fields are required
// only when none is. The first missing field aborts the check.
func ValidateColumns(t *models.Table, kind models.Kind) error {
	return ValidateMapped(t, kind, ForKind(kind))
}

// ValidateMapped runs the column check against an arbitrary map so
// callers can verify source columns before renaming them.
func ValidateMapped(t *models.Table, kind models.Kind, colmap ColumnMap) error {
	if !t.HasColumn(models.ColAssetClass) {
		return &MissingDescriptorError{Column: models.ColAssetClass}
	}

	isOption := false
	for _, class := range t.Distinct(models.ColAssetClass) {
		if models.AssetClass(class) == models.AssetOption {
			isOption = true
			break
		}
	}

	for _, col := range colmap {
		if t.HasColumn(col.Source) {
			continue
		}
		if IsOptionColumn(col.Name) && isOption {
			return &ValidationError{Kind: kind, Column: col.Name}
		}
		if !IsOptionColumn(col.Name) && !isOption {
			return &ValidationError{Kind: kind, Column: col.Name}
		}
	}
	return nil
}
