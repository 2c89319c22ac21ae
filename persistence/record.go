package persistence

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
)

// ErrMalformedRecord is matched by every MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed tree record")

// MalformedRecordError reports a stored tree that could not be turned back into an anchor.
type MalformedRecordError struct {
	Index int
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s %d: field %q: %v", ErrMalformedRecord, e.Index, e.Field, e.Err)
}

// Unwrap exposes both ErrMalformedRecord and the underlying cause to errors.Is.
func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

var recordFields = [4]string{"first", "second", "third", "forth"}

// EncodeAnchor converts an anchor to its stored form.
func EncodeAnchor(anchor scene.NamedAnchor) TreeRecord {
	cols := spatialmath.PoseToColumns(anchor.Pose)
	return TreeRecord{
		Name:   anchor.Name,
		First:  cols[spatialmath.BasisX],
		Second: cols[spatialmath.BasisY],
		Third:  cols[spatialmath.BasisZ],
		Forth:  cols[spatialmath.TranslationColumn],
	}
}

// DecodeRecord converts the stored tree at index back to an anchor with a fresh identifier.
func DecodeRecord(index int, rec TreeRecord) (scene.NamedAnchor, error) {
	if rec.Name == "" {
		return scene.NamedAnchor{}, &MalformedRecordError{Index: index, Field: "name", Err: scene.ErrEmptyName}
	}
	cols := [4]string{rec.First, rec.Second, rec.Third, rec.Forth}
	for i, col := range cols {
		if _, err := spatialmath.ColumnFromString(col); err != nil {
			return scene.NamedAnchor{}, &MalformedRecordError{Index: index, Field: recordFields[i], Err: err}
		}
	}
	pose, err := spatialmath.PoseFromColumns(cols)
	if err != nil {
		return scene.NamedAnchor{}, &MalformedRecordError{Index: index, Err: err}
	}
	return scene.NamedAnchor{ID: uuid.New(), Name: rec.Name, Pose: pose}, nil
}

// DecodeRecords decodes every record, skipping the malformed ones. The skipped records are
// reported separately so that one bad tree does not lose a whole project.
func DecodeRecords(recs []TreeRecord) ([]scene.NamedAnchor, []error) {
	anchors := make([]scene.NamedAnchor, 0, len(recs))
	var malformed []error
	for i, rec := range recs {
		anchor, err := DecodeRecord(i, rec)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		anchors = append(anchors, anchor)
	}
	return anchors, malformed
}
