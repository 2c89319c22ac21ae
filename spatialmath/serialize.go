package spatialmath

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// ColumnSeparator joins the four components of a stored pose column.
const ColumnSeparator = ";"

// ErrMalformedColumn is returned when a stored column is not exactly four finite numbers.
var ErrMalformedColumn = errors.New("pose column must be four numbers separated by ';'")

// ColumnToString encodes a column as "x;y;z;w" using the shortest representation that parses
// back to the same value.
func ColumnToString(c mgl64.Vec4) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ColumnSeparator)
}

// ColumnFromString parses the output of ColumnToString.
func ColumnFromString(s string) (mgl64.Vec4, error) {
	var c mgl64.Vec4
	parts := strings.Split(s, ColumnSeparator)
	if len(parts) != len(c) {
		return c, errors.Wrapf(ErrMalformedColumn, "got %d components in %q", len(parts), s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return c, errors.Wrapf(ErrMalformedColumn, "component %d of %q: %v", i, s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return c, errors.Wrapf(ErrMalformedColumn, "component %d of %q is not finite", i, s)
		}
		c[i] = v
	}
	return c, nil
}

// PoseToColumns encodes the basis X, basis Y, basis Z and translation columns, in that order.
func PoseToColumns(p Pose) [4]string {
	var out [4]string
	for i := range out {
		out[i] = ColumnToString(p.Column(i))
	}
	return out
}

// PoseFromColumns is the inverse of PoseToColumns. The stored w components are kept as is so
// that a round trip reproduces all sixteen values.
func PoseFromColumns(cols [4]string) (Pose, error) {
	var parsed [4]mgl64.Vec4
	for i, s := range cols {
		c, err := ColumnFromString(s)
		if err != nil {
			return Pose{}, errors.Wrapf(err, "column %d", i)
		}
		parsed[i] = c
	}
	return Pose{mgl64.Mat4FromCols(parsed[0], parsed[1], parsed[2], parsed[3])}, nil
}
