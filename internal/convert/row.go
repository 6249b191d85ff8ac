package convert

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/shared"
)

// Decode extracts the label token and the pixel tokens row[start:endExclusive].
//
// The label is returned verbatim. A row too short to hold either wraps [shared.ErrMalformedRow].
func Decode(row []string, labelcol, start, endExclusive int) (string, []string, error) {
	if labelcol < 0 || start < 0 || endExclusive < start {
		return "", nil, fmt.Errorf("%w: invalid column layout", shared.ErrMalformedRow)
	}

	need := max(labelcol, endExclusive-1) + 1
	if len(row) < need {
		return "", nil, fmt.Errorf("%w: expected at least %d columns, got %d", shared.ErrMalformedRow, need, len(row))
	}

	return row[labelcol], row[start:endExclusive], nil
}
