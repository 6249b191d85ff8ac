package models

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/shared"
)

// ImageKey is the upsert key of an [Image]: re-processing the same row of the same csvfile
// with the same label always lands on the same record.
type ImageKey struct {
	UserID    string
	Name      string
	CsvfileID string
	Row       int
	LabelID   string
}

// NewImageKey derives the key for row of csvfileID, naming the image "{csvfileID}_{row}".
func NewImageKey(userID, csvfileID string, row int, labelID string) ImageKey {
	return ImageKey{
		UserID:    userID,
		Name:      ImageName(csvfileID, row),
		CsvfileID: csvfileID,
		Row:       row,
		LabelID:   labelID,
	}
}

// ImageName is the deterministic name of the image converted from row of csvfileID.
func ImageName(csvfileID string, row int) string {
	return fmt.Sprintf("%s_%d", csvfileID, row)
}

// Image is a single CSV row converted to a bitmap and a normalized array.
type Image struct {
	record
	key       ImageKey
	imagePath string
	arrayPath string
}

// NewImage creates an [Image] for key with no artifacts attached.
func NewImage(sequence int, key ImageKey) *Image {
	return &Image{record: newRecord(sequence), key: key}
}

func (i *Image) Key() ImageKey     { return i.key }
func (i *Image) UserID() string    { return i.key.UserID }
func (i *Image) Name() string      { return i.key.Name }
func (i *Image) CsvfileID() string { return i.key.CsvfileID }
func (i *Image) Row() int          { return i.key.Row }
func (i *Image) LabelID() string   { return i.key.LabelID }

// ImagePath is the storage key of the encoded bitmap.
func (i *Image) ImagePath() string { return i.imagePath }

// ArrayPath is the storage key of the normalized array.
func (i *Image) ArrayPath() string { return i.arrayPath }

// SetArtifacts attaches both blob keys at once.
func (i *Image) SetArtifacts(imagePath, arrayPath string) {
	i.imagePath = imagePath
	i.arrayPath = arrayPath
}

func (i *Image) Validate() error {
	switch {
	case i.id == "":
		return fmt.Errorf("%w: image ID is required", shared.ErrInvalidInput)
	case i.key.UserID == "":
		return fmt.Errorf("%w: image owner is required", shared.ErrInvalidInput)
	case i.key.CsvfileID == "":
		return fmt.Errorf("%w: image csvfile is required", shared.ErrInvalidInput)
	case i.key.LabelID == "":
		return fmt.Errorf("%w: image label is required", shared.ErrInvalidInput)
	case i.key.Row < 0:
		return fmt.Errorf("%w: image row must be non-negative", shared.ErrInvalidInput)
	case i.key.Name != ImageName(i.key.CsvfileID, i.key.Row):
		return fmt.Errorf("%w: image name %q does not match csvfile and row", shared.ErrInvalidInput, i.key.Name)
	}
	return nil
}
