package models

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/shared"
)

// Csvfile is an uploaded CSV source file plus its column layout.
//
// LabelCol, ImgColStart and ImgColEnd are zero-based; the pixel range is inclusive.
type Csvfile struct {
	record
	userID      string
	name        string
	description string
	labelCol    int
	imgColStart int
	imgColEnd   int
	file        string
}

// NewCsvfile creates a [Csvfile] owned by userID with no file attached yet.
func NewCsvfile(sequence int, userID, name, description string, labelCol, imgColStart, imgColEnd int) *Csvfile {
	return &Csvfile{
		record:      newRecord(sequence),
		userID:      userID,
		name:        name,
		description: description,
		labelCol:    labelCol,
		imgColStart: imgColStart,
		imgColEnd:   imgColEnd,
	}
}

func (c *Csvfile) UserID() string      { return c.userID }
func (c *Csvfile) Name() string        { return c.name }
func (c *Csvfile) Description() string { return c.description }
func (c *Csvfile) LabelCol() int       { return c.labelCol }
func (c *Csvfile) ImgColStart() int    { return c.imgColStart }
func (c *Csvfile) ImgColEnd() int      { return c.imgColEnd }

// File returns the storage key of the uploaded CSV, empty until an upload succeeds.
func (c *Csvfile) File() string { return c.file }

func (c *Csvfile) SetName(name string)               { c.name = name }
func (c *Csvfile) SetDescription(description string) { c.description = description }
func (c *Csvfile) SetFile(key string)                { c.file = key }

// Validate checks required fields and column indices.
//
// The perfect-square requirement on the pixel range is enforced at upload time, not here.
func (c *Csvfile) Validate() error {
	if c.id == "" {
		return fmt.Errorf("%w: csvfile ID is required", shared.ErrInvalidInput)
	}
	if c.userID == "" {
		return fmt.Errorf("%w: csvfile owner is required", shared.ErrInvalidInput)
	}
	if c.name == "" {
		return fmt.Errorf("%w: csvfile name is required", shared.ErrInvalidInput)
	}
	if c.labelCol < 0 || c.imgColStart < 0 || c.imgColEnd < 0 {
		return fmt.Errorf("%w: column indices must be non-negative", shared.ErrInvalidInput)
	}
	if c.imgColEnd < c.imgColStart {
		return fmt.Errorf("%w: imgcolend %d is before imgcolstart %d", shared.ErrInvalidInput, c.imgColEnd, c.imgColStart)
	}
	return nil
}
