package models

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/shared"
)

// Dataset groups labels and csvfiles. Membership is unordered.
type Dataset struct {
	record
	userID      string
	name        string
	description string
	labelIDs    []string
	csvfileIDs  []string
}

// NewDataset creates a [Dataset] owned by userID.
func NewDataset(sequence int, userID, name, description string, labelIDs, csvfileIDs []string) *Dataset {
	return &Dataset{
		record:      newRecord(sequence),
		userID:      userID,
		name:        name,
		description: description,
		labelIDs:    labelIDs,
		csvfileIDs:  csvfileIDs,
	}
}

func (d *Dataset) UserID() string       { return d.userID }
func (d *Dataset) Name() string         { return d.name }
func (d *Dataset) Description() string  { return d.description }
func (d *Dataset) LabelIDs() []string   { return d.labelIDs }
func (d *Dataset) CsvfileIDs() []string { return d.csvfileIDs }

func (d *Dataset) SetName(name string)               { d.name = name }
func (d *Dataset) SetDescription(description string) { d.description = description }
func (d *Dataset) SetLabelIDs(ids []string)          { d.labelIDs = ids }
func (d *Dataset) SetCsvfileIDs(ids []string)        { d.csvfileIDs = ids }

func (d *Dataset) Validate() error {
	if d.id == "" {
		return fmt.Errorf("%w: dataset ID is required", shared.ErrInvalidInput)
	}
	if d.userID == "" {
		return fmt.Errorf("%w: dataset owner is required", shared.ErrInvalidInput)
	}
	if d.name == "" {
		return fmt.Errorf("%w: dataset name is required", shared.ErrInvalidInput)
	}
	return nil
}
