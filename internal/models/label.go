package models

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/shared"
)

// Label is a class name. CSV rows reference labels by exact name.
type Label struct {
	record
	userID string
	name   string
}

// NewLabel creates a [Label] owned by userID.
func NewLabel(sequence int, userID, name string) *Label {
	return &Label{record: newRecord(sequence), userID: userID, name: name}
}

func (l *Label) UserID() string { return l.userID }
func (l *Label) Name() string   { return l.name }

func (l *Label) SetName(name string) { l.name = name }

func (l *Label) Validate() error {
	if l.id == "" {
		return fmt.Errorf("%w: label ID is required", shared.ErrInvalidInput)
	}
	if l.userID == "" {
		return fmt.Errorf("%w: label owner is required", shared.ErrInvalidInput)
	}
	if l.name == "" {
		return fmt.Errorf("%w: label name is required", shared.ErrInvalidInput)
	}
	return nil
}
