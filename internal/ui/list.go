package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/imgset/internal/models"
)

var _ list.Item = csvfileItem{}

// csvfileItem wraps [models.Csvfile] to implement [list.Item].
type csvfileItem struct {
	csvfile *models.Csvfile
}

func (i csvfileItem) FilterValue() string { return i.csvfile.Name() }
func (i csvfileItem) Title() string       { return i.csvfile.Name() }
func (i csvfileItem) Description() string {
	desc := fmt.Sprintf("label col %d • pixels %d-%d", i.csvfile.LabelCol(), i.csvfile.ImgColStart(), i.csvfile.ImgColEnd())
	if i.csvfile.Description() != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.csvfile.Description())
	}
	return desc
}
