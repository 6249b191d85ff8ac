package models

// LabelView is the API shape of a [Label].
type LabelView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CsvfileView is the API shape of a [Csvfile] in lists and detail responses.
type CsvfileView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LabelCol    int    `json:"labelcol"`
	ImgColStart int    `json:"imgcolstart"`
	ImgColEnd   int    `json:"imgcolend"`
	File        string `json:"file"`
}

// CsvfileFileView is returned by a successful upload.
type CsvfileFileView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	File        string `json:"file"`
	LabelCol    int    `json:"labelcol"`
	ImgColStart int    `json:"imgcolstart"`
	ImgColEnd   int    `json:"imgcolend"`
}

// DatasetView references labels and csvfiles by ID.
type DatasetView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Csvfiles    []string `json:"csvfiles"`
}

// DatasetDetailView nests the full label and csvfile views.
type DatasetDetailView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Labels      []LabelView   `json:"labels"`
	Csvfiles    []CsvfileView `json:"csvfiles"`
}

// ImageView references its csvfile and label by ID.
type ImageView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Csvfile  string `json:"csvfile"`
	Row      int    `json:"row"`
	Label    string `json:"label"`
	Image    string `json:"image"`
	ImgArray string `json:"img_array"`
}

// ImageDetailView nests the csvfile and label views.
type ImageDetailView struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Csvfile  CsvfileView `json:"csvfile"`
	Row      int         `json:"row"`
	Label    LabelView   `json:"label"`
	Image    string      `json:"image"`
	ImgArray string      `json:"img_array"`
}

func NewLabelView(l *Label) LabelView {
	return LabelView{ID: l.ID(), Name: l.Name()}
}

func NewCsvfileView(c *Csvfile) CsvfileView {
	return CsvfileView{
		ID:          c.ID(),
		Name:        c.Name(),
		Description: c.Description(),
		LabelCol:    c.LabelCol(),
		ImgColStart: c.ImgColStart(),
		ImgColEnd:   c.ImgColEnd(),
		File:        c.File(),
	}
}

func NewCsvfileFileView(c *Csvfile) CsvfileFileView {
	return CsvfileFileView{
		ID:          c.ID(),
		Name:        c.Name(),
		File:        c.File(),
		LabelCol:    c.LabelCol(),
		ImgColStart: c.ImgColStart(),
		ImgColEnd:   c.ImgColEnd(),
	}
}

func NewDatasetView(d *Dataset) DatasetView {
	return DatasetView{
		ID:          d.ID(),
		Name:        d.Name(),
		Description: d.Description(),
		Labels:      nonNil(d.LabelIDs()),
		Csvfiles:    nonNil(d.CsvfileIDs()),
	}
}

// NewDatasetDetailView expects labels and csvfiles already loaded for d.
func NewDatasetDetailView(d *Dataset, labels []*Label, csvfiles []*Csvfile) DatasetDetailView {
	view := DatasetDetailView{
		ID:          d.ID(),
		Name:        d.Name(),
		Description: d.Description(),
		Labels:      make([]LabelView, 0, len(labels)),
		Csvfiles:    make([]CsvfileView, 0, len(csvfiles)),
	}
	for _, l := range labels {
		view.Labels = append(view.Labels, NewLabelView(l))
	}
	for _, c := range csvfiles {
		view.Csvfiles = append(view.Csvfiles, NewCsvfileView(c))
	}
	return view
}

func NewImageView(i *Image) ImageView {
	return ImageView{
		ID:       i.ID(),
		Name:     i.Name(),
		Csvfile:  i.CsvfileID(),
		Row:      i.Row(),
		Label:    i.LabelID(),
		Image:    i.ImagePath(),
		ImgArray: i.ArrayPath(),
	}
}

func NewImageDetailView(i *Image, c *Csvfile, l *Label) ImageDetailView {
	return ImageDetailView{
		ID:       i.ID(),
		Name:     i.Name(),
		Csvfile:  NewCsvfileView(c),
		Row:      i.Row(),
		Label:    NewLabelView(l),
		Image:    i.ImagePath(),
		ImgArray: i.ArrayPath(),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
