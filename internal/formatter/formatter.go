// package formatter renders images, datasets and export manifests for the CLI (table, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/imgset/internal/models"
)

// Table renders rows under headers as a bordered terminal table.
func Table(headers []string, rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.String()
}

// ImagesToCSV converts image views to CSV with columns: ID, Name, Csvfile, Row, Label, Image, Array
func ImagesToCSV(images []models.ImageView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Csvfile", "Row", "Label", "Image", "Array"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, image := range images {
		record := []string{
			image.ID,
			image.Name,
			image.Csvfile,
			strconv.Itoa(image.Row),
			image.Label,
			image.Image,
			image.ImgArray,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DatasetToMarkdown describes a dataset and how many images each label holds.
func DatasetToMarkdown(dataset models.DatasetDetailView, counts map[string]int) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", dataset.Name))

	if dataset.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", dataset.Description))
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	buf.WriteString(fmt.Sprintf("**Images**: %s\n", humanize.Comma(int64(total))))
	buf.WriteString(fmt.Sprintf("**Source files**: %d\n\n", len(dataset.Csvfiles)))

	buf.WriteString("## Labels\n\n")
	labels := append([]models.LabelView(nil), dataset.Labels...)
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	for _, label := range labels {
		buf.WriteString(fmt.Sprintf("- %s (%d)\n", label.Name, counts[label.ID]))
	}

	if len(dataset.Csvfiles) > 0 {
		buf.WriteString("\n## Source files\n\n")
		for _, c := range dataset.Csvfiles {
			side := "?"
			if n := c.ImgColEnd - c.ImgColStart + 1; n > 0 {
				side = fmt.Sprintf("%d pixels", n)
			}
			buf.WriteString(fmt.Sprintf("- %s: label column %d, %s\n", c.Name, c.LabelCol, side))
		}
	}

	return buf.Bytes(), nil
}

// ManifestEntry records the files written for one image.
type ManifestEntry struct {
	ImageID string   `json:"image_id"`
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Files   []string `json:"files"`
	Error   string   `json:"error,omitempty"`
}

// ExportManifest summarizes a dataset export.
type ExportManifest struct {
	DatasetID   string          `json:"dataset_id"`
	DatasetName string          `json:"dataset_name"`
	ExportedAt  time.Time       `json:"exported_at"`
	Total       int             `json:"total"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	Bytes       int64           `json:"bytes"`
	Entries     []ManifestEntry `json:"entries"`
}

// WriteExportManifest writes manifest to path as JSON, or as CSV when format is "csv".
func WriteExportManifest(manifest *ExportManifest, format, path string) error {
	var (
		data []byte
		err  error
	)

	switch format {
	case "csv":
		data, err = manifestToCSV(manifest)
	default:
		data, err = json.MarshalIndent(manifest, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func manifestToCSV(manifest *ExportManifest) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ImageID", "Name", "Label", "Files", "Error"}); err != nil {
		return nil, err
	}
	for _, e := range manifest.Entries {
		if err := writer.Write([]string{e.ImageID, e.Name, e.Label, strings.Join(e.Files, ";"), e.Error}); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// WriteDatasetReadme writes {dir}/README.md for dataset and returns its path.
func WriteDatasetReadme(dir string, dataset models.DatasetDetailView, counts map[string]int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := DatasetToMarkdown(dataset, counts)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return path, nil
}

// Size formats a byte count for humans, e.g. "1.2 MB".
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
