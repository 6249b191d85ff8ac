package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/imgset/internal/models"
	th "github.com/desertthunder/imgset/internal/testing"
)

func TestExporters(t *testing.T) {
	t.Run("ImagesToCSV", func(t *testing.T) {
		images := []models.ImageView{
			{ID: "img1", Name: "csv1_0", Csvfile: "csv1", Row: 0, Label: "lbl1", Image: "uploads/dataset/a.bmp", ImgArray: "uploads/dataset/a.bin"},
			{ID: "img2", Name: "csv1_1", Csvfile: "csv1", Row: 1, Label: "lbl2", Image: "uploads/dataset/b.bmp", ImgArray: "uploads/dataset/b.bin"},
		}

		data, err := ImagesToCSV(images)
		if err != nil {
			t.Fatalf("ImagesToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Name,Csvfile,Row,Label,Image,Array\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "img2,csv1_1,csv1,1,lbl2,uploads/dataset/b.bmp,uploads/dataset/b.bin") {
			t.Errorf("CSV missing second image, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 3 {
			t.Errorf("expected 3 lines, got %d", lines)
		}
	})

	t.Run("ImagesToCSVEmpty", func(t *testing.T) {
		data, err := ImagesToCSV(nil)
		if err != nil {
			t.Fatalf("ImagesToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected header only, got: %s", data)
		}
	})

	t.Run("DatasetToMarkdown", func(t *testing.T) {
		dataset := models.DatasetDetailView{
			ID:          "ds1",
			Name:        "Digits",
			Description: "handwritten digits",
			Labels:      []models.LabelView{{ID: "l7", Name: "seven"}, {ID: "l1", Name: "one"}},
			Csvfiles:    []models.CsvfileView{{ID: "c1", Name: "train", LabelCol: 0, ImgColStart: 1, ImgColEnd: 784}},
		}

		data, err := DatasetToMarkdown(dataset, map[string]int{"l7": 1200, "l1": 3})
		if err != nil {
			t.Fatalf("DatasetToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Digits",
			"**Description**: handwritten digits",
			"**Images**: 1,203",
			"- one (3)\n- seven (1200)",
			"- train: label column 0, 784 pixels",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("DatasetToMarkdownNoDescription", func(t *testing.T) {
		data, err := DatasetToMarkdown(models.DatasetDetailView{Name: "Empty"}, nil)
		if err != nil {
			t.Fatalf("DatasetToMarkdown failed: %v", err)
		}
		if strings.Contains(string(data), "Description") {
			t.Errorf("unexpected description line in:\n%s", data)
		}
		if strings.Contains(string(data), "Source files") {
			t.Errorf("unexpected source files section in:\n%s", data)
		}
	})
}

func TestWriters(t *testing.T) {
	manifest := &ExportManifest{
		DatasetID:   "ds1",
		DatasetName: "Digits",
		ExportedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Total:       2,
		Successful:  1,
		Failed:      1,
		Bytes:       2048,
		Entries: []ManifestEntry{
			{ImageID: "img1", Name: "c1_0", Label: "seven", Files: []string{"out/seven/c1_0.bmp", "out/seven/c1_0.bin"}},
			{ImageID: "img2", Name: "c1_1", Label: "one", Files: []string{}, Error: "storage failure"},
		},
	}

	t.Run("JSONManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		if err := WriteExportManifest(manifest, "json", path); err != nil {
			t.Fatalf("WriteExportManifest failed: %v", err)
		}

		var decoded ExportManifest
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("manifest is not valid JSON: %v", err)
		}
		if decoded.Failed != 1 || decoded.Entries[1].Error != "storage failure" {
			t.Errorf("unexpected manifest %+v", decoded)
		}
	})

	t.Run("CSVManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.csv")
		if err := WriteExportManifest(manifest, "csv", path); err != nil {
			t.Fatalf("WriteExportManifest failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		if !strings.Contains(content, "img1,c1_0,seven,out/seven/c1_0.bmp;out/seven/c1_0.bin,") {
			t.Errorf("CSV manifest missing joined files, got:\n%s", content)
		}
	})

	t.Run("ManifestBadPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "manifest.json")
		if err := WriteExportManifest(manifest, "json", path); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})

	t.Run("DatasetReadme", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "export")
		path, err := WriteDatasetReadme(dir, models.DatasetDetailView{Name: "Digits"}, nil)
		if err != nil {
			t.Fatalf("WriteDatasetReadme failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if filepath.Base(path) != "README.md" {
			t.Errorf("expected README.md, got %s", path)
		}
	})
}

func TestTable(t *testing.T) {
	out := Table([]string{"ID", "Name"}, [][]string{{"1", "cat"}, {"2", "dog"}})
	for _, want := range []string{"ID", "Name", "cat", "dog"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines < 4 {
		t.Errorf("expected bordered rows, got %d lines:\n%s", lines, out)
	}
}

func TestSize(t *testing.T) {
	if got := Size(2048); got != "2.0 kB" {
		t.Errorf("Size(2048) = %q", got)
	}
	if got := Size(-5); got != "0 B" {
		t.Errorf("Size(-5) = %q", got)
	}
}
