package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/imgset/internal/formatter"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
)

// BlobReader reads stored artifacts. Implemented by [storage.Store].
type BlobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// ExportOpts contains configuration for dataset exports.
type ExportOpts struct {
	OutputDir      string  // Base output directory (default: dataset_export_{epoch})
	Arrays         bool    // Also write normalized arrays next to the bitmaps
	ManifestFormat string  // Manifest format: json or csv
	NumWorkers     int     // Concurrent workers (default: 4)
	RateLimit      float64 // Blob reads per second (default: 50)
}

// ExportJob is one image queued for export.
type ExportJob struct {
	Image *models.Image
	Label string
	Dir   string // label directory under the output directory
}

// ImageExportResult is the outcome of exporting one image.
type ImageExportResult struct {
	ImageID string
	Name    string
	LabelID string
	Label   string
	Files   []string
	Bytes   int64
	Success bool
	Error   error
}

// ExportResult summarizes a dataset export.
type ExportResult struct {
	Dataset           models.DatasetDetailView
	TotalImages       int
	SuccessfulExports int
	FailedExports     int
	Bytes             int64
	OutputDirectory   string
	ManifestPath      string
	ReadmePath        string
	Results           []ImageExportResult
}

// DatasetExporter writes a dataset's images to disk, one directory per label.
type DatasetExporter struct {
	labels   *repositories.LabelRepository
	csvfiles *repositories.CsvfileRepository
	images   *repositories.ImageRepository
	store    BlobReader
	logger   *log.Logger
}

// NewDatasetExporter creates a [DatasetExporter].
func NewDatasetExporter(
	labels *repositories.LabelRepository,
	csvfiles *repositories.CsvfileRepository,
	images *repositories.ImageRepository,
	store BlobReader,
	logger *log.Logger,
) *DatasetExporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DatasetExporter{labels: labels, csvfiles: csvfiles, images: images, store: store, logger: logger}
}

// Export copies every image whose csvfile and label both belong to dataset into opts.OutputDir.
//
// Images are fetched by a worker pool with rate limited blob reads. Individual failures are
// recorded in the result and the manifest rather than aborting the export.
func (e *DatasetExporter) Export(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	dataset *models.Dataset,
	opts ExportOpts,
) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("dataset_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 16 {
		opts.NumWorkers = 16
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50.0
	}

	labels, err := e.labels.List(ctx, map[string]any{"ids": dataset.LabelIDs(), "include_deleted": true})
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	csvfiles, err := e.csvfiles.List(ctx, map[string]any{"ids": dataset.CsvfileIDs()})
	if err != nil {
		return nil, fmt.Errorf("failed to load csvfiles: %w", err)
	}

	images, err := e.images.List(ctx, map[string]any{
		"user_id":     dataset.UserID(),
		"csvfile_ids": dataset.CsvfileIDs(),
		"label_ids":   dataset.LabelIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	labelNames := make(map[string]string, len(labels))
	for _, l := range labels {
		labelNames[l.ID()] = l.Name()
	}
	labelDirs := labelDirectories(labels)

	result := &ExportResult{
		Dataset:         models.NewDatasetDetailView(dataset, labels, csvfiles),
		TotalImages:     len(images),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ImageExportResult, 0, len(images)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), opts.NumWorkers)

	jobs := make(chan ExportJob, len(images))
	results := make(chan ImageExportResult, len(images))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	sendProgress(prog, exportStartedUpdate(len(images), dataset.Name()))
	for _, image := range images {
		dir, ok := labelDirs[image.LabelID()]
		if !ok {
			dir = safeName(image.LabelID())
		}
		jobs <- ExportJob{Image: image, Label: labelNames[image.LabelID()], Dir: dir}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	counts := make(map[string]int)
	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			result.Bytes += res.Bytes
			counts[res.LabelID]++
			sendProgress(prog, exportCompletedUpdate(completed, len(images), res.Name, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(images), res.Name, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	readme, err := formatter.WriteDatasetReadme(opts.OutputDir, result.Dataset, counts)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write README: %w", err)
	}
	result.ReadmePath = readme

	ext := "json"
	if opts.ManifestFormat == "csv" {
		ext = "csv"
	}
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest."+ext)
	if err := formatter.WriteExportManifest(e.manifest(result), opts.ManifestFormat, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("dataset exported",
		"dataset", dataset.ID(),
		"images", result.SuccessfulExports,
		"failed", result.FailedExports,
		"size", formatter.Size(result.Bytes),
	)
	return result, nil
}

// exportWorker is a worker goroutine that exports images from the jobs channel.
func (e *DatasetExporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan ExportJob,
	results chan<- ImageExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- ImageExportResult{ImageID: job.Image.ID(), Name: job.Image.Name(), LabelID: job.Image.LabelID(), Label: job.Label, Error: ctx.Err()}
			continue
		default:
		}

		results <- e.exportSingleImage(ctx, limiter, job, opts)
	}
}

// exportSingleImage writes {dir}/{name}.bmp and, when requested, {dir}/{name}.bin.
func (e *DatasetExporter) exportSingleImage(ctx context.Context, limiter *rate.Limiter, j ExportJob, opts ExportOpts) ImageExportResult {
	result := ImageExportResult{
		ImageID: j.Image.ID(),
		Name:    j.Image.Name(),
		LabelID: j.Image.LabelID(),
		Label:   j.Label,
		Files:   []string{},
	}

	dir := filepath.Join(opts.OutputDir, j.Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Error = fmt.Errorf("failed to create label directory: %w", err)
		return result
	}

	artifacts := []struct{ key, ext string }{{j.Image.ImagePath(), ".bmp"}}
	if opts.Arrays {
		artifacts = append(artifacts, struct{ key, ext string }{j.Image.ArrayPath(), ".bin"})
	}

	for _, a := range artifacts {
		if a.key == "" {
			result.Error = fmt.Errorf("%w: image has no %s artifact", shared.ErrNotFound, a.ext)
			return result
		}
		if err := limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}

		data, err := e.store.Read(ctx, a.key)
		if err != nil {
			result.Error = err
			return result
		}

		path := filepath.Join(dir, safeName(j.Image.Name())+a.ext)
		if err := os.WriteFile(path, data, 0644); err != nil {
			result.Error = fmt.Errorf("failed to write %s: %w", path, err)
			return result
		}
		result.Files = append(result.Files, path)
		result.Bytes += int64(len(data))
	}

	result.Success = true
	return result
}

func (e *DatasetExporter) manifest(result *ExportResult) *formatter.ExportManifest {
	m := &formatter.ExportManifest{
		DatasetID:   result.Dataset.ID,
		DatasetName: result.Dataset.Name,
		ExportedAt:  time.Now().UTC(),
		Total:       result.TotalImages,
		Successful:  result.SuccessfulExports,
		Failed:      result.FailedExports,
		Bytes:       result.Bytes,
		Entries:     make([]formatter.ManifestEntry, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		entry := formatter.ManifestEntry{ImageID: r.ImageID, Name: r.Name, Label: r.Label, Files: r.Files}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// labelDirectories names one output directory per label. Labels whose names map to the
// same directory get their id appended so their images never overwrite each other.
func labelDirectories(labels []*models.Label) map[string]string {
	uses := make(map[string]int, len(labels))
	for _, l := range labels {
		uses[safeName(l.Name())]++
	}

	dirs := make(map[string]string, len(labels))
	for _, l := range labels {
		dir := safeName(l.Name())
		if uses[dir] > 1 {
			dir += "_" + l.ID()
		}
		dirs[l.ID()] = dir
	}
	return dirs
}

// safeName keeps a label or image name usable as a single path element.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
