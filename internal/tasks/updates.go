package tasks

import (
	"fmt"

	"github.com/desertthunder/imgset/internal/models"
)

// ProgressUpdate represents a progress event during an upload.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ValidateGeometry Phase = iota
	ReadRows
	ConvertRows
	Complete
	Failed
	ExportImages
)

func (p Phase) String() string {
	switch p {
	case ValidateGeometry:
		return "validate_geometry"
	case ReadRows:
		return "read_rows"
	case ConvertRows:
		return "convert_rows"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case ExportImages:
		return "export_images"
	default:
		return ""
	}
}

func validateGeometryUpdate(c *models.Csvfile, side int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateGeometry,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Columns %d-%d form %dx%d images", c.ImgColStart(), c.ImgColEnd(), side, side),
	}
}

func readRowsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadRows,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d rows after the header", total),
	}
}

func convertRowUpdate(step, total int, image *models.Image) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ConvertRows,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, image.Name()),
		Data:    image,
	}
}

func completeUpdate(result *UploadResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    result.Rows,
		Total:   result.Rows,
		Message: fmt.Sprintf("✓ %d images from %s", result.Rows, result.Csvfile.Name()),
		Data:    result,
	}
}

func failedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

func exportStartedUpdate(total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportImages,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Exporting %d images from %s...", total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportImages,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportImages,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
