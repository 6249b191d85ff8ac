package tasks

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// Resolver maps a label token to a label owned by userID. Implemented by [LabelResolver].
type Resolver interface {
	Resolve(ctx context.Context, userID, token string) (*models.Label, error)
}

// Upserter persists one encoded row. Implemented by [ImageUpserter].
type Upserter interface {
	Upsert(ctx context.Context, key models.ImageKey, encoded *convert.Encoded) (*models.Image, error)
}

// UploadResult summarizes a fully processed upload.
type UploadResult struct {
	Csvfile  *models.Csvfile // Csvfile the rows were read for
	Side     int             // Image side length
	Rows     int             // Data rows converted
	ImageIDs []string        // Upserted image IDs in row order
	Bytes    int             // Size of the CSV input
	Elapsed  time.Duration
}

// RowError reports the data row (zero-based, header excluded) that aborted an upload.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// UploadEngine converts an uploaded CSV into images, one row at a time.
//
// Rows are processed in file order and the first failing row aborts the upload.
// Rows converted before the failure stay persisted. Concurrent calls for the same
// csvfile are serialized.
type UploadEngine struct {
	labels Resolver
	images Upserter
	logger *log.Logger
	locks  *keyedMutex
}

// NewUploadEngine creates an [UploadEngine].
func NewUploadEngine(labels Resolver, images Upserter, logger *log.Logger) *UploadEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &UploadEngine{labels: labels, images: images, logger: logger, locks: newKeyedMutex()}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Process validates the csvfile's geometry, skips the header line of r and converts every following row.
//
// Geometry errors are returned before r is read. Row failures are returned as [*RowError]
// wrapping one of [shared.ErrMalformedRow], [shared.ErrUnknownLabel], [shared.ErrPixelParse]
// or [shared.ErrStorage].
func (e *UploadEngine) Process(ctx context.Context, csvfile *models.Csvfile, r io.Reader, progress chan<- ProgressUpdate) (*UploadResult, error) {
	unlock := e.locks.Lock(csvfile.ID())
	defer unlock()

	started := time.Now()
	logger := shared.WithLogger(e.logger, "csvfile", csvfile.ID())

	side, err := convert.Validate(csvfile.ImgColStart(), csvfile.ImgColEnd())
	if err != nil {
		sendProgress(progress, failedUpdate(0, 0, err))
		return nil, err
	}
	sendProgress(progress, validateGeometryUpdate(csvfile, side))

	data, err := io.ReadAll(r)
	if err != nil {
		err = fmt.Errorf("%w: read upload: %v", shared.ErrStorage, err)
		sendProgress(progress, failedUpdate(0, 0, err))
		return nil, err
	}

	total := max(countRecords(data)-1, 0)
	sendProgress(progress, readRowsUpdate(total))

	reader := newCSVReader(bytes.NewReader(data))
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: missing header line", shared.ErrMalformedRow)
		} else {
			err = fmt.Errorf("%w: header: %v", shared.ErrMalformedRow, err)
		}
		sendProgress(progress, failedUpdate(0, total, err))
		return nil, err
	}

	result := &UploadResult{Csvfile: csvfile, Side: side, Bytes: len(data), ImageIDs: []string{}}

	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if blankLineAt(data, reader.InputOffset()) {
			err := &RowError{Row: row, Err: fmt.Errorf("%w: blank line", shared.ErrMalformedRow)}
			sendProgress(progress, failedUpdate(row, total, err))
			logger.Warn("upload aborted", "row", row, "error", err)
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = &RowError{Row: row, Err: fmt.Errorf("%w: %v", shared.ErrMalformedRow, err)}
			sendProgress(progress, failedUpdate(row, total, err))
			logger.Warn("upload aborted", "row", row, "error", err)
			return nil, err
		}

		image, err := e.convertRow(ctx, csvfile, side, row, record)
		if err != nil {
			err = &RowError{Row: row, Err: err}
			sendProgress(progress, failedUpdate(row, total, err))
			logger.Warn("upload aborted", "row", row, "error", err)
			return nil, err
		}

		result.Rows++
		result.ImageIDs = append(result.ImageIDs, image.ID())
		sendProgress(progress, convertRowUpdate(row+1, total, image))
	}

	result.Elapsed = time.Since(started)
	logger.Info("upload processed",
		"rows", result.Rows,
		"side", side,
		"size", humanize.Bytes(uint64(result.Bytes)),
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	sendProgress(progress, completeUpdate(result))
	return result, nil
}

// convertRow runs decode, label resolution, encoding and upsert for one data row.
func (e *UploadEngine) convertRow(ctx context.Context, csvfile *models.Csvfile, side, row int, record []string) (*models.Image, error) {
	token, pixels, err := convert.Decode(record, csvfile.LabelCol(), csvfile.ImgColStart(), csvfile.ImgColEnd()+1)
	if err != nil {
		return nil, err
	}

	label, err := e.labels.Resolve(ctx, csvfile.UserID(), token)
	if err != nil {
		return nil, err
	}

	encoded, err := convert.Encode(pixels, side)
	if err != nil {
		return nil, err
	}

	key := models.NewImageKey(csvfile.UserID(), csvfile.ID(), row, label.ID())
	return e.images.Upsert(ctx, key, encoded)
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader
}

// blankLineAt reports an empty line starting at offset that is followed by more data.
// encoding/csv skips empty lines, which would shift every later row index. Trailing
// empty lines are not reported.
func blankLineAt(data []byte, offset int64) bool {
	rest := data[offset:]
	if !bytes.HasPrefix(rest, []byte("\n")) && !bytes.HasPrefix(rest, []byte("\r\n")) {
		return false
	}
	return len(bytes.TrimSpace(rest)) > 0
}

// countRecords counts records up to the first parse error.
func countRecords(data []byte) int {
	reader := newCSVReader(bytes.NewReader(data))
	reader.ReuseRecord = true

	n := 0
	for {
		if _, err := reader.Read(); err != nil {
			return n
		}
		n++
	}
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
