package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

const defaultMaxUploadBytes = 64 << 20

// CsvfileHandler manages csvfiles and runs the upload pipeline.
type CsvfileHandler struct {
	s *Server
}

func (h *CsvfileHandler) Routes() []string {
	return []string{
		"GET /csvfiles",
		"POST /csvfiles",
		"GET /csvfiles/{id}",
		"POST /csvfiles/{id}/upload-csvfile",
	}
}

func (h *CsvfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "POST /csvfiles":
		h.create(w, r)
	case "GET /csvfiles/{id}":
		h.detail(w, r)
	case "POST /csvfiles/{id}/upload-csvfile":
		h.upload(w, r)
	default:
		h.list(w, r)
	}
}

func (h *CsvfileHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	csvfiles, err := h.s.csvfiles.List(r.Context(), map[string]any{
		"user_id":       user.ID(),
		"assigned_only": queryFlag(r, "assigned_only"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]models.CsvfileView, 0, len(csvfiles))
	for _, c := range csvfiles {
		views = append(views, models.NewCsvfileView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *CsvfileHandler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		LabelCol    int    `json:"labelcol"`
		ImgColStart int    `json:"imgcolstart"`
		ImgColEnd   int    `json:"imgcolend"`
	}
	if err := decodeBody(w, r, h.s.schemas.csvfile, &body); err != nil {
		writeError(w, err)
		return
	}

	csvfile := models.NewCsvfile(0, user.ID(), body.Name, body.Description, body.LabelCol, body.ImgColStart, body.ImgColEnd)
	if err := h.s.csvfiles.Create(r.Context(), csvfile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewCsvfileView(csvfile))
}

func (h *CsvfileHandler) detail(w http.ResponseWriter, r *http.Request) {
	csvfile, err := h.owned(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewCsvfileView(csvfile))
}

// upload stores the multipart "file" field as the csvfile's source and converts every row.
//
// Geometry is checked before the body is read. A row failure leaves the file attached
// and the rows before it persisted.
func (h *CsvfileHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	csvfile, err := h.owned(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := convert.Validate(csvfile.ImgColStart(), csvfile.ImgColEnd()); err != nil {
		writeError(w, err)
		return
	}

	limit := h.s.config.Server.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	data, filename, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.s.uploader.Upload(ctx, csvfile, filename, data, nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewCsvfileFileView(csvfile))
}

// readUpload returns the contents and client filename of the multipart "file" field.
func readUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", fmt.Errorf("%w: upload exceeds %d bytes", shared.ErrInvalidInput, maxErr.Limit)
		}
		return nil, "", fmt.Errorf("%w: expected a multipart form: %v", shared.ErrInvalidInput, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: the file field is required", shared.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read upload: %v", shared.ErrInvalidInput, err)
	}
	return data, header.Filename, nil
}

// owned loads a csvfile and hides it from anyone but its owner.
func (h *CsvfileHandler) owned(ctx context.Context, id string) (*models.Csvfile, error) {
	user, _ := UserFrom(ctx)
	csvfile, err := h.s.csvfiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if csvfile.UserID() != user.ID() {
		return nil, fmt.Errorf("%w: csvfile %s", shared.ErrNotFound, id)
	}
	return csvfile, nil
}
