package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// ImageHandler exposes converted images and their stored artifacts.
type ImageHandler struct {
	s *Server
}

func (h *ImageHandler) Routes() []string {
	return []string{
		"GET /images",
		"GET /images/{id}",
		"GET /images/{id}/bitmap",
		"GET /images/{id}/array",
	}
}

func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /images/{id}":
		h.detail(w, r)
	case "GET /images/{id}/bitmap":
		h.artifact(w, r, "image/bmp", (*models.Image).ImagePath)
	case "GET /images/{id}/array":
		h.artifact(w, r, "application/octet-stream", (*models.Image).ArrayPath)
	default:
		h.list(w, r)
	}
}

// list returns the caller's images, filtered by ?csvfile= and ?label=, paged by ?limit= and ?offset=.
func (h *ImageHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	images, err := h.s.images.List(r.Context(), map[string]any{
		"user_id":    user.ID(),
		"csvfile_id": r.URL.Query().Get("csvfile"),
		"label_id":   r.URL.Query().Get("label"),
		"limit":      limit,
		"offset":     offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]models.ImageView, 0, len(images))
	for _, i := range images {
		views = append(views, models.NewImageView(i))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ImageHandler) detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	image, err := h.owned(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	csvfile, err := h.s.csvfiles.Get(ctx, image.CsvfileID())
	if err != nil {
		writeError(w, err)
		return
	}
	label, err := h.s.labels.GetAny(ctx, image.LabelID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewImageDetailView(image, csvfile, label))
}

// artifact streams one stored blob of an image.
func (h *ImageHandler) artifact(w http.ResponseWriter, r *http.Request, contentType string, key func(*models.Image) string) {
	ctx := r.Context()
	image, err := h.owned(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if key(image) == "" {
		writeError(w, fmt.Errorf("%w: image %s has no stored artifact", shared.ErrNotFound, image.ID()))
		return
	}

	rc, err := h.s.store.Reader(ctx, key(image))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", image.Name()+extension(contentType)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.s.logger.Warn("artifact stream interrupted", "image", image.ID(), "error", err)
	}
}

func (h *ImageHandler) owned(ctx context.Context, id string) (*models.Image, error) {
	user, _ := UserFrom(ctx)
	image, err := h.s.images.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if image.UserID() != user.ID() {
		return nil, fmt.Errorf("%w: image %s", shared.ErrNotFound, id)
	}
	return image, nil
}

func extension(contentType string) string {
	if contentType == "image/bmp" {
		return ".bmp"
	}
	return ".bin"
}
