package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// DatasetHandler groups labels and csvfiles into datasets.
type DatasetHandler struct {
	s *Server
}

func (h *DatasetHandler) Routes() []string {
	return []string{"GET /datasets", "POST /datasets", "GET /datasets/{id}"}
}

func (h *DatasetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "POST /datasets":
		h.create(w, r)
	case "GET /datasets/{id}":
		h.detail(w, r)
	default:
		h.list(w, r)
	}
}

func (h *DatasetHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	datasets, err := h.s.datasets.List(r.Context(), map[string]any{"user_id": user.ID()})
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]models.DatasetView, 0, len(datasets))
	for _, d := range datasets {
		views = append(views, models.NewDatasetView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *DatasetHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFrom(ctx)

	var body struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Labels      []string `json:"labels"`
		Csvfiles    []string `json:"csvfiles"`
	}
	if err := decodeBody(w, r, h.s.schemas.dataset, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.checkMembers(ctx, user.ID(), body.Labels, body.Csvfiles); err != nil {
		writeError(w, err)
		return
	}

	dataset := models.NewDataset(0, user.ID(), body.Name, body.Description, body.Labels, body.Csvfiles)
	if err := h.s.datasets.Create(ctx, dataset); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewDatasetView(dataset))
}

func (h *DatasetHandler) detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFrom(ctx)

	dataset, err := h.s.datasets.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if dataset.UserID() != user.ID() {
		writeError(w, fmt.Errorf("%w: dataset %s", shared.ErrNotFound, dataset.ID()))
		return
	}

	labels, err := h.s.labels.List(ctx, map[string]any{"ids": dataset.LabelIDs(), "include_deleted": true})
	if err != nil {
		writeError(w, err)
		return
	}
	csvfiles, err := h.s.csvfiles.List(ctx, map[string]any{"ids": dataset.CsvfileIDs()})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewDatasetDetailView(dataset, labels, csvfiles))
}

// checkMembers rejects label or csvfile ids that do not exist or belong to another user.
func (h *DatasetHandler) checkMembers(ctx context.Context, userID string, labelIDs, csvfileIDs []string) error {
	if len(labelIDs) > 0 {
		labels, err := h.s.labels.List(ctx, map[string]any{"user_id": userID, "ids": labelIDs})
		if err != nil {
			return err
		}
		for _, id := range labelIDs {
			if !slices.ContainsFunc(labels, func(l *models.Label) bool { return l.ID() == id }) {
				return fmt.Errorf("%w: unknown label %s", shared.ErrInvalidInput, id)
			}
		}
	}

	if len(csvfileIDs) > 0 {
		csvfiles, err := h.s.csvfiles.List(ctx, map[string]any{"user_id": userID, "ids": csvfileIDs})
		if err != nil {
			return err
		}
		for _, id := range csvfileIDs {
			if !slices.ContainsFunc(csvfiles, func(c *models.Csvfile) bool { return c.ID() == id }) {
				return fmt.Errorf("%w: unknown csvfile %s", shared.ErrInvalidInput, id)
			}
		}
	}
	return nil
}
