package server

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// LabelHandler lists, creates and deletes the caller's labels.
type LabelHandler struct {
	s *Server
}

func (h *LabelHandler) Routes() []string {
	return []string{"GET /labels", "POST /labels", "DELETE /labels/{id}"}
}

func (h *LabelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "POST /labels":
		h.create(w, r)
	case "DELETE /labels/{id}":
		h.delete(w, r)
	default:
		h.list(w, r)
	}
}

// list returns labels ordered by name descending; ?assigned_only=1 keeps labels used by a dataset.
func (h *LabelHandler) list(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	labels, err := h.s.labels.List(r.Context(), map[string]any{
		"user_id":       user.ID(),
		"assigned_only": queryFlag(r, "assigned_only"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]models.LabelView, 0, len(labels))
	for _, l := range labels {
		views = append(views, models.NewLabelView(l))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *LabelHandler) create(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, h.s.schemas.label, &body); err != nil {
		writeError(w, err)
		return
	}

	label := models.NewLabel(0, user.ID(), body.Name)
	if err := h.s.labels.Create(r.Context(), label); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewLabelView(label))
}

// delete soft-deletes a label. Images already converted under it are kept.
func (h *LabelHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFrom(ctx)

	label, err := h.s.labels.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if label.UserID() != user.ID() {
		writeError(w, fmt.Errorf("%w: label %s", shared.ErrNotFound, label.ID()))
		return
	}

	if err := h.s.labels.Delete(ctx, label.ID()); err != nil {
		writeError(w, err)
		return
	}
	h.s.resolver.Forget(user.ID(), label.Name())
	w.WriteHeader(http.StatusNoContent)
}
