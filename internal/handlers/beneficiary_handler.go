package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prudhvinik1/fieldsync/internal/errors"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/prudhvinik1/fieldsync/internal/services"
	"github.com/prudhvinik1/fieldsync/internal/utils"
)

// SyncService is the sync engine as the HTTP layer uses it.
type SyncService interface {
	Save(ctx context.Context, b *models.Beneficiary, children []models.Child) (*services.SaveResult, error)
	Update(ctx context.Context, id string, patch *models.BeneficiaryPatch) (services.Outcome, error)
	Delete(ctx context.Context, id string) (services.Outcome, error)
	Get(ctx context.Context, id string) (*models.Beneficiary, []models.Child, error)
	List(ctx context.Context, filter models.BeneficiaryFilter) ([]*models.Beneficiary, error)
	Watch(ctx context.Context, filter models.BeneficiaryFilter) (<-chan []*models.Beneficiary, error)
	ClearLocalData(ctx context.Context) error

	ReconcileAll(ctx context.Context) (*services.ReconcileResult, error)
	RetryExhausted(ctx context.Context) (records, entries int64, err error)
	Status(ctx context.Context) (*services.SyncStatus, error)
	ListQueue(ctx context.Context) ([]*models.QueueEntry, error)
	RemoteGet(ctx context.Context, path string) (json.RawMessage, error)
}

type BeneficiaryHandler struct {
	engine SyncService
	now    func() time.Time
}

func NewBeneficiaryHandler(engine SyncService) *BeneficiaryHandler {
	return &BeneficiaryHandler{engine: engine, now: time.Now}
}

type outcomeResponse struct {
	ID      string           `json:"id,omitempty"`
	Outcome services.Outcome `json:"outcome"`
}

type detailResponse struct {
	*models.BeneficiaryView
	Children []models.Child `json:"children"`
}

// Create registers a beneficiary for the signed-in operator.
func (h *BeneficiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var patch models.BeneficiaryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	b := &models.Beneficiary{}
	patch.Apply(b)
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		b.UserID = claims.AccountID.String()
	}
	var children []models.Child
	if patch.Children != nil {
		children = *patch.Children
	}

	// Missing fields are reported by the engine as one list; format rules
	// only apply to a complete form.
	if len(utils.MissingFields(b)) == 0 {
		if fields := utils.ValidateBeneficiary(b, children, h.now()); len(fields) > 0 {
			writeFieldErrors(w, fields)
			return
		}
	}

	result, err := h.engine.Save(r.Context(), b, children)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcomeResponse{ID: result.ID, Outcome: result.Outcome})
}

func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.engine.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViews(list))
}

func (h *BeneficiaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, children, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if children == nil {
		children = []models.Child{}
	}
	writeJSON(w, http.StatusOK, detailResponse{BeneficiaryView: models.NewBeneficiaryView(b, true), Children: children})
}

func (h *BeneficiaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch models.BeneficiaryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	current, children, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	patch.Apply(current)
	if patch.Children != nil {
		children = *patch.Children
	}
	if len(utils.MissingFields(current)) == 0 {
		if fields := utils.ValidateBeneficiary(current, children, h.now()); len(fields) > 0 {
			writeFieldErrors(w, fields)
			return
		}
	}

	outcome, err := h.engine.Update(r.Context(), id, &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
}

func (h *BeneficiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.engine.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
}

// Clear wipes local data. The caller must confirm with ?confirm=true.
func (h *BeneficiaryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, r, errors.New(errors.ErrValidation, "clearing local data requires confirm=true"))
		return
	}
	if err := h.engine.ClearLocalData(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func filterFromQuery(r *http.Request) (models.BeneficiaryFilter, error) {
	q := r.URL.Query()
	filter := models.BeneficiaryFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		UserID: q.Get("owner"),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := models.ParseBeneficiaryStatus(raw)
		if !ok {
			return filter, errors.New(errors.ErrValidation, "unknown status "+raw)
		}
		filter.Status = status
	}
	return filter, nil
}

func toViews(list []*models.Beneficiary) []*models.BeneficiaryView {
	views := make([]*models.BeneficiaryView, 0, len(list))
	for _, b := range list {
		views = append(views, models.NewBeneficiaryView(b, false))
	}
	return views
}
