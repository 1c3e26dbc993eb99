// Package entryhttp exposes entry sessions to the UI layer as a JSON API.
package entryhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
	"github.com/odyssey-erp/odyssey-entry/internal/drafts"
	"github.com/odyssey-erp/odyssey-entry/internal/entry"
	"github.com/odyssey-erp/odyssey-entry/internal/nav"
	"github.com/odyssey-erp/odyssey-entry/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-entry/internal/shared"
)

const maxSearchLimit = 100

// Sessions is the session registry contract used by the handler.
type Sessions interface {
	Open(ctx context.Context, kind entry.Kind) (string, *entry.Session, error)
	Get(id string) (*entry.Session, error)
	Close(id string) error
}

// ProductSearcher serves the product picker.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, text string, limit int) ([]catalog.Product, error)
}

// CacheInvalidator drops cached catalog lookups.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler coordinates HTTP requests for entry sessions.
type Handler struct {
	logger    *slog.Logger
	sessions  Sessions
	products  ProductSearcher
	cache     CacheInvalidator
	validator *validator.Validate
	rateLimit int
}

// NewHandler constructs the entry HTTP handler. cache may be nil; rateLimit
// is requests per minute for search and save, zero disables limiting.
func NewHandler(logger *slog.Logger, sessions Sessions, products ProductSearcher, cache CacheInvalidator, rateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		sessions:  sessions,
		products:  products,
		cache:     cache,
		validator: validator.New(),
		rateLimit: rateLimit,
	}
}

type openSessionRequest struct {
	Kind string `json:"kind" validate:"required,oneof=purchase purchase_order sales_return"`
}

type sessionResponse struct {
	SessionID string     `json:"sessionId"`
	View      entry.View `json:"view"`
}

type selectProductRequest struct {
	ProductID string `json:"productId" validate:"required_without_all=Barcode Serial"`
	Barcode   string `json:"barcode"`
	Serial    string `json:"serial"`
	UnitID    string `json:"unitId"`
}

type fieldRequest struct {
	Field string   `json:"field" validate:"required"`
	Value *float64 `json:"value" validate:"required_without=Text"`
	Text  *string  `json:"text"`
}

type unitRequest struct {
	UnitID string `json:"unitId" validate:"required"`
}

type extrasRequest struct {
	BatchNumber string `json:"batchNumber" validate:"max=64"`
	ExpiryDate  string `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
}

type focusRequest struct {
	RowID string `json:"rowId" validate:"required"`
	Field string `json:"field"`
}

type commitRequest struct {
	RowID string `json:"rowId"`
}

type blurRequest struct {
	Overlay bool `json:"overlay"`
}

type focusResponse struct {
	Focus entry.Focus `json:"focus"`
	View  entry.View  `json:"view"`
}

type revertResponse struct {
	Reverted bool       `json:"reverted"`
	View     entry.View `json:"view"`
}

type saveResponse struct {
	Result entry.SaveResult `json:"result"`
	View   entry.View       `json:"view"`
}

type holdResponse struct {
	Draft drafts.HeldDraft `json:"draft"`
	View  entry.View       `json:"view"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, sess, err := h.sessions.Open(r.Context(), entry.Kind(req.Kind))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{SessionID: id, View: sess.View()})
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.AddLine(); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess.View())
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveLine(chi.URLParam(r, "rowID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSelectProduct(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	_, err := sess.SelectProduct(r.Context(), chi.URLParam(r, "rowID"), entry.Lookup{
		ProductID: req.ProductID,
		Barcode:   req.Barcode,
		Serial:    req.Serial,
		UnitID:    req.UnitID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	rowID := chi.URLParam(r, "rowID")
	var err error
	if req.Value != nil {
		_, err = sess.UpdateField(rowID, entry.Field(req.Field), *req.Value)
	} else {
		_, err = sess.UpdateText(rowID, entry.Field(req.Field), *req.Text)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleChangeUnit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req unitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := sess.ChangeUnit(chi.URLParam(r, "rowID"), req.UnitID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSetExtras(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req extrasRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := sess.SetExtras(chi.URLParam(r, "rowID"), req.BatchNumber, req.ExpiryDate); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleFocus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req focusRequest
	if !h.decode(w, r, &req) {
		return
	}
	focus, err := sess.EnterRow(req.RowID, entry.Field(req.Field))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, focusResponse{Focus: focus, View: sess.View()})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	focus, err := sess.Advance()
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, focusResponse{Focus: focus, View: sess.View()})
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req commitRequest
	if !h.decode(w, r, &req) {
		return
	}
	focus, err := sess.CommitIfValid(req.RowID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, focusResponse{Focus: focus, View: sess.View()})
}

func (h *Handler) handleBlur(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req blurRequest
	if !h.decode(w, r, &req) {
		return
	}
	reverted, err := sess.Blur(req.Overlay)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, revertResponse{Reverted: reverted, View: sess.View()})
}

func (h *Handler) handleSetHeader(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch entry.HeaderPatch
	if !h.decode(w, r, &patch) {
		return
	}
	if _, err := sess.SetHeader(patch); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSetAdjustments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch entry.AdjustmentPatch
	if !h.decode(w, r, &patch) {
		return
	}
	if _, err := sess.SetAdjustments(patch); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var opts entry.SaveOptions
	if !h.decode(w, r, &opts) {
		return
	}
	res, err := sess.Save(r.Context(), opts)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saveResponse{Result: res, View: sess.View()})
}

func (h *Handler) handleHold(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	held, err := sess.Hold(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	held.Snapshot = nil
	httpx.JSON(w, http.StatusOK, holdResponse{Draft: held, View: sess.View()})
}

func (h *Handler) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	list, err := sess.Drafts(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	for i := range list {
		list[i].Snapshot = nil
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Restore(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.DiscardDraft(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Navigate(r.Context(), nav.Direction(chi.URLParam(r, "direction"))); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Load(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		httpx.ValidationProblem(w, "number is required", httpx.InvalidParam{Name: "number", Reason: "failed required"})
		return
	}
	items, err := sess.SearchByNumber(r.Context(), number)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if items == nil {
		items = []nav.Summary{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleDeleteCurrent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteCurrent(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Clear(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	limit := 20
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchLimit {
			httpx.ValidationProblem(w, "limit must be between 1 and 100", httpx.InvalidParam{Name: "limit", Reason: "out of range"})
			return
		}
		limit = n
	}
	if text == "" {
		httpx.JSON(w, http.StatusOK, []catalog.Product{})
		return
	}
	products, err := h.products.SearchProducts(r.Context(), text, limit)
	if err != nil {
		h.logger.Error("search products", slog.String("q", text), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", err.Error())
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleInvalidateCatalog(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate catalog cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*entry.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.ValidationProblem(w, "request is invalid", httpx.InvalidParams(err)...)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *entry.ValidationError
	if errors.As(err, &verr) {
		httpx.ValidationProblem(w, verr.Reason, httpx.InvalidParam{Name: string(verr.Field), Reason: verr.Reason, Row: verr.RowID})
		return
	}
	switch {
	case errors.Is(err, entry.ErrSessionNotFound),
		errors.Is(err, entry.ErrRowNotFound),
		errors.Is(err, entry.ErrNotFound),
		errors.Is(err, entry.ErrNoDocuments),
		errors.Is(err, drafts.ErrDraftNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case errors.Is(err, entry.ErrUnknownKind),
		errors.Is(err, entry.ErrUnknownField),
		errors.Is(err, entry.ErrUnknownDirection):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	case errors.Is(err, shared.ErrIdempotencyConflict),
		errors.Is(err, entry.ErrSaveInProgress),
		errors.Is(err, entry.ErrStaleLookup),
		errors.Is(err, entry.ErrKindMismatch),
		errors.Is(err, entry.ErrAlreadySaved),
		errors.Is(err, entry.ErrNothingToHold),
		errors.Is(err, entry.ErrNoDocumentLoaded),
		errors.Is(err, entry.ErrNotEditing),
		errors.Is(err, entry.ErrSequenceIncomplete),
		errors.Is(err, entry.ErrPlaceholderRow):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	var cerr *entry.CollaboratorError
	if errors.As(err, &cerr) {
		h.logger.Warn("entry collaborator failed", slog.String("op", cerr.Op), slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", cerr.Error())
		return
	}
	h.logger.Error("entry request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
