package entryhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-entry/internal/platform/httpx"
)

// MountRoutes registers entry endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limited := func(next http.Handler) http.Handler { return next }
	if h.rateLimit > 0 {
		limited = httprate.Limit(h.rateLimit, time.Minute,
			httprate.WithKeyFuncs(rateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
			}),
		)
	}

	r.Post("/sessions", h.handleOpen)
	r.With(limited).Get("/products", h.handleSearchProducts)
	r.Post("/catalog/invalidate", h.handleInvalidateCatalog)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleView)
		r.Delete("/", h.handleClose)

		r.Post("/lines", h.handleAddLine)
		r.Delete("/lines/{rowID}", h.handleRemoveLine)
		r.Patch("/lines/{rowID}", h.handleUpdateField)
		r.Post("/lines/{rowID}/product", h.handleSelectProduct)
		r.Put("/lines/{rowID}/unit", h.handleChangeUnit)
		r.Put("/lines/{rowID}/extras", h.handleSetExtras)

		r.Post("/focus", h.handleFocus)
		r.Post("/advance", h.handleAdvance)
		r.Post("/commit", h.handleCommit)
		r.Post("/blur", h.handleBlur)

		r.Patch("/header", h.handleSetHeader)
		r.Patch("/adjustments", h.handleSetAdjustments)

		r.With(limited).Post("/save", h.handleSave)
		r.Post("/hold", h.handleHold)
		r.Get("/drafts", h.handleListDrafts)
		r.Post("/drafts/{draftID}/restore", h.handleRestore)
		r.Delete("/drafts/{draftID}", h.handleDiscard)

		r.Post("/navigate/{direction}", h.handleNavigate)
		r.Get("/documents", h.handleSearchDocuments)
		r.Post("/documents/{documentID}/load", h.handleLoad)
		r.Delete("/document", h.handleDeleteCurrent)
		r.Post("/clear", h.handleClear)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if id := chi.URLParam(r, "sessionID"); id != "" {
		return "session:" + id, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
