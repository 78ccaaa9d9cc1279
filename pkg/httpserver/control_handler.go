package httpserver

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// controlHandler serves the status and control endpoints. Control requests
// are translated into the same envelopes the page agents send, so the HTTP
// surface and the bus surface share one code path in the scheduler.
type controlHandler struct {
	store   storage.Store
	control bus.Handler
	logger  *zap.Logger
}

func newControlHandler(store storage.Store, control bus.Handler, logger *zap.Logger) *controlHandler {
	return &controlHandler{
		store:   store,
		control: control,
		logger:  logger,
	}
}

// HandleStatus returns the persisted scheduler state.
func (h *controlHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("status-read-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read state: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// HandleStart enables automation. The optional body matches the
// CONTROL_START payload: {"tokenAddress": "...", "tabId": "..."}.
func (h *controlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var payload interface{}
	if r.Body != nil && r.ContentLength != 0 {
		var p types.ControlStart
		err := json.NewDecoder(r.Body).Decode(&p)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
		payload = p
	}

	h.dispatch(w, r, types.KindControlStart, payload)
}

// HandleStop disables automation.
func (h *controlHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, types.KindControlStop, nil)
}

func (h *controlHandler) dispatch(w http.ResponseWriter, r *http.Request, kind types.Kind, payload interface{}) {
	env, err := types.NewEnvelope(kind, payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := h.control(r.Context(), env)
	if !resp.Acknowledged {
		h.logger.Warn("control-rejected",
			zap.String("kind", string(kind)),
			zap.String("error", resp.Error))
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
