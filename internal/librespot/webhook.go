package librespot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/connect-bridge-go/internal/api"
)

// ErrBusy is returned by a Processor that could not enter the reconciliation
// critical section in time.
var ErrBusy = errors.New("reconciliation busy")

// JSON-RPC error codes carried by the acknowledgement envelope.
const (
	CodeMalformed = 32700
	CodeInvalid   = 32601
	CodeFailed    = 32000
	CodeBusy      = 32001
)

// HandledMessage is the result message of every successful delivery,
// duplicates included.
const HandledMessage = "Librespot update handled"

const maxBodyBytes = 64 << 10

const allowHeaders = "Origin, X-Requested-With, Content-Type, Accept, Authorization, Client-Security-Token, Accept-Encoding"

// Processor consumes validated events.
type Processor interface {
	Process(ctx context.Context, event Event) error
	// Reject is told about payloads that never reached Process.
	Reject(ctx context.Context, cause error)
}

// Envelope is the JSON-RPC style acknowledgement written for every delivery.
type Envelope struct {
	ID      int64          `json:"id"`
	JSONRPC string         `json:"jsonrpc"`
	Result  *EnvelopeBody  `json:"result,omitempty"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

// EnvelopeBody is the success payload.
type EnvelopeBody struct {
	Message string `json:"message"`
}

// EnvelopeError is the failure payload.
type EnvelopeError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Webhook serves the device player's event endpoint.
type Webhook struct {
	processor   Processor
	allowOrigin string
	logger      logrus.FieldLogger
	now         func() time.Time
}

// NewWebhook creates a Webhook. An empty allowOrigin means "*".
func NewWebhook(processor Processor, allowOrigin string, logger logrus.FieldLogger) *Webhook {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Webhook{
		processor:   processor,
		allowOrigin: allowOrigin,
		logger:      logger.WithField("component", "librespot"),
		now:         time.Now,
	}
}

// RegisterRoutes mounts the webhook with and without a trailing slash.
func (h *Webhook) RegisterRoutes(router chi.Router) {
	for _, path := range []string{"/librespot", "/librespot/"} {
		router.Post(path, h.handlePost)
		router.Options(path, h.handleOptions)
	}
}

func (h *Webhook) setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", h.allowOrigin)
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func (h *Webhook) handleOptions(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Webhook) handlePost(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)
	id := h.now().Unix()
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.reject(ctx, w, id, err)
		return
	}

	event, err := Decode(body)
	if err != nil {
		h.reject(ctx, w, id, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"event":      event.Kind(),
		"track_id":   event.TrackID(),
		"request_id": api.GetRequestID(r),
	}).Debug("Received device event")

	if err := h.processor.Process(ctx, event); err != nil {
		status, code := http.StatusBadGateway, CodeFailed
		if errors.Is(err, ErrBusy) {
			status, code = http.StatusServiceUnavailable, CodeBusy
		}
		h.write(w, status, Envelope{
			ID:      id,
			JSONRPC: "2.0",
			Error:   &EnvelopeError{Code: code, Message: err.Error()},
		})
		return
	}

	h.write(w, http.StatusOK, Envelope{
		ID:      id,
		JSONRPC: "2.0",
		Result:  &EnvelopeBody{Message: HandledMessage},
	})
}

func (h *Webhook) reject(ctx context.Context, w http.ResponseWriter, id int64, cause error) {
	h.processor.Reject(ctx, cause)

	envErr := &EnvelopeError{Code: CodeMalformed, Message: "Missing or invalid payload"}
	var validation *ValidationError
	if errors.As(cause, &validation) {
		envErr = &EnvelopeError{
			Code:    CodeInvalid,
			Message: "Invalid JSON payload",
			Data:    map[string]any{"field": validation.Field, "reason": validation.Reason},
		}
	}

	h.write(w, http.StatusBadRequest, Envelope{ID: id, JSONRPC: "2.0", Error: envErr})
}

func (h *Webhook) write(w http.ResponseWriter, status int, env Envelope) {
	if err := api.WriteJSON(w, status, env); err != nil {
		h.logger.WithError(err).Warn("Failed to write webhook response")
	}
}
