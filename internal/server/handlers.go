package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/carelens/behavior-worker/internal/job"
)

// Handlers contains the HTTP handlers for the worker.
type Handlers struct {
	processor *job.Processor
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(processor *job.Processor, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		processor: processor,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /healthz requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// StorageFinalize handles POST /pubsub/storage-finalize, the push
// delivery of a storage-finalize notification (spec.md §6).
func (h *Handlers) StorageFinalize(w http.ResponseWriter, r *http.Request) {
	var envelope pubsubPushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("failed to decode push envelope", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(envelope); err != nil {
		h.logger.Warn("push envelope failed validation", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	event, err := decodeStorageEvent(envelope.Message)
	if err != nil {
		h.logger.Warn("failed to decode storage event", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_EVENT")
		return
	}

	result, err := h.processor.Process(r.Context(), event)
	if err != nil {
		h.logger.Error("failed to process storage event",
			slog.String("object", event.ObjectName),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process event", "PROCESSING_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, pushAckResponse{Ignored: result.Ignored, Reason: result.Reason})
}

// decodeStorageEvent extracts a job.StorageEvent from a Pub/Sub message,
// preferring the base64-encoded Data payload and falling back to
// Attributes for whichever fields Data left empty.
func decodeStorageEvent(msg pubsubMessage) (job.StorageEvent, error) {
	var decoded storageFinalizeEvent
	if msg.Data != "" {
		raw, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return job.StorageEvent{}, errors.New("message data is not valid base64")
		}
		// Data need not be valid JSON; a non-JSON payload just leaves
		// decoded zero-valued and attributes take over below.
		_ = json.Unmarshal(raw, &decoded)
	}

	event := job.StorageEvent{
		EventType:  decoded.EventType,
		BucketName: firstNonEmpty(decoded.BucketID, decoded.Bucket),
		ObjectName: firstNonEmpty(decoded.ObjectID, decoded.Name),
	}
	if event.EventType == "" {
		event.EventType = msg.Attributes["eventType"]
	}
	if event.BucketName == "" {
		event.BucketName = firstNonEmpty(msg.Attributes["bucketId"], msg.Attributes["bucket"])
	}
	if event.ObjectName == "" {
		event.ObjectName = firstNonEmpty(msg.Attributes["objectId"], msg.Attributes["name"])
	}

	if event.ObjectName == "" {
		return job.StorageEvent{}, errors.New("storage event is missing objectId")
	}
	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
