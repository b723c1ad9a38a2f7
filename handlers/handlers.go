package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"audit-chain/ledger"
	"audit-chain/logger"
	"audit-chain/miner"
	"audit-chain/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxImportBytes caps the body accepted by ImportChain
const maxImportBytes = 64 << 20

// Handler contains the HTTP handlers for the audit chain API endpoints
type Handler struct {
	Ledger *ledger.Ledger
}

// NewHandler creates and returns a new Handler instance
func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{Ledger: l}
}

// AnchorRequest is the body of POST /anchors
type AnchorRequest struct {
	AuditEventID   string                 `json:"audit_event_id"`
	AuditEventHash string                 `json:"audit_event_hash"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// AnchorAuditEvent handles POST requests that anchor an audit event
func (h *Handler) AnchorAuditEvent(w http.ResponseWriter, r *http.Request) {
	var req AnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode anchor request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	anchor, err := h.Ledger.AnchorAuditEvent(r.Context(), req.AuditEventID, req.AuditEventHash, req.Metadata)
	switch {
	case errors.Is(err, ledger.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil && anchor != nil:
		// queued, but the block could not be sealed yet
		logger.Logger.Warn("Audit event queued without a block", zap.String("audit_event_id", req.AuditEventID), zap.Error(err))
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"message": "Audit event queued, mining deferred",
			"anchor":  anchor,
			"error":   err.Error(),
		})
		return
	case err != nil:
		logger.Logger.Error("Failed to anchor audit event", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Logger.Info("Anchored audit event",
		zap.String("audit_event_id", req.AuditEventID),
		zap.String("transaction_id", anchor.TransactionID),
		zap.Bool("pending", anchor.Pending))

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Audit event anchored",
		"anchor":  anchor,
	})
}

// GetAnchor handles GET requests resolving the current anchor of a transaction
func (h *Handler) GetAnchor(w http.ResponseWriter, r *http.Request) {
	anchor, err := h.Ledger.Anchor(mux.Vars(r)["id"])
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Logger.Error("Failed to resolve anchor", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, anchor)
}

// VerifyAnchor handles POST requests checking an anchor against the chain
func (h *Handler) VerifyAnchor(w http.ResponseWriter, r *http.Request) {
	var anchor models.AuditAnchor
	if err := json.NewDecoder(r.Body).Decode(&anchor); err != nil {
		logger.Logger.Error("Failed to decode anchor", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.Ledger.VerifyAuditAnchor(&anchor)})
}

// VerifyChain handles GET requests running the full integrity check
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"valid": h.Ledger.VerifyIntegrity()})
}

// ExportChain handles GET requests returning the portable chain
func (h *Handler) ExportChain(w http.ResponseWriter, r *http.Request) {
	data, err := h.Ledger.Export()
	if err != nil {
		logger.Logger.Error("Failed to export chain", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportChain handles POST requests replacing the chain with an export
func (h *Handler) ImportChain(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.Ledger.Import(data); err != nil {
		logger.Logger.Warn("Rejected chain import", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"imported": false,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"imported": true})
}

// MineBlock handles POST requests sealing the pending pool now
func (h *Handler) MineBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.Ledger.Flush(r.Context())
	if errors.Is(err, miner.ErrMiningTimeout) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		logger.Logger.Error("Failed to mine block", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if block == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Block mined",
		"block":   block,
	})
}

// GetStats handles GET requests for a chain summary
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.Stats())
}

// GetBlock handles GET requests for a block by index
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid block index")
		return
	}
	block, err := h.Ledger.Block(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}
