package routers

import (
	"audit-chain/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the audit chain
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Queues an audit event for anchoring, mining a block when the pool is full
	r.HandleFunc("/anchors", h.AnchorAuditEvent).Methods("POST")

	// Checks an anchor's block hash and merkle proof against the chain
	r.HandleFunc("/anchors/verify", h.VerifyAnchor).Methods("POST")

	// Resolves the current anchor of a transaction, final once mined
	r.HandleFunc("/anchors/{id}", h.GetAnchor).Methods("GET")

	r.HandleFunc("/blocks/{index:[0-9]+}", h.GetBlock).Methods("GET")

	// Full integrity check over every block and link
	r.HandleFunc("/chain/verify", h.VerifyChain).Methods("GET")

	r.HandleFunc("/chain/export", h.ExportChain).Methods("GET")

	// Replaces the chain only if the uploaded export validates
	r.HandleFunc("/chain/import", h.ImportChain).Methods("POST")

	// Seals the pending pool without waiting for the threshold
	r.HandleFunc("/chain/mine", h.MineBlock).Methods("POST")

	r.HandleFunc("/chain/stats", h.GetStats).Methods("GET")
}
