package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/httputil"
	authmw "renavam/pkg/platform/middleware/auth"
	"renavam/pkg/requestcontext"

	"renavam/internal/transfer"
)

// TransferService is the slice of the transfer orchestrator the transport
// needs.
type TransferService interface {
	Initiate(ctx context.Context, callerID id.UserID, carID id.CarID, newOwnerID id.UserID) (*transfer.Transfer, error)
	Accept(ctx context.Context, callerID id.UserID, transferID id.TransferID) (*transfer.Transfer, error)
	Reject(ctx context.Context, callerID id.UserID, transferID id.TransferID, reason transfer.Reason) (*transfer.Transfer, error)
	Status(ctx context.Context, transferID id.TransferID) (*transfer.Detail, error)
}

type TransferHandler struct {
	transfers TransferService
	logger    *slog.Logger
}

type initiateRequest struct {
	CarID      string `json:"carId"`
	NewOwnerID string `json:"newOwnerId"`
}

func (h *TransferHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[initiateRequest](w, r, h.logger)
	if !ok {
		return
	}
	carID, err := id.ParseCarID(req.CarID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	newOwnerID, err := id.ParseUserID(req.NewOwnerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	t, err := h.transfers.Initiate(r.Context(), callerID, carID, newOwnerID)
	if err != nil {
		h.logError(r, "transfer initiation failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, "transfer initiated", map[string]any{"transfer": t})
}

type transferIDRequest struct {
	TransferID string `json:"transferId"`
}

func (h *TransferHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[transferIDRequest](w, r, h.logger)
	if !ok {
		return
	}
	transferID, err := id.ParseTransferID(req.TransferID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.transfers.Accept(r.Context(), callerID, transferID); err != nil {
		h.logError(r, "transfer acceptance failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "ownership transferred", nil)
}

type rejectRequest struct {
	TransferID string `json:"transferId"`
	Reason     string `json:"reason"`
}

func (h *TransferHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	callerID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[rejectRequest](w, r, h.logger)
	if !ok {
		return
	}
	transferID, err := id.ParseTransferID(req.TransferID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reason, err := transfer.ParseReason(req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.transfers.Reject(r.Context(), callerID, transferID, reason); err != nil {
		h.logError(r, "transfer rejection failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "transfer rejected", nil)
}

func (h *TransferHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := authmw.GetUserID(r.Context()); !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[transferIDRequest](w, r, h.logger)
	if !ok {
		return
	}
	transferID, err := id.ParseTransferID(req.TransferID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.transfers.Status(r.Context(), transferID)
	if err != nil {
		h.logError(r, "transfer status lookup failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "ok", map[string]any{"transfer": detail})
}

func (h *TransferHandler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
}
