package httptransport

import (
	"log/slog"
	"net/http"

	dErrors "renavam/pkg/domain-errors"
	"renavam/pkg/platform/httputil"
	authmw "renavam/pkg/platform/middleware/auth"
	"renavam/pkg/requestcontext"

	"renavam/internal/car"
)

type CarHandler struct {
	cars   CarService
	logger *slog.Logger
}

type registerCarRequest struct {
	Plate           string `json:"plate"`
	Model           string `json:"model"`
	ModelYear       int    `json:"modelYear"`
	ManufactureYear int    `json:"manufactureYear"`
	Color           string `json:"color"`
	Mileage         int    `json:"mileage"`
}

func (h *CarHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[registerCarRequest](w, r, h.logger)
	if !ok {
		return
	}

	registered, err := h.cars.Register(r.Context(), userID, car.RegistrationInput{
		Plate:           req.Plate,
		Model:           req.Model,
		ModelYear:       req.ModelYear,
		ManufactureYear: req.ManufactureYear,
		Color:           req.Color,
		Mileage:         req.Mileage,
	})
	if err != nil {
		h.logError(r, "car registration failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, "car registered", map[string]any{"car": registered})
}

func (h *CarHandler) HandleMyCars(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	cars, err := h.cars.ListOwnedBy(r.Context(), userID)
	if err != nil {
		h.logError(r, "car listing failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, "ok", map[string]any{"cars": cars})
}

func (h *CarHandler) logError(r *http.Request, msg string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
}
