package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

func availabilityHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		size, err := appointment.ParsePetSize(req.PetSize)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_size", "pet_size must be SMALL, MEDIUM or LARGE")
			return
		}

		avail, err := svc.GetAvailability(r.Context(), appointment.AvailabilityRequest{
			Day:           req.Day,
			PreferredTime: req.PreferredTime,
			ServiceNames:  req.Services,
			PetSize:       size,
			BlockMinutes:  req.BlockMinutes,
			LookAheadDays: req.LookAheadDays,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(avail))
	}
}

func createAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		size, err := appointment.ParsePetSize(req.PetSize)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pet_size", "pet_size must be SMALL, MEDIUM or LARGE")
			return
		}

		serviceIDs := req.ServiceIDs
		if len(serviceIDs) == 0 && len(req.Services) > 0 {
			serviceIDs, err = svc.ResolveServiceIDs(r.Context(), req.Services)
			if err != nil {
				handleServiceError(w, r, logger, err)
				return
			}
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.BookingRequest{
			Day:        req.Day,
			Start:      req.Start,
			End:        req.End,
			OwnerName:  req.OwnerName,
			OwnerPhone: req.OwnerPhone,
			PetName:    req.PetName,
			PetSize:    size,
			PetBreed:   req.PetBreed,
			Notes:      req.Notes,
			ServiceIDs: serviceIDs,
		})
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelAppointmentRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.CancelAppointment(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Reason))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc AppointmentService, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil || status == appointment.StatusPending {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be CONFIRMED, REJECTED or CANCELLED")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var services []string
	var svcErr *appointment.ServicesError
	if errors.As(err, &svcErr) {
		services = svcErr.Services
	}

	switch {
	case errors.Is(err, appointment.ErrServiceNotFound):
		writeErrorServices(w, http.StatusNotFound, "service_not_found", err.Error(), services)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrServiceNotAvailableForSize):
		writeErrorServices(w, http.StatusUnprocessableEntity, "service_not_available_for_size", err.Error(), services)
	case errors.Is(err, appointment.ErrDurationRulesMissing):
		writeError(w, http.StatusUnprocessableEntity, "duration_rules_missing", err.Error())
	case errors.Is(err, appointment.ErrNoAvailability):
		writeError(w, http.StatusNotFound, "no_availability", err.Error())
	case errors.Is(err, appointment.ErrNotFuture):
		writeError(w, http.StatusUnprocessableEntity, "not_in_future", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot was taken, search availability again")
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusBadRequest, "appointment_already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrHoldExpired):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case appointment.KindOf(err) == appointment.KindValidation:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeErrorServices(w http.ResponseWriter, status int, code, details string, services []string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details, Services: services})
}
