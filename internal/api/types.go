package api

import (
	"time"

	"github.com/hackgods/grooming-scheduler/internal/appointment"
)

type AvailabilityRequest struct {
	Day           string   `json:"day"`
	PreferredTime string   `json:"preferred_time,omitempty"`
	Services      []string `json:"services"`
	PetSize       string   `json:"pet_size"`
	BlockMinutes  int      `json:"block_minutes,omitempty"`
	LookAheadDays *int     `json:"look_ahead_days,omitempty"`
}

type ServiceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AvailabilityResponse struct {
	Day             string            `json:"day"`
	Start           string            `json:"start"`
	End             string            `json:"end"`
	RequiredMinutes int               `json:"required_minutes"`
	Services        []ServiceResponse `json:"services"`
}

// CreateAppointmentRequest accepts services either by id or by name.
type CreateAppointmentRequest struct {
	Day        string   `json:"day"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	OwnerName  string   `json:"owner_name"`
	OwnerPhone string   `json:"owner_phone"`
	PetName    string   `json:"pet_name"`
	PetSize    string   `json:"pet_size"`
	PetBreed   string   `json:"pet_breed,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	ServiceIDs []string `json:"service_ids,omitempty"`
	Services   []string `json:"services,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OwnerResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type PetResponse struct {
	Name  string `json:"name"`
	Size  string `json:"size"`
	Breed string `json:"breed,omitempty"`
}

type AppointmentResponse struct {
	ID              string            `json:"id"`
	Day             string            `json:"day"`
	Start           string            `json:"start"`
	End             string            `json:"end"`
	Status          string            `json:"status"`
	Owner           OwnerResponse     `json:"owner"`
	Pet             PetResponse       `json:"pet"`
	Notes           string            `json:"notes,omitempty"`
	Services        []ServiceResponse `json:"services"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	CancelledReason string            `json:"cancelled_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Services []string `json:"services,omitempty"`
}

func toServiceResponses(services []appointment.Service) []ServiceResponse {
	out := make([]ServiceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, ServiceResponse{ID: s.ID, Name: s.Name})
	}
	return out
}

func toAvailabilityResponse(a *appointment.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		Day:             a.Day.Format(appointment.DateLayout),
		Start:           a.StartHHMM(),
		End:             a.EndHHMM(),
		RequiredMinutes: a.RequiredMinutes,
		Services:        toServiceResponses(a.Services),
	}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		Day:             a.Date.Format(appointment.DateLayout),
		Start:           appointment.MinutesToHHMM(a.Start),
		End:             appointment.MinutesToHHMM(a.End),
		Status:          string(a.Status),
		Owner:           OwnerResponse{Name: a.Owner.Name, Phone: a.Owner.Phone},
		Pet:             PetResponse{Name: a.Pet.Name, Size: string(a.Pet.Size), Breed: a.Pet.Breed},
		Notes:           a.Notes,
		Services:        toServiceResponses(a.Services),
		ExpiresAt:       a.ExpiresAt,
		CancelledReason: a.CancelledReason,
		CreatedAt:       a.CreatedAt,
	}
}
