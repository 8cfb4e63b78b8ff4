package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type createPositionRequest struct {
	PositionNumber int     `json:"positionNumber" validate:"required,min=1"`
	Name           string  `json:"name" validate:"required,max=200"`
	Area           *string `json:"area"`
	Sequence       *int    `json:"sequence"`
}

type bulkCreateRequest struct {
	StartNumber     int                 `json:"startNumber" validate:"required,min=1"`
	EndNumber       int                 `json:"endNumber" validate:"required,min=1"`
	NamePrefix      string              `json:"namePrefix" validate:"required,max=100"`
	Area            *string             `json:"area"`
	ShiftTemplateID string              `json:"shiftTemplateId"`
	CustomShifts    []db.ShiftBlueprint `json:"customShifts" validate:"omitempty,dive"`
}

type applyTemplateRequest struct {
	PositionIDs  []string            `json:"positionIds" validate:"required,min=1,dive,required"`
	TemplateType string              `json:"templateType" validate:"required"`
	CustomShifts []db.ShiftBlueprint `json:"customShifts" validate:"omitempty,dive"`
}

type oversightRequest struct {
	OverseerID *string `json:"overseerId"`
	KeymanID   *string `json:"keymanId"`
}

type bulkOversightRequest struct {
	PositionIDs []string `json:"positionIds" validate:"required,min=1,dive,required"`
	OverseerID  *string  `json:"overseerId"`
	KeymanID    *string  `json:"keymanId"`
}

// userId is accepted as an alias of attendantId
type createAssignmentRequest struct {
	AttendantID string    `json:"attendantId" validate:"required_without=UserID"`
	UserID      string    `json:"userId" validate:"excluded_with=AttendantID"`
	PositionID  string    `json:"positionId" validate:"required"`
	ShiftID     *string   `json:"shiftId"`
	ShiftStart  time.Time `json:"shiftStart" validate:"required"`
	ShiftEnd    time.Time `json:"shiftEnd" validate:"required"`
	Notes       *string   `json:"notes"`
}

type updateAssignmentRequest struct {
	PositionID *string    `json:"positionId"`
	ShiftID    *string    `json:"shiftId"`
	ShiftStart *time.Time `json:"shiftStart"`
	ShiftEnd   *time.Time `json:"shiftEnd"`
	Notes      *string    `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=ASSIGNED CONFIRMED COMPLETED CANCELLED"`
}

type createSessionRequest struct {
	SessionName string    `json:"sessionName" validate:"required,max=200"`
	CountTime   time.Time `json:"countTime" validate:"required"`
	Notes       *string   `json:"notes"`
}

type updateSessionRequest struct {
	SessionName *string    `json:"sessionName" validate:"omitempty,max=200"`
	CountTime   *time.Time `json:"countTime"`
	Status      *string    `json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELLED"`
	IsActive    *bool      `json:"isActive"`
	Notes       *string    `json:"notes"`
}

type scheduleSessionsRequest struct {
	NamePrefix string    `json:"namePrefix" validate:"required,max=150"`
	RRule      string    `json:"rrule" validate:"required"`
	Start      time.Time `json:"start"`
}

type submitCountRequest struct {
	PositionID    string  `json:"positionId" validate:"required"`
	AttendeeCount *int    `json:"attendeeCount" validate:"required"`
	Notes         *string `json:"notes"`
}

type createTemplateRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description string              `json:"description"`
	Shifts      []db.ShiftBlueprint `json:"shifts" validate:"required,min=1,dive"`
}

// requestError is a malformed or invalid request body
type requestError struct {
	code    string
	message string
	details map[string]any
}

func (e *requestError) Error() string { return e.message }

// decodeRequest decodes a JSON body into dst, rejecting unknown fields, then validates it
func decodeRequest(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestError{code: "INVALID_JSON", message: "request body is required"}
		}
		return &requestError{code: "INVALID_JSON", message: fmt.Sprintf("invalid json: %v", err)}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[jsonFieldPath(fe.Namespace())] = fe.Tag()
			}
			return &requestError{code: "VALIDATION_FAILED", message: "request validation failed", details: map[string]any{"fields": fields}}
		}
		return &requestError{code: "VALIDATION_FAILED", message: err.Error()}
	}
	return nil
}

// jsonFieldPath turns "bulkCreateRequest.CustomShifts[0].Name" into "CustomShifts[0].Name"
func jsonFieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// decodeOrFail decodes the body and writes a 400 on failure; it reports whether to continue
func (s *Server) decodeOrFail(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeRequest(r, dst); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			writeAPIError(w, r, http.StatusBadRequest, re.code, re.message, re.details)
			return false
		}
		s.writeServiceError(w, r, err)
		return false
	}
	return true
}

func (r createAssignmentRequest) attendant() string {
	if r.AttendantID != "" {
		return r.AttendantID
	}
	return r.UserID
}
