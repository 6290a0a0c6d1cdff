package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"partshop/internal/middleware"
	"partshop/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// retryAfterSeconds is advertised on 503 responses caused by pool exhaustion.
const retryAfterSeconds = "1"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// requestError is a malformed request caught before it reaches a service.
type requestError struct {
	status  int
	code    string
	message string
	details map[string]string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(code, message string) *requestError {
	return &requestError{status: http.StatusBadRequest, code: code, message: message}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError maps err to a status code and writes a standard error body.
// Internal failures never leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	resp := model.ErrorResponse{CorrelationID: middleware.RequestIDFromContext(r.Context())}
	status := http.StatusInternalServerError

	var reqErr *requestError
	var domainErr *model.DomainError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.status
		resp.Error, resp.Message, resp.Details = reqErr.code, reqErr.message, reqErr.details
	case errors.As(err, &domainErr):
		status = statusForKind(domainErr.Kind)
		resp.Error, resp.Message = domainErr.Code, domainErr.Message
	default:
		resp.Error, resp.Message = model.ErrCodeInternalError, "internal server error"
	}

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("code", resp.Error).
		Str("request_id", resp.CorrelationID).
		Msg("request failed")

	if model.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, resp)
}

func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindConflict:
		return http.StatusConflict
	case model.KindResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a strict JSON body into dest and validates it.
func decodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		e := badRequest(model.ErrCodeInvalidJSON, "invalid request body")
		e.details = map[string]string{"body": err.Error()}
		return e
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return badRequest(model.ErrCodeValidation, "validation failed")
	}

	details := make(map[string]string, len(errs))
	code := model.ErrCodeValidation
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
		if strings.HasPrefix(fe.Tag(), "required") {
			code = model.ErrCodeMissingField
		}
	}
	e := badRequest(code, "validation failed")
	e.details = details
	return e
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is absent", fe.Param())
	case "min":
		return fmt.Sprintf("must contain at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

// userID reads the caller identity forwarded by the auth gateway.
func userID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(middleware.UserIDHeader))
	if raw == "" {
		return uuid.Nil, &requestError{
			status:  http.StatusUnauthorized,
			code:    model.ErrCodeUnauthorised,
			message: "missing user identity",
		}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest(model.ErrCodeValidation, "invalid user id")
	}
	return id, nil
}

// optionalUserID is userID for endpoints that also serve anonymous callers.
func optionalUserID(r *http.Request) (*uuid.UUID, error) {
	if strings.TrimSpace(r.Header.Get(middleware.UserIDHeader)) == "" {
		return nil, nil
	}
	id, err := userID(r)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest(model.ErrCodeValidation, "invalid "+name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(model.ErrCodeValidation, "invalid "+key+" parameter")
	}
	return v, nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func statusFilter(r *http.Request) (*model.OrderStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status, err := model.ParseOrderStatus(raw)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
