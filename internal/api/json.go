package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tripnav/internal/opt"
)

const maxBodyBytes = 1 << 20

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string           `json:"type"`
	Title    string           `json:"title"`
	Status   int              `json:"status"`
	Detail   string           `json:"detail,omitempty"`
	Instance string           `json:"instance,omitempty"`
	Errors   []opt.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemDoc(w, Problem{Title: title, Status: status, Detail: detail, Instance: instance})
}

func writeProblemDoc(w http.ResponseWriter, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// writeOptimizeError maps optimizer errors onto problem responses.
func (s *Server) writeOptimizeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *opt.ValidationError
	errors.As(err, &verr)
	p := Problem{Detail: err.Error(), Instance: r.URL.Path}
	if verr != nil {
		p.Errors = verr.Problems
	}
	switch {
	case errors.Is(err, opt.ErrValidation):
		p.Status, p.Title = http.StatusBadRequest, "Invalid optimization request"
	case errors.Is(err, opt.ErrMissingParameter):
		p.Status, p.Title = http.StatusBadRequest, "Missing required parameter"
	case errors.Is(err, opt.ErrOptimizationTimeout):
		p.Status, p.Title = http.StatusGatewayTimeout, "Optimization timed out"
	case errors.Is(err, context.Canceled):
		s.logger().Info("client went away", "request_id", RequestID(r.Context()))
		return
	default:
		s.logger().Error("optimization failed", "request_id", RequestID(r.Context()), "err", err)
		p.Status, p.Title, p.Detail = http.StatusInternalServerError, "Optimization failed", "internal error"
	}
	writeProblemDoc(w, p)
}
