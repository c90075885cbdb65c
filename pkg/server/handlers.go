package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/navigate"
)

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	address, ok := s.address(w, r)
	if !ok {
		return
	}

	target, err := s.resolver.Resolve(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, domain.ResolveResponse{Address: address, URL: target}, http.StatusOK)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reporter, ok := s.resolver.(StatusReporter)
	if !ok {
		writeJSON(w, domain.ErrorResponse{
			Code:    domain.CodeInternal,
			Message: "cache status not supported by this backend",
		}, http.StatusNotImplemented)
		return
	}

	status, err := reporter.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, http.StatusOK)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := s.resolver.ClearCache(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	address, ok := s.address(w, r)
	if !ok {
		return
	}

	target, err := s.navigator.Navigate(r.Context(), address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if target.NotFound {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(navigate.NotFoundPage(address))
		return
	}
	http.Redirect(w, r, target.URL, http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// address extracts and bounds the address query parameter. It writes a 400
// and returns false when the parameter is unusable.
func (s *Server) address(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	switch {
	case address == "":
		s.writeError(w, r, &domain.DomainError{
			Err: domain.ErrInvalidAddress, Code: domain.CodeInvalidAddress,
			Message: "address query parameter is required",
		})
		return "", false
	case len(address) > domain.MaxAddressLength:
		s.writeError(w, r, &domain.DomainError{
			Err: domain.ErrInvalidAddress, Code: domain.CodeInvalidAddress,
			Message: "address exceeds maximum length",
		})
		return "", false
	}
	return address, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDomainNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAddress):
		status = http.StatusBadRequest
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	resp := domain.ErrorResponse{
		Code:    domain.CodeOf(err),
		Message: err.Error(),
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	writeJSON(w, resp, status)
}

func writeJSON(w http.ResponseWriter, val any, statusCode int) {
	b, err := json.Marshal(val)
	if err != nil {
		http.Error(w, "marshaling response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(b)
}
