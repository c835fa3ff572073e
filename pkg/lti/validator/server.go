package validator

import (
	"net/http"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/quipper/lti/nrps/pkg/common/logger"
)

// ServiceHandler is an LTI service endpoint. It declares what requests it
// accepts; ServiceServer enforces those declarations before handing over.
type ServiceHandler interface {
	ServiceName() string
	AllowedMethods() []string
	AllowedContentType() string
	AllowedScopes() []string
	// HandleValidatedServiceRequest writes the response for an authenticated
	// request. On error nothing must have been written.
	HandleValidatedServiceRequest(w http.ResponseWriter, r *http.Request, result *Result) error
}

// ServiceServer dispatches HTTP requests to a ServiceHandler.
type ServiceServer struct {
	validator *Validator
	handler   ServiceHandler
}

func NewServiceServer(v *Validator, h ServiceHandler) *ServiceServer {
	return &ServiceServer{validator: v, handler: h}
}

func (s *ServiceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.With(map[string]any{"service": s.handler.ServiceName(), "method": r.Method, "path": r.URL.Path})

	if methods := s.handler.AllowedMethods(); !slices.Contains(methods, r.Method) {
		log.Debug("service: method not allowed")
		w.Header().Set("Allow", strings.Join(methods, ", "))
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ct := s.handler.AllowedContentType(); ct != "" {
		if r.Method == http.MethodGet {
			if !strings.Contains(r.Header.Get("Accept"), ct) {
				log.Debugf("service: unacceptable accept=%q", r.Header.Get("Accept"))
				http.Error(w, "not acceptable", http.StatusNotAcceptable)
				return
			}
		} else if !strings.Contains(r.Header.Get("Content-Type"), ct) {
			log.Debugf("service: unsupported content_type=%q", r.Header.Get("Content-Type"))
			http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			return
		}
	}

	result, err := s.validator.Validate(r, s.handler.AllowedScopes())
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			log.Debugf("service: token rejected: %v", verr)
			if verr.Status == http.StatusUnauthorized || verr.Status == http.StatusForbidden {
				w.Header().Set("WWW-Authenticate", `Bearer realm="lti-`+s.handler.ServiceName()+`", error="`+verr.Code+`", error_description="`+verr.Description+`"`)
			}
			http.Error(w, verr.Code, verr.Status)
			return
		}
		log.Errorf("service: validation: %v", err)
		http.Error(w, "server_error", http.StatusInternalServerError)
		return
	}

	if err := s.handler.HandleValidatedServiceRequest(w, r, result); err != nil {
		log.Errorf("service: handler client_id=%s: %v", result.Registration.ClientID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	log.Debugf("service: ok client_id=%s", result.Registration.ClientID)
}
