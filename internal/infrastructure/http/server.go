package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/http/openapi"
	"users-service/internal/infrastructure/logx"
	"users-service/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

var _ openapi.ServerInterface = (*Server)(nil)

type Server struct {
	svc     *application.UserService
	metrics *metrics.Metrics
	ping    func(ctx context.Context) error
}

func NewServer(svc *application.UserService, m *metrics.Metrics) *Server {
	return &Server{svc: svc, metrics: m}
}

// SetReadyCheck installs the dependency probe behind /readyz.
func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.svc.ListUsers(r.Context())
	resp := make([]openapi.User, 0, len(users))
	for _, u := range users {
		resp = append(resp, toAPI(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request, params openapi.CreateUserParams) {
	in, ok := decodeUser(w, r)
	if !ok {
		return
	}
	u, err := s.svc.CreateUser(r.Context(), in, params.XIdempotencyKey)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPI(u))
}

func (s *Server) CreateUserWithError(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeUser(w, r)
	if !ok {
		return
	}
	fail(w, r, s.svc.CreateUserThenFail(r.Context(), in))
}

func (s *Server) GetUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPI(u))
}

func (s *Server) UpdateUser(w http.ResponseWriter, r *http.Request, id string) {
	in, ok := decodeUpdate(w, r, id)
	if !ok {
		return
	}
	u, err := s.svc.UpdateUser(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPI(u))
}

func (s *Server) UpdateUserWithError(w http.ResponseWriter, r *http.Request, id string) {
	in, ok := decodeUpdate(w, r, id)
	if !ok {
		return
	}
	fail(w, r, s.svc.UpdateUserThenFail(r.Context(), in))
}

func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.svc.DeleteUser(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	var body openapi.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid JSON body")
		return domain.User{}, false
	}
	return fromAPI(body), true
}

// decodeUpdate takes the id from the path; a body id, if present, must match it.
func decodeUpdate(w http.ResponseWriter, r *http.Request, id string) (domain.User, bool) {
	in, ok := decodeUser(w, r)
	if !ok {
		return domain.User{}, false
	}
	if in.ID != "" && in.ID != id {
		badRequest(w, "id in body does not match path")
		return domain.User{}, false
	}
	in.ID = id
	return in, true
}

func fromAPI(b openapi.UserRequest) domain.User {
	u := domain.User{Name: b.Name}
	if b.Id != nil {
		u.ID = *b.Id
	}
	if b.Email != nil {
		u.Email = *b.Email
	}
	return u
}

func toAPI(u domain.User) openapi.User {
	out := openapi.User{
		Id:        u.ID,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Email != "" {
		email := u.Email
		out.Email = &email
	}
	return out
}

// fail maps service errors onto the error envelope.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		// the with-error operations always fail
		internalError(w)
	case errors.Is(err, application.ErrBadRequest):
		badRequest(w, err.Error())
	case errors.Is(err, application.ErrNotFound):
		notFound(w)
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, "idempotency key already used")
	case errors.Is(err, application.ErrInducedFailure):
		writeError(w, http.StatusInternalServerError, "induced failure, transaction rolled back")
	default:
		logx.FromContext(r.Context()).Error("http.handler_failed", zap.String("path", r.URL.Path), zap.Error(err))
		internalError(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, openapi.Error{Code: status, Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
