package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/goevery/courier/internal/auth"
	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/ierr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RESTServer struct {
	logger        *zap.Logger
	authenticator *auth.Authenticator

	notificationHandler handler.NotificationHandlerInterface
	toastHandler        handler.ToastHandlerInterface
	connectionHandler   handler.ConnectionHandlerInterface
}

func NewRESTServer(
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	notificationHandler handler.NotificationHandlerInterface,
	toastHandler handler.ToastHandlerInterface,
	connectionHandler handler.ConnectionHandlerInterface,
) *RESTServer {
	return &RESTServer{
		logger,
		authenticator,
		notificationHandler,
		toastHandler,
		connectionHandler,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	api := router.NewRoute().Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		state, err := s.notificationHandler.List(r.Context())
		s.respond(w, http.StatusOK, state, err)
	}).Methods("GET")

	api.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		var addRequest handler.AddRequest
		if !s.decode(w, r, &addRequest) {
			return
		}

		n, err := s.notificationHandler.Add(r.Context(), addRequest)
		s.respond(w, http.StatusCreated, n, err)
	}).Methods("POST")

	api.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		readOnly, _ := strconv.ParseBool(r.URL.Query().Get("read"))

		state, err := s.notificationHandler.Clear(r.Context(), handler.ClearRequest{ReadOnly: readOnly})
		s.respond(w, http.StatusOK, state, err)
	}).Methods("DELETE")

	api.HandleFunc("/notifications/read", func(w http.ResponseWriter, r *http.Request) {
		state, err := s.notificationHandler.MarkAllAsRead(r.Context())
		s.respond(w, http.StatusOK, state, err)
	}).Methods("POST")

	api.HandleFunc("/notifications/history", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))

		history, err := s.notificationHandler.History(r.Context(), handler.HistoryRequest{
			LastSeenId: query.Get("lastSeenId"),
			Limit:      limit,
		})
		s.respond(w, http.StatusOK, history, err)
	}).Methods("GET")

	api.HandleFunc("/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		state, err := s.notificationHandler.MarkAsRead(r.Context(), handler.IdRequest{Id: mux.Vars(r)["id"]})
		s.respond(w, http.StatusOK, state, err)
	}).Methods("POST")

	api.HandleFunc("/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		var updateRequest handler.UpdateRequest
		if !s.decode(w, r, &updateRequest) {
			return
		}
		updateRequest.Id = mux.Vars(r)["id"]

		n, err := s.notificationHandler.Update(r.Context(), updateRequest)
		s.respond(w, http.StatusOK, n, err)
	}).Methods("PATCH")

	api.HandleFunc("/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		state, err := s.notificationHandler.Remove(r.Context(), handler.IdRequest{Id: mux.Vars(r)["id"]})
		s.respond(w, http.StatusOK, state, err)
	}).Methods("DELETE")

	api.HandleFunc("/toasts", func(w http.ResponseWriter, r *http.Request) {
		toasts, err := s.toastHandler.List(r.Context())
		s.respond(w, http.StatusOK, toasts, err)
	}).Methods("GET")

	api.HandleFunc("/toasts/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		response, err := s.toastHandler.Close(r.Context(), handler.IdRequest{Id: mux.Vars(r)["id"]})
		s.respond(w, http.StatusOK, response, err)
	}).Methods("POST")

	api.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		statuses, err := s.connectionHandler.List(r.Context())
		s.respond(w, http.StatusOK, statuses, err)
	}).Methods("GET")

	api.HandleFunc("/connections/{namespace}", func(w http.ResponseWriter, r *http.Request) {
		status, err := s.connectionHandler.Connect(r.Context(), handler.NamespaceRequest{Namespace: mux.Vars(r)["namespace"]})
		s.respond(w, http.StatusAccepted, status, err)
	}).Methods("POST")

	api.HandleFunc("/connections/{namespace}", func(w http.ResponseWriter, r *http.Request) {
		status, err := s.connectionHandler.Disconnect(r.Context(), handler.NamespaceRequest{Namespace: mux.Vars(r)["namespace"]})
		s.respond(w, http.StatusOK, status, err)
	}).Methods("DELETE")
}

func (s *RESTServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authentication, err := s.authenticator.AuthenticateRequest(r)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAuthentication(r.Context(), authentication)))
	})
}

func (s *RESTServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, s.logger, ierr.New(ierr.ErrorCodeInvalidArgument, err))
		return false
	}

	return true
}

func (s *RESTServer) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeJSON(w, s.logger, status, body)
}

type errorResponse struct {
	Error ierr.Error `json:"error"`
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	handlerErr := mapError(logger, err)

	writeJSON(w, logger, ierr.HTTPStatus(handlerErr.Code), errorResponse{handlerErr})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}
