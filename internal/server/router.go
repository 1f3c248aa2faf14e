package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/ierr"
	"go.uber.org/zap"
)

// Router dispatches requests received over the stream websocket.
type Router struct {
	logger *zap.Logger

	heartbeatHandler    handler.HeartbeatHandlerInterface
	notificationHandler handler.NotificationHandlerInterface
	toastHandler        handler.ToastHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	notificationHandler handler.NotificationHandlerInterface,
	toastHandler handler.ToastHandlerInterface,
) *Router {
	return &Router{
		logger,
		heartbeatHandler,
		notificationHandler,
		toastHandler,
	}
}

func (r *Router) RouteRequest(ctx context.Context, request handler.Request) *handler.Response {
	response, err := r.Handle(ctx, request)
	if err != nil {
		response := request.ReplyWithError(mapError(r.logger, err))

		return &response
	}

	if !request.ReplyExpected() {
		return nil
	}

	rawJson, err := json.Marshal(response)
	if err != nil {
		response := request.ReplyWithError(mapError(r.logger, err))

		return &response
	}

	payload := json.RawMessage(rawJson)
	reply := request.Reply(&payload)

	return &reply
}

func (r *Router) Handle(ctx context.Context, request handler.Request) (any, error) {
	switch request.Method {
	case "heartbeat":
		return r.heartbeatHandler.Handle(), nil
	case "state":
		return r.notificationHandler.List(ctx)
	case "markAsRead":
		var idReq handler.IdRequest
		if err := decodeParams(request.Params, &idReq); err != nil {
			return nil, err
		}

		return r.notificationHandler.MarkAsRead(ctx, idReq)
	case "markAllAsRead":
		return r.notificationHandler.MarkAllAsRead(ctx)
	case "remove":
		var idReq handler.IdRequest
		if err := decodeParams(request.Params, &idReq); err != nil {
			return nil, err
		}

		return r.notificationHandler.Remove(ctx, idReq)
	case "closeToast":
		var idReq handler.IdRequest
		if err := decodeParams(request.Params, &idReq); err != nil {
			return nil, err
		}

		return r.toastHandler.Close(ctx, idReq)
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("method not found: "+request.Method))
	}
}

func mapError(logger *zap.Logger, err error) ierr.Error {
	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	logger.Error("error in handler", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
}

func decodeParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(*params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}
