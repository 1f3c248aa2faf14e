package handler

import (
	"context"
	"errors"

	"github.com/goevery/courier/internal/ierr"
	"github.com/goevery/courier/internal/toast"
)

type Toasts interface {
	Toasts() []toast.Toast
	Close(id string) bool
}

type CloseToastResponse struct {
	Success bool `json:"success"`
}

type ToastHandlerInterface interface {
	List(ctx context.Context) ([]toast.Toast, error)
	Close(ctx context.Context, req IdRequest) (CloseToastResponse, error)
}

type ToastHandler struct {
	toasts Toasts
}

func NewToastHandler(toasts Toasts) *ToastHandler {
	return &ToastHandler{
		toasts,
	}
}

func (h *ToastHandler) List(ctx context.Context) ([]toast.Toast, error) {
	if err := requireRead(ctx); err != nil {
		return nil, err
	}

	return h.toasts.Toasts(), nil
}

func (h *ToastHandler) Close(ctx context.Context, req IdRequest) (CloseToastResponse, error) {
	if err := requireWrite(ctx); err != nil {
		return CloseToastResponse{}, err
	}

	if !h.toasts.Close(req.Id) {
		return CloseToastResponse{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("toast not visible: "+req.Id))
	}

	return CloseToastResponse{
		Success: true,
	}, nil
}
