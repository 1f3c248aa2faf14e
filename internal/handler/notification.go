package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/courier/internal/ierr"
	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/persistence"
)

const maxHistoryPageSize = 100

type AddRequest struct {
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Kind       notification.Kind    `json:"kind"`
	DurationMs *int64               `json:"durationMs"`
	Action     *notification.Action `json:"action"`
}

type IdRequest struct {
	Id string `json:"id"`
}

type UpdateRequest struct {
	Id         string               `json:"id"`
	Title      *string              `json:"title"`
	Message    *string              `json:"message"`
	Kind       *notification.Kind   `json:"kind"`
	Read       *bool                `json:"read"`
	DurationMs *int64               `json:"durationMs"`
	Action     *notification.Action `json:"action"`
}

type ClearRequest struct {
	ReadOnly bool `json:"readOnly"`
}

type HistoryRequest struct {
	LastSeenId string `json:"lastSeenId"`
	Limit      int    `json:"limit"`
}

type HistoryResponse struct {
	Records    []persistence.Record `json:"records"`
	LastSeenId string               `json:"lastSeenId,omitempty"`
}

type NotificationHandlerInterface interface {
	List(ctx context.Context) (notification.State, error)
	Add(ctx context.Context, req AddRequest) (notification.Notification, error)
	MarkAsRead(ctx context.Context, req IdRequest) (notification.State, error)
	MarkAllAsRead(ctx context.Context) (notification.State, error)
	Update(ctx context.Context, req UpdateRequest) (notification.Notification, error)
	Remove(ctx context.Context, req IdRequest) (notification.State, error)
	Clear(ctx context.Context, req ClearRequest) (notification.State, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

type NotificationHandler struct {
	store   *notification.Store
	archive persistence.Engine
}

// NewNotificationHandler builds the handler; archive may be nil when no
// history backend is configured.
func NewNotificationHandler(store *notification.Store, archive persistence.Engine) *NotificationHandler {
	return &NotificationHandler{
		store,
		archive,
	}
}

func (h *NotificationHandler) List(ctx context.Context) (notification.State, error) {
	if err := requireRead(ctx); err != nil {
		return notification.State{}, err
	}

	return h.store.State(), nil
}

func (h *NotificationHandler) Add(ctx context.Context, req AddRequest) (notification.Notification, error) {
	if err := requireWrite(ctx); err != nil {
		return notification.Notification{}, err
	}

	if req.Title == "" {
		return notification.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("title is required"))
	}

	if req.Kind != "" && !req.Kind.Valid() {
		return notification.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid kind: "+string(req.Kind)))
	}

	duration, err := parseDuration(req.DurationMs)
	if err != nil {
		return notification.Notification{}, err
	}

	if err := validateAction(req.Action); err != nil {
		return notification.Notification{}, err
	}

	state := h.store.Add(notification.Draft{
		Title:    req.Title,
		Message:  req.Message,
		Kind:     req.Kind,
		Duration: duration,
		Action:   req.Action,
	})

	return state.Notifications[0], nil
}

func (h *NotificationHandler) MarkAsRead(ctx context.Context, req IdRequest) (notification.State, error) {
	if err := h.requireExisting(ctx, req.Id); err != nil {
		return notification.State{}, err
	}

	return h.store.MarkAsRead(req.Id), nil
}

func (h *NotificationHandler) MarkAllAsRead(ctx context.Context) (notification.State, error) {
	if err := requireWrite(ctx); err != nil {
		return notification.State{}, err
	}

	return h.store.MarkAllAsRead(), nil
}

func (h *NotificationHandler) Update(ctx context.Context, req UpdateRequest) (notification.Notification, error) {
	if err := h.requireExisting(ctx, req.Id); err != nil {
		return notification.Notification{}, err
	}

	if req.Kind != nil && !req.Kind.Valid() {
		return notification.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid kind: "+string(*req.Kind)))
	}

	duration, err := parseDuration(req.DurationMs)
	if err != nil {
		return notification.Notification{}, err
	}

	if err := validateAction(req.Action); err != nil {
		return notification.Notification{}, err
	}

	state := h.store.Update(req.Id, notification.Patch{
		Title:    req.Title,
		Message:  req.Message,
		Kind:     req.Kind,
		Read:     req.Read,
		Duration: duration,
		Action:   req.Action,
	})

	n, ok := state.Find(req.Id)
	if !ok {
		// Expired between the lookup and the update.
		return notification.Notification{}, notFound(req.Id)
	}

	return n, nil
}

func (h *NotificationHandler) Remove(ctx context.Context, req IdRequest) (notification.State, error) {
	if err := h.requireExisting(ctx, req.Id); err != nil {
		return notification.State{}, err
	}

	return h.store.Remove(req.Id), nil
}

func (h *NotificationHandler) Clear(ctx context.Context, req ClearRequest) (notification.State, error) {
	if err := requireWrite(ctx); err != nil {
		return notification.State{}, err
	}

	if req.ReadOnly {
		return h.store.ClearRead(), nil
	}

	return h.store.Clear(), nil
}

func (h *NotificationHandler) History(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	if err := requireRead(ctx); err != nil {
		return HistoryResponse{}, err
	}

	if h.archive == nil {
		return HistoryResponse{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("notification history is not enabled"))
	}

	limit := req.Limit
	if limit <= 0 || limit > maxHistoryPageSize {
		limit = persistence.DefaultPageSize
	}

	records, err := h.archive.List(ctx, req.LastSeenId, limit)
	if err != nil {
		return HistoryResponse{}, err
	}

	response := HistoryResponse{Records: records}
	if len(records) > 0 {
		response.LastSeenId = records[len(records)-1].Id
	}

	return response, nil
}

func (h *NotificationHandler) requireExisting(ctx context.Context, id string) error {
	if err := requireWrite(ctx); err != nil {
		return err
	}

	if id == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("id is required"))
	}

	if _, ok := h.store.Get(id); !ok {
		return notFound(id)
	}

	return nil
}

func notFound(id string) error {
	return ierr.New(ierr.ErrorCodeNotFound, errors.New("notification not found: "+id))
}

func parseDuration(durationMs *int64) (*time.Duration, error) {
	if durationMs == nil {
		return nil, nil
	}

	if *durationMs < 0 {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("durationMs cannot be negative"))
	}

	return notification.Duration(time.Duration(*durationMs) * time.Millisecond), nil
}

func validateAction(action *notification.Action) error {
	if action == nil {
		return nil
	}

	if action.Label == "" || action.Target == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("action requires label and target"))
	}

	return nil
}
