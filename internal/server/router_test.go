package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/ierr"
	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/toast"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotificationHandler struct {
	mock.Mock
}

func (m *mockNotificationHandler) List(ctx context.Context) (notification.State, error) {
	args := m.Called()
	return args.Get(0).(notification.State), args.Error(1)
}

func (m *mockNotificationHandler) Add(ctx context.Context, req handler.AddRequest) (notification.Notification, error) {
	args := m.Called(req)
	return args.Get(0).(notification.Notification), args.Error(1)
}

func (m *mockNotificationHandler) MarkAsRead(ctx context.Context, req handler.IdRequest) (notification.State, error) {
	args := m.Called(req)
	return args.Get(0).(notification.State), args.Error(1)
}

func (m *mockNotificationHandler) MarkAllAsRead(ctx context.Context) (notification.State, error) {
	args := m.Called()
	return args.Get(0).(notification.State), args.Error(1)
}

func (m *mockNotificationHandler) Update(ctx context.Context, req handler.UpdateRequest) (notification.Notification, error) {
	args := m.Called(req)
	return args.Get(0).(notification.Notification), args.Error(1)
}

func (m *mockNotificationHandler) Remove(ctx context.Context, req handler.IdRequest) (notification.State, error) {
	args := m.Called(req)
	return args.Get(0).(notification.State), args.Error(1)
}

func (m *mockNotificationHandler) Clear(ctx context.Context, req handler.ClearRequest) (notification.State, error) {
	args := m.Called(req)
	return args.Get(0).(notification.State), args.Error(1)
}

func (m *mockNotificationHandler) History(ctx context.Context, req handler.HistoryRequest) (handler.HistoryResponse, error) {
	args := m.Called(req)
	return args.Get(0).(handler.HistoryResponse), args.Error(1)
}

type mockToastHandler struct {
	mock.Mock
}

func (m *mockToastHandler) List(ctx context.Context) ([]toast.Toast, error) {
	args := m.Called()
	return args.Get(0).([]toast.Toast), args.Error(1)
}

func (m *mockToastHandler) Close(ctx context.Context, req handler.IdRequest) (handler.CloseToastResponse, error) {
	args := m.Called(req)
	return args.Get(0).(handler.CloseToastResponse), args.Error(1)
}

func rpcRequest(t *testing.T, id int, method string, params any) handler.Request {
	t.Helper()

	request := handler.Request{Id: id, Method: method}
	if params != nil {
		rawJson, err := json.Marshal(params)
		require.NoError(t, err)

		raw := json.RawMessage(rawJson)
		request.Params = &raw
	}

	return request
}

func TestRouter_RouteRequest(t *testing.T) {
	notifications := &mockNotificationHandler{}
	toasts := &mockToastHandler{}
	router := NewRouter(zap.NewNop(), handler.NewHeartbeatHandler(clockwork.NewFakeClock()), notifications, toasts)

	t.Run("markAsRead", func(t *testing.T) {
		state := notification.State{Revision: 7}
		notifications.On("MarkAsRead", handler.IdRequest{Id: "a"}).Return(state, nil).Once()

		response := router.RouteRequest(context.Background(), rpcRequest(t, 1, "markAsRead", handler.IdRequest{Id: "a"}))

		require.NotNil(t, response)
		assert.False(t, response.IsFailure())
		assert.Equal(t, 1, response.RequestId)

		var result notification.State
		require.NoError(t, json.Unmarshal(*response.Result, &result))
		assert.Equal(t, uint64(7), result.Revision)
	})

	t.Run("closeToast", func(t *testing.T) {
		toasts.On("Close", handler.IdRequest{Id: "b"}).Return(handler.CloseToastResponse{Success: true}, nil).Once()

		response := router.RouteRequest(context.Background(), rpcRequest(t, 2, "closeToast", handler.IdRequest{Id: "b"}))

		require.NotNil(t, response)
		assert.JSONEq(t, `{"success":true}`, string(*response.Result))
	})

	t.Run("handler error keeps its code", func(t *testing.T) {
		notifications.On("Remove", handler.IdRequest{Id: "missing"}).
			Return(notification.State{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("notification not found"))).
			Once()

		response := router.RouteRequest(context.Background(), rpcRequest(t, 3, "remove", handler.IdRequest{Id: "missing"}))

		require.True(t, response.IsFailure())
		assert.Equal(t, ierr.ErrorCodeNotFound, response.Error.Code)
	})

	t.Run("unexpected error is internal", func(t *testing.T) {
		notifications.On("MarkAllAsRead").Return(notification.State{}, errors.New("boom")).Once()

		response := router.RouteRequest(context.Background(), rpcRequest(t, 4, "markAllAsRead", nil))

		require.True(t, response.IsFailure())
		assert.Equal(t, ierr.ErrorCodeInternal, response.Error.Code)
	})

	t.Run("no reply without id", func(t *testing.T) {
		notifications.On("List").Return(notification.State{}, nil).Once()

		assert.Nil(t, router.RouteRequest(context.Background(), rpcRequest(t, 0, "state", nil)))
	})

	notifications.AssertExpectations(t)
	toasts.AssertExpectations(t)
}
