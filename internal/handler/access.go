package handler

import (
	"context"
	"errors"

	"github.com/goevery/courier/internal/auth"
	"github.com/goevery/courier/internal/ierr"
)

func requireRead(ctx context.Context) error {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	if !authentication.CanRead() {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("read scope required"))
	}

	return nil
}

func requireWrite(ctx context.Context) error {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	if !authentication.CanWrite() {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("write scope required"))
	}

	return nil
}
