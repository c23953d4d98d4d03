package graphql

import (
	"errors"

	"github.com/liamcoop/watches/gateway"
	"github.com/liamcoop/watches/service"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

var errUnauthenticated = errors.New("a user id is required")

// Error codes reported in extensions.code.
const (
	codeNotFound        = "NOT_FOUND"
	codeStoreError      = "STORE_ERROR"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeInvalidRequest  = "BAD_REQUEST"
	codeInternal        = "INTERNAL_ERROR"
)

// toGQLError converts a resolver error into a GraphQL error at path.
func toGQLError(err error, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Path == nil {
			gqlErr.Path = path
		}
		return gqlErr
	}

	code := codeInternal
	var storeErr *gateway.StoreError
	switch {
	case errors.Is(err, service.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, errUnauthenticated):
		code = codeUnauthenticated
	case errors.As(err, &storeErr):
		code = codeStoreError
	}

	return &gqlerror.Error{
		Message: err.Error(),
		Path:    path,
		Extensions: map[string]any{
			"code": code,
		},
	}
}

func requestError(message string) *gqlerror.Error {
	return &gqlerror.Error{
		Message: message,
		Extensions: map[string]any{
			"code": codeInvalidRequest,
		},
	}
}
