package errors

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorResponseJSON(t *testing.T) {
	err := &ErrorResponse{Code: "DC-001", Details: "not initialized"}
	require.Equal(t, `{"code":"DC-001","details":"not initialized"}`, err.Error())
}

func TestErrorResponseIsMatchesCode(t *testing.T) {
	sentinel := &ErrorResponse{Code: "DC-001"}
	wrapped := pkgerrors.Wrap(&ErrorResponse{Code: "DC-001", Details: "x"}, "handle")
	require.True(t, errors.Is(wrapped, sentinel))
	require.False(t, errors.Is(wrapped, &ErrorResponse{Code: "DC-002"}))
}

func TestCreateErrorResponseFromError(t *testing.T) {
	require.Nil(t, CreateErrorResponseFromError(nil))

	resp := &ErrorResponse{Code: "DC-003"}
	require.Same(t, resp, CreateErrorResponseFromError(resp))

	generic := CreateErrorResponseFromError(errors.New("boom"))
	require.Equal(t, &ErrorResponse{Code: "0", Details: "boom"}, generic)
}

func TestAsProviderError(t *testing.T) {
	require.Nil(t, AsProviderError(nil))

	pErr := NewProviderError(ProviderCodeUserRejected, "User rejected the request")
	require.Same(t, pErr, AsProviderError(pErr))

	converted := AsProviderError(errors.New("db closed"))
	require.Equal(t, ProviderCodeInternalError, converted.Code)
	require.Equal(t, "db closed", converted.Message)
}

func TestAsProviderErrorUnwraps(t *testing.T) {
	pErr := NewProviderError(ProviderCodeUnauthorized, "Not connected to site")
	require.Same(t, pErr, AsProviderError(pkgerrors.Wrap(pErr, "connect")))
}
