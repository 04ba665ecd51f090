package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("row not found")
	err := Wrap(CodeNotFound, cause, "product lookup failed")

	require.Equal(t, CodeNotFound, err.Code())
	require.ErrorIs(t, err, cause)
	require.Equal(t, "NOT_FOUND: product lookup failed", err.Error())
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := New(CodeFiscalTimeout, "receipt deadline exceeded")
	outer := fmt.Errorf("complete sale: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	require.Equal(t, CodeFiscalTimeout, typed.Code())
	require.True(t, IsCode(outer, CodeFiscalTimeout))
	require.False(t, IsCode(outer, CodeFiscalFatal))
}

func TestMetadataMapping(t *testing.T) {
	cases := []struct {
		code   Code
		status int
		retry  bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeConflict, http.StatusConflict, false},
		{CodePricingInvariant, http.StatusConflict, false},
		{CodeFiscalTransient, http.StatusBadGateway, true},
		{CodeFiscalFatal, http.StatusBadGateway, false},
		{CodeFiscalTimeout, http.StatusGatewayTimeout, true},
		{CodeStoreUnavailable, http.StatusServiceUnavailable, true},
		{Code("UNKNOWN"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		require.Equal(t, tc.status, meta.HTTPStatus, "code %s", tc.code)
		require.Equal(t, tc.retry, meta.Retryable, "code %s", tc.code)
	}
}
