package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSymKey = "587d5484ce2a2a6ee3ba1962fdd7e8588e06200c46823bd18fbd67def96ad303"

func TestParsePairingURI(t *testing.T) {
	raw := "wc:7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9@2?relay-protocol=irn&symKey=" +
		testSymKey + "&expiryTimestamp=1705000000"

	uri, err := ParsePairingURI(raw)
	require.NoError(t, err)
	require.Equal(t, "7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9", uri.Topic)
	require.Equal(t, "irn", uri.RelayProtocol)
	require.Equal(t, int64(1705000000), uri.ExpiryTime)
	require.Len(t, uri.SymKey, KeyLength)

	again, err := ParsePairingURI(uri.String())
	require.NoError(t, err)
	require.Equal(t, uri, again)
}

func TestParsePairingURIErrors(t *testing.T) {
	cases := []struct {
		raw string
		err error
	}{
		{raw: "https://example.com", err: ErrInvalidURI},
		{raw: "wc:topic@1?symKey=" + testSymKey, err: ErrUnsupportedVersion},
		{raw: "wc:@2?symKey=" + testSymKey, err: ErrInvalidURI},
		{raw: "wc:topic@2?symKey=abcd", err: ErrInvalidURI},
		{raw: "wc:topic@2?symKey=" + testSymKey + "&expiryTimestamp=x", err: ErrInvalidURI},
	}
	for _, tc := range cases {
		_, err := ParsePairingURI(tc.raw)
		require.ErrorIs(t, err, tc.err, tc.raw)
	}
}

func TestPairingURIDefaultsRelayProtocol(t *testing.T) {
	uri, err := ParsePairingURI("wc:abc@2?symKey=" + testSymKey)
	require.NoError(t, err)
	require.Equal(t, "irn", uri.RelayProtocol)
	require.True(t, strings.HasPrefix(uri.String(), "wc:abc@2?"))
}
