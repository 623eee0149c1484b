package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideConnect(t *testing.T) {
	testCases := []struct {
		name   string
		in     ConnectInput
		kind   OutcomeKind
		state  ConnectState
		reason error
	}{
		{"silent, connected, selected", ConnectInput{Connected: true, WalletSelected: true}, OutcomeResolve, StateConnected, nil},
		{"silent, not connected", ConnectInput{WalletSelected: true}, OutcomeReject, StateSilentReject, ErrNotConnectedToSite},
		{"silent, nothing", ConnectInput{}, OutcomeReject, StateSilentReject, ErrNotConnectedToSite},
		{"silent, connected, no wallet", ConnectInput{Connected: true}, OutcomeReject, StateSilentReject, ErrNoWalletSelected},
		{"prompt, not connected", ConnectInput{ShouldPrompt: true, WalletSelected: true}, OutcomePrompt, StatePrompting, nil},
		{"prompt, no wallet", ConnectInput{ShouldPrompt: true, Connected: true}, OutcomePrompt, StatePrompting, nil},
		{"prompt, connected, selected", ConnectInput{ShouldPrompt: true, Connected: true, WalletSelected: true}, OutcomeConnectDirect, StateConnected, nil},
		{"pairing always prompts", ConnectInput{ShouldPrompt: true, Connected: true, WalletSelected: true, ExternalPairing: true}, OutcomePrompt, StatePrompting, nil},
		{"silent pairing prompts", ConnectInput{ExternalPairing: true}, OutcomePrompt, StatePrompting, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := DecideConnect(tc.in)
			require.Equal(t, tc.kind, out.Kind)
			require.Equal(t, tc.state, out.State)
			require.Equal(t, tc.reason, out.Reason)
		})
	}
}
