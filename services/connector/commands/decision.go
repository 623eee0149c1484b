package commands

// ConnectState is where a connect request ends up.
type ConnectState string

const (
	StateNotConnected ConnectState = "notConnected"
	StatePrompting    ConnectState = "prompting"
	StateConnected    ConnectState = "connected"
	StateSilentReject ConnectState = "silentReject"
)

type OutcomeKind int

const (
	// OutcomeResolve answers from the existing connection.
	OutcomeResolve OutcomeKind = iota
	// OutcomeReject answers with Outcome.Reason without asking the user.
	OutcomeReject
	// OutcomePrompt hands the request to the approval screen.
	OutcomePrompt
	// OutcomeConnectDirect persists the connection with the selected wallet.
	OutcomeConnectDirect
)

// ConnectInput is everything the connect decision depends on.
type ConnectInput struct {
	ShouldPrompt    bool
	Connected       bool
	WalletSelected  bool
	ExternalPairing bool
}

type Outcome struct {
	Kind   OutcomeKind
	State  ConnectState
	Reason error
}

// DecideConnect is the connect policy. It performs no I/O.
func DecideConnect(in ConnectInput) Outcome {
	if in.ExternalPairing {
		return Outcome{Kind: OutcomePrompt, State: StatePrompting}
	}

	if !in.ShouldPrompt {
		switch {
		case in.Connected && in.WalletSelected:
			return Outcome{Kind: OutcomeResolve, State: StateConnected}
		case !in.Connected:
			return Outcome{Kind: OutcomeReject, State: StateSilentReject, Reason: ErrNotConnectedToSite}
		default:
			return Outcome{Kind: OutcomeReject, State: StateSilentReject, Reason: ErrNoWalletSelected}
		}
	}

	if in.Connected && in.WalletSelected {
		return Outcome{Kind: OutcomeConnectDirect, State: StateConnected}
	}
	return Outcome{Kind: OutcomePrompt, State: StatePrompting}
}
