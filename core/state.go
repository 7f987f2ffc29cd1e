package core

import "time"

// SessionStatus is a state of the client authentication state machine.
type SessionStatus string

const (
	StatusDisconnected    SessionStatus = "disconnected"
	StatusWalletConnected SessionStatus = "wallet_connected"
	StatusAuthenticating  SessionStatus = "authenticating"
	StatusAuthenticated   SessionStatus = "authenticated"
)

// TransitionReason records why the state machine moved.
type TransitionReason string

const (
	ReasonWalletConnected TransitionReason = "wallet_connected"
	ReasonDisconnected    TransitionReason = "wallet_disconnected"
	ReasonAddressChanged  TransitionReason = "address_changed"
	ReasonSignInStarted   TransitionReason = "sign_in_started"
	ReasonSignInSucceeded TransitionReason = "sign_in_succeeded"
	ReasonSignInFailed    TransitionReason = "sign_in_failed"
	ReasonRestored        TransitionReason = "restored"
	ReasonExpired         TransitionReason = "expired"
	ReasonSignedOut       TransitionReason = "signed_out"
)

// Transition is emitted every time the state machine changes status.
type Transition struct {
	From   SessionStatus
	To     SessionStatus
	Reason TransitionReason
	At     time.Time
}

// Snapshot is an immutable view of the session state at one instant.
type Snapshot struct {
	Status        SessionStatus
	Loading       bool
	WalletAddress string
	Identity      *Identity
	Role          Role
	Permissions   PermissionSet
	ExpiresAt     time.Time
	LastReason    TransitionReason
}

// WalletConnected reports whether a wallet is attached.
func (s Snapshot) WalletConnected() bool {
	return s.Status != StatusDisconnected && s.WalletAddress != ""
}

// Authenticated reports whether a valid session is held.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// WalletEventKind enumerates external wallet feed events.
type WalletEventKind string

const (
	WalletEventConnected      WalletEventKind = "connected"
	WalletEventAddressChanged WalletEventKind = "address_changed"
	WalletEventDisconnected   WalletEventKind = "disconnected"
)

// WalletEvent is one event observed from the wallet connector.
type WalletEvent struct {
	Kind    WalletEventKind
	Address string
}
