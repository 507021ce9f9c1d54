// Package support implements the support-conversation relay: principal
// resolution, conversation routing, the /reply command grammar, and message
// fan-out to realtime channels and the Telegram bridge.
package support

// PrincipalKind discriminates the two identities a support-chat request can
// carry.
type PrincipalKind string

const (
	KindUser  PrincipalKind = "user"
	KindGuest PrincipalKind = "guest"
)

// Principal is the resolved identity making a support-chat request: an
// authenticated user or a token-bearing guest. It is resolved once at the
// request boundary and passed down explicitly.
type Principal struct {
	Kind       PrincipalKind
	UserID     int64
	GuestToken string
}

// UserPrincipal returns the principal for an authenticated user.
func UserPrincipal(userID int64) Principal {
	return Principal{Kind: KindUser, UserID: userID}
}

// GuestPrincipal returns the principal for a guest. An empty token signals
// first contact and triggers token minting downstream.
func GuestPrincipal(token string) Principal {
	return Principal{Kind: KindGuest, GuestToken: token}
}
