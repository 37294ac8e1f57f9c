package remote

import "errors"

// ErrNotAuthenticated is returned by remote operations attempted without a
// signed-in session. Local operations are unaffected by it.
var ErrNotAuthenticated = errors.New("not authenticated to remote store")

// Authenticator is the capability the sync engine requires from the
// authentication collaborator. Sign-in itself happens elsewhere.
type Authenticator interface {
	IsAuthenticated() bool
	CurrentUserID() string
	Token() string
}

// StaticAuth is a configuration-driven session: authenticated whenever a
// user id and token are present.
type StaticAuth struct {
	UserID    string
	AuthToken string
}

func (a *StaticAuth) IsAuthenticated() bool {
	return a.UserID != "" && a.AuthToken != ""
}

func (a *StaticAuth) CurrentUserID() string { return a.UserID }

func (a *StaticAuth) Token() string { return a.AuthToken }
