// Package identity defines the boundary to the authentication provider. The
// engine only ever needs the current user's stable identifier and the
// display fields snapshotted onto outgoing messages.
package identity

// User is the authenticated identity.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Provider supplies the current authenticated user. Current returns
// ok=false when nobody is logged in; login and credential management live
// entirely outside this module.
type Provider interface {
	Current() (User, bool)
}

// Static is a fixed-identity provider for tests and the simulator.
type Static struct {
	User User
}

func (s Static) Current() (User, bool) {
	return s.User, s.User.ID != ""
}

// None is a provider with nobody logged in.
type None struct{}

func (None) Current() (User, bool) { return User{}, false }
