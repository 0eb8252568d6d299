package contacts

import "context"

// AccessStatus is the identity source's access-grant state.
type AccessStatus int

const (
	AccessUndetermined AccessStatus = iota
	AccessGranted
	AccessDenied
)

// Identity is one record from the identity source: a name plus zero or more
// phone numbers and email addresses.
type Identity struct {
	Nickname   string   `json:"nickname"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Phones     []string `json:"phones"`
	Emails     []string `json:"emails"`
}

// DisplayName returns the identity's resolved name, preferring the nickname
// over the given+family composite. Empty when the identity has no usable name.
func (i Identity) DisplayName() string {
	if i.Nickname != "" {
		return i.Nickname
	}
	name := i.GivenName
	if i.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += i.FamilyName
	}
	return name
}

// Source is the narrow interface over the external identity service. The
// resolver depends only on this enumeration, not on any particular store.
type Source interface {
	AccessStatus() AccessStatus
	RequestAccess(ctx context.Context) (bool, error)
	Identities(ctx context.Context) ([]Identity, error)
}
