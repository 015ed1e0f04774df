package identity

import "context"

// StaticLookup answers from fixed maps of user id to account id. It backs
// local development when no database is configured.
type StaticLookup struct {
	Memberships map[string]string
	Owned       map[string]string
}

var _ Lookup = StaticLookup{}

func (s StaticLookup) LookupMembership(_ context.Context, userID string) (*string, error) {
	return lookupIn(s.Memberships, userID), nil
}

func (s StaticLookup) LookupOwned(_ context.Context, userID string) (*string, error) {
	return lookupIn(s.Owned, userID), nil
}

func lookupIn(m map[string]string, userID string) *string {
	if v, ok := m[userID]; ok {
		return &v
	}
	return nil
}
