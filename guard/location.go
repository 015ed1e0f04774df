package guard

import "context"

type locationKey struct{}

// WithLocation records the navigable location (path and query) the caller is
// acting on behalf of.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationKey{}, location)
}

// LocationFrom returns the location stored by WithLocation, or "".
func LocationFrom(ctx context.Context) string {
	location, _ := ctx.Value(locationKey{}).(string)
	return location
}
