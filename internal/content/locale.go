package content

import "context"

type localeKey struct{}

// NewLocaleContext returns a copy of parent carrying the request locale.
// An empty locale leaves parent untouched.
func NewLocaleContext(parent context.Context, locale string) context.Context {
	if locale == "" {
		return parent
	}
	return context.WithValue(parent, localeKey{}, locale)
}

// LocaleFromContext extracts the request locale stored by NewLocaleContext.
func LocaleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(localeKey{}).(string)
	return v, ok && v != ""
}
