package httpx

import "context"

type ctxKey string

// CtxKeySubject holds the authenticated subject id, set by authentication
// middleware and read by per-user rate limiting.
const CtxKeySubject ctxKey = "subject"

// WithSubject stores the authenticated subject id in ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, CtxKeySubject, subject)
}

// SubjectFromContext returns the subject stored by WithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(CtxKeySubject).(string)
	return s, ok && s != ""
}
