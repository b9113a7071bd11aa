package audit

import "context"

type ctxKey struct{}

// RequestMeta is the client metadata attached to audit events
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKey{}, meta)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	meta, _ := ctx.Value(ctxKey{}).(RequestMeta)
	return meta
}
