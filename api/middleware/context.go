package middleware

import "context"

type contextKey string

const (
	ctxCashierID  contextKey = "cashier_id"
	ctxLogin      contextKey = "cashier_login"
	ctxRole       contextKey = "actor_role"
	ctxLocationID contextKey = "location_id"
)

func CashierIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCashierID).(string); ok {
		return v
	}
	return ""
}

func LoginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxLogin).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func LocationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxLocationID).(string); ok {
		return v
	}
	return ""
}

// WithCashier injects the cashier identity into the context, mainly for
// handler tests.
func WithCashier(ctx context.Context, cashierID, login string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxCashierID, cashierID)
	return context.WithValue(ctx, ctxLogin, login)
}

// WithLocationID injects the till's location into the context.
func WithLocationID(ctx context.Context, locationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxLocationID, locationID)
}
