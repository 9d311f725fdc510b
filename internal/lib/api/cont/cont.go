// Package cont carries request-scoped values through context.
package cont

import (
	"context"

	"BizLink/entity"
)

type ctxKey int

const userKey ctxKey = iota

// PutUser stores the authenticated user on the request context.
func PutUser(ctx context.Context, user *entity.UserAuth) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user, or nil when the request was not
// authenticated.
func GetUser(ctx context.Context) *entity.UserAuth {
	user, ok := ctx.Value(userKey).(*entity.UserAuth)
	if !ok {
		return nil
	}
	return user
}
