package fakeserver

import "context"

type ctxKey int

const authClientIDKey ctxKey = 0

func withAuthClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, authClientIDKey, clientID)
}

func authClientID(ctx context.Context) string {
	id, _ := ctx.Value(authClientIDKey).(string)
	return id
}
