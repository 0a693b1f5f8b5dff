package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKeyType struct{}

var requestDataKey = requestDataKeyType{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the acting user through the request context. Every
// mutation is attributed to this actor in the audit ledger.
type RequestData struct {
	ActorID uuid.UUID
}

// ActorID is a convenience accessor; uuid.Nil when no actor is attached.
func ActorID(ctx context.Context) uuid.UUID {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.ActorID
	}
	return uuid.Nil
}
