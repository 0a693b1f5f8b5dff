package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/requestdata"
)

// ActorMiddleware resolves the acting user from the X-Actor-ID header and
// attaches it to the request context. Identity verification is handled by the
// gateway in front of this service; here the header is trusted but must be a
// well-formed UUID.
type ActorMiddleware struct {
	log *logger.Logger
}

func NewActorMiddleware(log *logger.Logger) *ActorMiddleware {
	return &ActorMiddleware{log: log.With("middleware", "ActorMiddleware")}
}

func (am *ActorMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Actor-ID"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Actor-ID header"})
			return
		}
		actorID, err := uuid.Parse(raw)
		if err != nil || actorID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed X-Actor-ID header"})
			return
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{ActorID: actorID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
