package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	domcart "github.com/Zhima-Mochi/minishop-commerce/internal/domain/cart"
)

const headerSessionID = "X-Session-ID"

type sessionKey struct{}

// withSession ensures every cart request has a session id, minting one when
// the client sent none. The id is always echoed back.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(headerSessionID))
		if sid == "" {
			sid = uuid.NewString()
		}
		w.Header().Set(headerSessionID, sid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sid)))
	})
}

func sessionFrom(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}

// cartOwner resolves the cart addressed by the request: the authenticated
// user if any, otherwise the session.
func cartOwner(r *http.Request) domcart.Owner {
	if id, ok := identityFrom(r.Context()); ok {
		return domcart.UserOwner(id.UserID)
	}
	return domcart.SessionOwner(sessionFrom(r.Context()))
}
