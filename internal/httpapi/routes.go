package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jdcb4/word-guessy-online/internal/hub"
	"github.com/jdcb4/word-guessy-online/internal/identity"
	"github.com/jdcb4/word-guessy-online/internal/ws"
)

func SetupRoutes(h *hub.Hub, resolver *identity.Resolver, originPatterns []string, publicURL string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/version", VersionInfo)
	r.Get("/ws", ws.Handler(h, resolver, originPatterns, log))
	r.Get("/games/{code}/qr", GameQR(h, publicURL))
	return r
}
