package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/jdcb4/word-guessy-online/internal/hub"
	"github.com/jdcb4/word-guessy-online/internal/session"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func VersionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// GameQR renders a join link for an existing game as a PNG, for showing on
// the host's screen.
func GameQR(h *hub.Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
		if sess := <-reply; sess == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(fmt.Sprintf("%s/join?code=%s", publicURL, code), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
