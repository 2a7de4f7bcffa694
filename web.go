/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const timeout time.Duration = 10 * time.Second

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte("quipbox v" + releaseVersion + "\n"))
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte("Ok\n"))
	}
}

// serveQR renders a join URL as a PNG for the host screen.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		target := r.URL.Query().Get("url")

		parsed, err := url.Parse(target)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			http.Error(w, "invalid url", http.StatusBadRequest)
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		securityHeaders(cfg, w)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// reaperLoop periodically deletes rooms past the age limit and drops their
// clients.
func reaperLoop(ctx context.Context, cfg *Config, rooms *RoomManager, game *Game, hub *Hub) {
	ticker := time.NewTicker(cfg.roomTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, room := range rooms.cleanupOlderThan(cfg.roomTimeout) {
				game.timers.cancel(room.Code)
				hub.closeRoom(room.Code)
			}
		}
	}
}

func ServePage(ctx context.Context, cfg *Config) error {
	log.Info().Str("version", releaseVersion).Msg("quipbox starting")

	keys := newKeyStore()
	remote := newAnthropicSource(keys)
	source := newFallbackSource(remote)

	rooms := newRoomManager()
	hub := newHub(rooms)
	game := newGame(rooms, source, hub)
	hub.game = game

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		http.Redirect(w, r, cfg.prefix+"/host", http.StatusTemporaryRedirect)
	})

	mux.GET(cfg.prefix+"/host", serveHostPage(cfg))
	mux.GET(cfg.prefix+"/play", servePlayPage(cfg))

	mux.GET(cfg.prefix+"/ws", serveWS(hub))

	mux.GET(cfg.prefix+"/api/network", serveNetwork(cfg))
	mux.GET(cfg.prefix+"/api/config/status", serveConfigStatus(cfg, keys))
	mux.POST(cfg.prefix+"/api/config/apikey", serveConfigAPIKey(cfg, keys))
	mux.POST(cfg.prefix+"/api/config/test", serveConfigTest(cfg, keys, remote))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go reaperLoop(ctx, cfg, rooms, game, hub)

	errs := make(chan error, 1)

	go func() {
		log.Info().Str("url", cfg.scheme()+"://"+srv.Addr+cfg.prefix+"/").Msg("listening")

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Info().Msg("quipbox stopped")

	return nil
}
