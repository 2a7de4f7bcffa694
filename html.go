/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed assets/host.html
var hostHTML []byte

//go:embed assets/play.html
var playHTML []byte

func serveStaticPage(cfg *Config, data []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

func serveHostPage(cfg *Config) httprouter.Handle {
	return serveStaticPage(cfg, hostHTML)
}

func servePlayPage(cfg *Config) httprouter.Handle {
	return serveStaticPage(cfg, playHTML)
}
