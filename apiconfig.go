/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

type configStatusPayload struct {
	HasAPIKey   bool `json:"hasApiKey"`
	AIAvailable bool `json:"aiAvailable"`
}

type apiKeyRequest struct {
	APIKey  string `json:"apiKey"`
	Persist bool   `json:"persist,omitempty"`
}

type apiKeyTestResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func serveConfigStatus(cfg *Config, keys *keyStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		has := keys.HasAPIKey()
		_ = json.NewEncoder(w).Encode(configStatusPayload{
			HasAPIKey:   has,
			AIAvailable: has,
		})
	}
}

func serveConfigAPIKey(cfg *Config, keys *keyStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		var req apiKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		key := strings.TrimSpace(req.APIKey)
		if !strings.HasPrefix(key, apiKeyPrefix) {
			http.Error(w, "api key must start with "+apiKeyPrefix, http.StatusBadRequest)
			return
		}

		if err := keys.SetAPIKey(key, req.Persist); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		_ = json.NewEncoder(w).Encode(configStatusPayload{HasAPIKey: true, AIAvailable: true})
	}
}

func serveConfigTest(cfg *Config, keys *keyStore, remote *anthropicSource) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		var req apiKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		key := strings.TrimSpace(req.APIKey)
		if key == "" {
			key = keys.APIKey()
		}

		result := apiKeyTestResult{Valid: true}
		if err := remote.validateAPIKey(r.Context(), key); err != nil {
			result = apiKeyTestResult{Valid: false, Error: err.Error()}
		}

		_ = json.NewEncoder(w).Encode(result)
	}
}
