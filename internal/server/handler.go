// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package server implements the development object store: a minimal
// WebDAV-like endpoint (PUT/GET/DELETE by path, no transactions, no
// conditional writes) backed by a plain directory tree. It exists so the
// sync engine can be exercised end-to-end without a third-party storage
// account.
package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/avelichko/clip-keeper/internal/logger"
)

// Handler serves the object routes.
type Handler struct {
	fs      *objectFS
	signKey string
	logger  *logger.Logger
}

// NewHandler builds a Handler storing objects under dataDir. An empty
// signKey disables authentication, which is acceptable only for local
// development.
func NewHandler(dataDir, signKey string, log *logger.Logger) *Handler {
	return &Handler{fs: newObjectFS(dataDir), signKey: signKey, logger: log}
}

// Init wires the routes.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.logging)

	router.Route("/objects", func(r chi.Router) {
		if h.signKey != "" {
			r.Use(h.auth)
		}
		r.Put("/*", h.put)
		r.Get("/*", h.get)
		r.Delete("/*", h.del)
	})

	return router
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	objectPath := chi.URLParam(r, "*")

	if r.Header.Get("X-Directory") == "true" || strings.HasSuffix(r.URL.Path, "/") {
		if err := h.fs.mkdir(objectPath); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	if err = h.fs.put(objectPath, data); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	data, err := h.fs.get(chi.URLParam(r, "*"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (h *Handler) del(w http.ResponseWriter, r *http.Request) {
	if err := h.fs.delete(chi.URLParam(r, "*")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	switch {
	case errors.Is(err, errBadObjectPath):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, errObjectNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errObjectExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Err(err).Str("path", r.URL.Path).Msg("object operation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// auth enforces bearer-token authentication on the object routes.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		deviceID, err := parseToken(h.signKey, parts[1])
		if err != nil {
			log.Warn().Err(err).Msg("rejected token")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		log.Debug().Str("device", deviceID).Str("path", r.URL.Path).Msg("authorized")
		next.ServeHTTP(w, r)
	})
}

// logging attaches the handler logger to the request context and records
// one line per request.
func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := h.logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Msg("request served")
	})
}
