// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package transport implements the byte-level object-store client the sync
// engine talks to: PUT/GET/DELETE by path against a WebDAV-like endpoint
// with no transactions, no server-side locking and no conditional writes.
// Ambiguous responses ("already exists") are surfaced as typed errors and
// resolved by the caller with a read-back.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized is fatal for a sync run: the token is missing,
	// expired or rejected.
	ErrUnauthorized = errors.New("object store unauthorized")
	// ErrNotFound marks a missing object; callers usually treat it as
	// "remote absent" rather than a failure.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists marks a refused non-overwrite PUT. The caller must
	// read the object back and verify it before accepting it as success.
	ErrAlreadyExists = errors.New("object already exists")
)

// ObjectStore is the transport contract consumed by the sync engine.
type ObjectStore interface {
	UploadObject(ctx context.Context, path string, data []byte) error
	DownloadObject(ctx context.Context, path string) ([]byte, error)
	DeleteObject(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string) error
}

// Config holds client settings for one object-store endpoint.
type Config struct {
	BaseURL string
	// BasePath is prefixed to every object path.
	BasePath string
	// Token is an optional bearer token.
	Token   string
	Timeout time.Duration
}

type objectClient struct {
	client   *resty.Client
	basePath string

	mu    sync.RWMutex
	token string
}

// NewObjectClient builds an ObjectStore over HTTP using resty.
func NewObjectClient(cfg Config) ObjectStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &objectClient{
		client:   cli,
		basePath: "/" + strings.Trim(cfg.BasePath, "/"),
		token:    strings.TrimSpace(cfg.Token),
	}
}

func (c *objectClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

func (c *objectClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *objectClient) UploadObject(ctx context.Context, path string, data []byte) error {
	resp, err := c.authedRequest(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Put(c.objectPath(path))
	if err != nil {
		return fmt.Errorf("upload object %s: %w", path, err)
	}

	return mapHTTPError(resp)
}

func (c *objectClient) DownloadObject(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.authedRequest(ctx).Get(c.objectPath(path))
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", path, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

func (c *objectClient) DeleteObject(ctx context.Context, path string) error {
	resp, err := c.authedRequest(ctx).Delete(c.objectPath(path))
	if err != nil {
		return fmt.Errorf("delete object %s: %w", path, err)
	}
	// Deleting an absent object is success: the goal state already holds.
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}

	return mapHTTPError(resp)
}

func (c *objectClient) CreateDirectory(ctx context.Context, path string) error {
	resp, err := c.authedRequest(ctx).
		SetHeader("X-Directory", "true").
		Put(c.objectPath(strings.TrimRight(path, "/") + "/"))
	if err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	if errors.Is(mapHTTPError(resp), ErrAlreadyExists) {
		return nil
	}

	return mapHTTPError(resp)
}

func (c *objectClient) objectPath(path string) string {
	return c.basePath + "/" + strings.TrimLeft(path, "/")
}

func (c *objectClient) authedRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	bodyLower := strings.ToLower(body)

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode() == http.StatusConflict || strings.Contains(bodyLower, "already exists"):
		return ErrAlreadyExists
	}

	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}

// TokenExpired reports whether a bearer token is a JWT whose expiry has
// already passed. The signature is not verified; this is a local
// classification aid so an expired token is reported as a fatal auth error
// before a round-trip, not a cryptographic check.
func TokenExpired(tokenString string, now time.Time) bool {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
