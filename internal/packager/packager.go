// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package packager moves binary attachments between devices independently
// of item metadata, keeping the remote index small. Attachments are
// batched into zip packages up to a target size, uploaded with read-back
// verification and a bounded retry budget, downloaded through a
// disk-backed LRU cache, and deleted best-effort with bounded concurrency.
package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/retry"
	"github.com/avelichko/clip-keeper/internal/secretbox"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// ErrFileTooLarge is returned for attachments above the hard per-file
// ceiling; such files are rejected outright and never uploaded.
var ErrFileTooLarge = errors.New("file exceeds size ceiling")

// Limits are the packaging policy knobs.
type Limits struct {
	// MaxFileBytes is the hard per-file ceiling (default 10MB).
	MaxFileBytes int64
	// PackageTargetBytes is the batching target per package (default 5MB).
	PackageTargetBytes int64
	// UploadAttempts is the fixed retry budget per package (default 3).
	UploadAttempts int
	// DeleteConcurrency caps in-flight remote deletions (default 3).
	DeleteConcurrency int
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = 10 << 20
	}
	if l.PackageTargetBytes <= 0 {
		l.PackageTargetBytes = 5 << 20
	}
	if l.UploadAttempts <= 0 {
		l.UploadAttempts = 3
	}
	if l.DeleteConcurrency <= 0 {
		l.DeleteConcurrency = 3
	}
	return l
}

// Packager implements attachment packaging over an object store.
// Box is optional; when set, archives are sealed before PUT and opened
// after GET.
type Packager struct {
	objects transport.ObjectStore
	cache   *Cache
	box     *secretbox.Box
	limits  Limits
	ids     *utils.UUIDGenerator
	clock   utils.Clock
	policy  retry.Policy
	logger  *logger.Logger
}

// New builds a Packager. cache may be nil to disable local caching.
func New(
	objects transport.ObjectStore,
	cache *Cache,
	box *secretbox.Box,
	limits Limits,
	clock utils.Clock,
	policy retry.Policy,
	log *logger.Logger,
) *Packager {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Packager{
		objects: objects,
		cache:   cache,
		box:     box,
		limits:  limits.withDefaults(),
		ids:     utils.NewUUIDGenerator(),
		clock:   clock,
		policy:  policy,
		logger:  log,
	}
}

// Plan groups attachments into packages up to the target size. Files above
// the hard ceiling are returned in rejected and never packaged; a single
// file between target and ceiling gets a package of its own.
func (p *Packager) Plan(attachments []Attachment) (batches [][]Attachment, rejected []Attachment) {
	var current []Attachment
	var currentSize int64

	for _, a := range attachments {
		size := int64(len(a.Data))
		if size > p.limits.MaxFileBytes {
			rejected = append(rejected, a)
			continue
		}

		if len(current) > 0 && currentSize+size > p.limits.PackageTargetBytes {
			batches = append(batches, current)
			current = nil
			currentSize = 0
		}
		current = append(current, a)
		currentSize += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches, rejected
}

// Upload packages and uploads one batch. Every attempt serializes under a
// fresh remote name so a retry can never collide with a partial previous
// write, then verifies the upload by downloading the object back and
// parsing it. An "already exists" response is accepted only after the
// existing remote object proves valid.
func (p *Packager) Upload(ctx context.Context, batch []Attachment) (models.FilePackage, error) {
	log := logger.FromContext(ctx)

	pkg := models.FilePackage{
		PackageID: p.ids.Generate(),
		CreatedAt: utils.NowMillis(p.clock),
	}

	var uploaded models.FilePackage
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		attempt := pkg
		attempt.RemoteName = p.ids.Generate()

		raw, built, err := writePackage(attempt, batch)
		if err != nil {
			return err
		}

		payload := raw
		if p.box != nil {
			if payload, err = p.box.Seal(raw); err != nil {
				return err
			}
		}

		path := transport.PackageObjectPath(built.RemoteName)
		upErr := p.objects.UploadObject(ctx, path, payload)
		if upErr != nil && !errors.Is(upErr, transport.ErrAlreadyExists) {
			if errors.Is(upErr, transport.ErrUnauthorized) {
				return upErr
			}
			log.Warn().Err(upErr).Str("package", built.RemoteName).Msg("package upload attempt failed")
			return retry.Retryable(upErr)
		}

		// Verify by read-back: the remote object must be non-empty and
		// parseable. This also resolves the ambiguous "already exists"
		// response without a false-negative retry.
		if _, _, verifyErr := p.fetch(ctx, path); verifyErr != nil {
			log.Warn().Err(verifyErr).Str("package", built.RemoteName).Msg("package verification failed")
			return retry.Retryable(fmt.Errorf("verify package %s: %w", built.RemoteName, verifyErr))
		}

		uploaded = built
		return nil
	})
	if err != nil {
		return models.FilePackage{}, fmt.Errorf("upload package: %w", err)
	}

	if p.cache != nil {
		if raw, _, err := p.fetch(ctx, transport.PackageObjectPath(uploaded.RemoteName)); err == nil {
			_ = p.cache.Put(uploaded.RemoteName, raw)
		}
	}

	return uploaded, nil
}

// Download returns the member payloads of a remote package keyed by item
// id, serving from the local cache when possible.
func (p *Packager) Download(ctx context.Context, remoteName string) (models.FilePackage, map[string][]byte, error) {
	if p.cache != nil {
		if raw, ok := p.cache.Get(remoteName); ok {
			if pkg, payloads, err := readPackage(raw); err == nil {
				return pkg, payloads, nil
			}
			// Corrupt cache entry; fall through to the remote copy.
			_ = p.cache.Remove(remoteName)
		}
	}

	raw, _, err := p.fetch(ctx, transport.PackageObjectPath(remoteName))
	if err != nil {
		return models.FilePackage{}, nil, err
	}

	if p.cache != nil {
		_ = p.cache.Put(remoteName, raw)
	}

	return readPackage(raw)
}

// Delete removes remote packages best-effort with bounded concurrency.
// Failures are logged and returned but are expected never to block the
// rest of a sync run.
func (p *Packager) Delete(ctx context.Context, remoteNames []string) []error {
	log := logger.FromContext(ctx)

	sem := semaphore.NewWeighted(int64(p.limits.DeleteConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	errsCh := make(chan error, len(remoteNames))
	for _, name := range remoteNames {
		name := name
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				errsCh <- err
				return nil
			}
			defer sem.Release(1)

			if err := p.objects.DeleteObject(gctx, transport.PackageObjectPath(name)); err != nil {
				log.Warn().Err(err).Str("package", name).Msg("remote package deletion failed")
				errsCh <- fmt.Errorf("delete package %s: %w", name, err)
			}
			if p.cache != nil {
				_ = p.cache.Remove(name)
			}
			return nil
		})
	}

	_ = g.Wait()
	close(errsCh)

	var errs []error
	for err := range errsCh {
		errs = append(errs, err)
	}
	return errs
}

// fetch downloads and unseals a package object, returning the raw archive
// bytes and parsed payloads. Used both for real downloads and for upload
// verification.
func (p *Packager) fetch(ctx context.Context, path string) ([]byte, map[string][]byte, error) {
	data, err := p.objects.DownloadObject(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("remote package %s is empty", path)
	}

	if p.box != nil {
		if data, err = p.box.Open(data); err != nil {
			return nil, nil, err
		}
	}

	_, payloads, err := readPackage(data)
	if err != nil {
		return nil, nil, err
	}
	return data, payloads, nil
}

// LoadAttachment reads the attachment bytes an item points at. The item's
// value holds the local file path for file-backed types.
func (p *Packager) LoadAttachment(item models.ClipboardItem) (Attachment, error) {
	data, err := os.ReadFile(item.Value)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment for item %s: %w", item.ID, err)
	}
	if int64(len(data)) > p.limits.MaxFileBytes {
		return Attachment{}, fmt.Errorf("%w: item %s (%d bytes)", ErrFileTooLarge, item.ID, len(data))
	}

	return Attachment{
		ItemID: item.ID,
		Name:   filepath.Base(item.Value),
		Data:   data,
	}, nil
}
