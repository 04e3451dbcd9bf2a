package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/retry"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
)

// UploadFile uploads one attachment as a standalone object under files/.
// Used for lazy-download items, whose bytes must be fetchable individually
// without pulling a whole package. Same retry and read-back discipline as
// package uploads; the timestamp in the object name makes every attempt a
// fresh name.
func (p *Packager) UploadFile(ctx context.Context, att Attachment) (string, error) {
	log := logger.FromContext(ctx)

	if int64(len(att.Data)) > p.limits.MaxFileBytes {
		return "", fmt.Errorf("%w: item %s (%d bytes)", ErrFileTooLarge, att.ItemID, len(att.Data))
	}

	payload := att.Data
	if p.box != nil {
		sealed, err := p.box.Seal(att.Data)
		if err != nil {
			return "", fmt.Errorf("seal attachment %s: %w", att.ItemID, err)
		}
		payload = sealed
	}

	want := sha256.Sum256(att.Data)
	wantSum := hex.EncodeToString(want[:])

	var remotePath string
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		path := transport.FileObjectPath(att.ItemID, utils.NowMillis(p.clock), att.Name)

		upErr := p.objects.UploadObject(ctx, path, payload)
		if upErr != nil && !errors.Is(upErr, transport.ErrAlreadyExists) {
			if errors.Is(upErr, transport.ErrUnauthorized) {
				return upErr
			}
			log.Warn().Err(upErr).Str("path", path).Msg("file upload attempt failed")
			return retry.Retryable(upErr)
		}

		got, verifyErr := p.downloadRaw(ctx, path)
		if verifyErr != nil {
			log.Warn().Err(verifyErr).Str("path", path).Msg("file verification failed")
			return retry.Retryable(fmt.Errorf("verify file %s: %w", path, verifyErr))
		}
		gotSum := sha256.Sum256(got)
		if hex.EncodeToString(gotSum[:]) != wantSum {
			return retry.Retryable(fmt.Errorf("verify file %s: checksum mismatch", path))
		}

		remotePath = path
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}

	if p.cache != nil {
		_ = p.cache.Put(cacheKey(remotePath), att.Data)
	}
	return remotePath, nil
}

// DownloadFile fetches one standalone attachment object, serving from the
// cache when possible.
func (p *Packager) DownloadFile(ctx context.Context, remotePath string) ([]byte, error) {
	if p.cache != nil {
		if data, ok := p.cache.Get(cacheKey(remotePath)); ok {
			return data, nil
		}
	}

	data, err := p.downloadRaw(ctx, remotePath)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		_ = p.cache.Put(cacheKey(remotePath), data)
	}
	return data, nil
}

// DeleteFile removes one standalone attachment object and its cache entry.
func (p *Packager) DeleteFile(ctx context.Context, remotePath string) error {
	if err := p.objects.DeleteObject(ctx, remotePath); err != nil {
		return fmt.Errorf("delete file %s: %w", remotePath, err)
	}
	if p.cache != nil {
		_ = p.cache.Remove(cacheKey(remotePath))
	}
	return nil
}

// downloadRaw fetches and unseals one object without package parsing.
func (p *Packager) downloadRaw(ctx context.Context, path string) ([]byte, error) {
	data, err := p.objects.DownloadObject(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("remote file %s is empty", path)
	}
	if p.box != nil {
		if data, err = p.box.Open(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// cacheKey flattens an object path into a filesystem-safe cache key.
func cacheKey(remotePath string) string {
	return strings.ReplaceAll(remotePath, "/", "_")
}
