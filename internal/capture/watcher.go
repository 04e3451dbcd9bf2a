// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package capture watches the system clipboard and records new text
// entries into the local history store. The OS clipboard has no change
// notification that works everywhere, so the watcher polls.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"

	"github.com/avelichko/clip-keeper/internal/fingerprint"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// searchSnippetLen bounds the indexed search excerpt per item.
const searchSnippetLen = 256

// Watcher polls the clipboard and inserts unseen text values.
type Watcher struct {
	store    store.LocalStore
	ids      *utils.UUIDGenerator
	clock    utils.Clock
	interval time.Duration
	logger   *logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastSeen string
}

// NewWatcher builds a Watcher. A non-positive interval defaults to one
// second.
func NewWatcher(localStore store.LocalStore, clock utils.Clock, interval time.Duration, log *logger.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Watcher{
		store:    localStore,
		ids:      utils.NewUUIDGenerator(),
		clock:    clock,
		interval: interval,
		logger:   log,
	}
}

// Start launches the polling loop. Calling Start on a running watcher is a
// no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop terminates the loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	value, err := clipboard.ReadAll()
	if err != nil {
		// No clipboard available (headless session); not worth logging
		// every second.
		return
	}
	if value == "" || value == w.lastValue() {
		return
	}
	w.setLastValue(value)

	item := w.newItem(value)
	if err = w.store.Insert(ctx, item); err != nil {
		w.logger.Warn().Err(err).Str("id", item.ID).Msg("failed to record captured clipboard entry")
		return
	}
	w.logger.Debug().Str("id", item.ID).Int("bytes", len(value)).Msg("captured clipboard entry")
}

func (w *Watcher) newItem(value string) models.ClipboardItem {
	now := utils.NowMillis(w.clock)
	item := models.ClipboardItem{
		ID:           w.ids.Generate(),
		Type:         models.TypeText,
		Value:        value,
		Search:       searchSnippet(value),
		CreateTime:   now,
		LastModified: now,
		SyncStatus:   models.SyncStatusPending,
	}
	item.Checksum = fingerprint.ItemChecksum(item)
	return item
}

func (w *Watcher) lastValue() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Watcher) setLastValue(v string) {
	w.mu.Lock()
	w.lastSeen = v
	w.mu.Unlock()
}

// searchSnippet normalizes whitespace and truncates the value for search
// indexing. Truncation backs up to a rune boundary so the snippet stays
// valid UTF-8.
func searchSnippet(value string) string {
	s := strings.Join(strings.Fields(value), " ")
	if len(s) > searchSnippetLen {
		cut := searchSnippetLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
