// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package syncer orchestrates one full synchronization cycle between the
// local history store and the remote object store. The remote store has no
// transactions, so the run follows a strict commit order: remote deletions
// first, then attachment uploads, then downloads and local apply, and the
// index rewrite last — the index never references data that is not already
// uploaded. A re-run after a partial failure converges: every step is
// id-keyed and idempotent.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/avelichko/clip-keeper/internal/conflict"
	"github.com/avelichko/clip-keeper/internal/deletion"
	"github.com/avelichko/clip-keeper/internal/diff"
	"github.com/avelichko/clip-keeper/internal/fingerprint"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/packager"
	"github.com/avelichko/clip-keeper/internal/remoteindex"
	"github.com/avelichko/clip-keeper/internal/secretbox"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// ErrSyncInProgress is returned when Run is called while another run is
// still active. Triggers are rejected, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Step labels for error attribution.
const (
	stepGather   = "gather"
	stepIndex    = "index_load"
	stepConflict = "conflict_resolution"
	stepDelete   = "remote_delete"
	stepUpload   = "upload"
	stepDownload = "download"
	stepApply    = "local_apply"
	stepCommit   = "index_commit"
)

// Options are the per-device orchestrator settings.
type Options struct {
	// DeviceID identifies this device in indexes and wire items.
	DeviceID string
	// Mode filters which items participate in sync runs.
	Mode models.SyncMode
	// AttachmentDir is where downloaded attachment bytes materialize.
	AttachmentDir string
}

// Orchestrator drives sync runs. One run at a time; concurrent triggers
// get ErrSyncInProgress.
type Orchestrator struct {
	store    store.LocalStore
	objects  transport.ObjectStore
	index    *remoteindex.Store
	resolver *conflict.Resolver
	packager *packager.Packager
	deletion *deletion.Manager
	box      *secretbox.Box
	clock    utils.Clock
	logger   *logger.Logger

	deviceID  string
	attachDir string

	mu      sync.Mutex
	running bool
	state   State
	mode    models.SyncMode
}

// New builds an Orchestrator. box may be nil for plaintext payloads.
func New(
	localStore store.LocalStore,
	objects transport.ObjectStore,
	index *remoteindex.Store,
	resolver *conflict.Resolver,
	pkgr *packager.Packager,
	deletions *deletion.Manager,
	box *secretbox.Box,
	clock utils.Clock,
	opts Options,
	log *logger.Logger,
) *Orchestrator {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Orchestrator{
		store:     localStore,
		objects:   objects,
		index:     index,
		resolver:  resolver,
		packager:  pkgr,
		deletion:  deletions,
		box:       box,
		clock:     clock,
		logger:    log,
		deviceID:  opts.DeviceID,
		attachDir: opts.AttachmentDir,
		state:     StateIdle,
		mode:      opts.Mode,
	}
}

// State reports the current run position.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetMode replaces the active sync mode and invalidates the cached remote
// index: fingerprints for items entering or leaving scope must be
// re-validated on the next run, not trusted.
func (o *Orchestrator) SetMode(mode models.SyncMode) {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
	o.index.Invalidate()
}

// Run executes one sync cycle and returns its report. Non-fatal failures
// are accumulated in the report and reconciled by the next cycle; only
// auth and config failures abort the run with an error.
func (o *Orchestrator) Run(ctx context.Context) (models.SyncReport, error) {
	mode, ok := o.begin()
	if !ok {
		return models.SyncReport{}, ErrSyncInProgress
	}

	ctx = o.logger.WithContext(ctx)
	log := logger.FromContext(ctx)

	started := o.clock.Now()
	report := models.SyncReport{Timestamp: utils.NowMillis(o.clock)}
	var runErrs []models.SyncError

	record := func(se models.SyncError) {
		log.Warn().Str("step", se.Step).Str("item", se.ItemID).Msg(se.Message)
		runErrs = append(runErrs, se)
	}
	fail := func(se models.SyncError) (models.SyncReport, error) {
		runErrs = append(runErrs, se)
		report.Errors = runErrs
		report.DurationMS = o.clock.Now().Sub(started).Milliseconds()
		o.finish(StateFailed)
		log.Error().Str("step", se.Step).Msg(se.Message)
		return report, se
	}

	// Gather local rows, tombstones included.
	o.setState(StateGathering)
	all, err := o.store.Query(ctx, store.Filter{IncludeDeleted: true})
	if err != nil {
		return fail(models.NewSyncError(models.ErrCategoryLocalStore, stepGather, err))
	}

	byID := make(map[string]models.ClipboardItem, len(all))
	tombstoned := make(map[string]struct{})
	var tombstoneIDs []string
	for _, item := range all {
		byID[item.ID] = item
		if item.Deleted {
			tombstoned[item.ID] = struct{}{}
			tombstoneIDs = append(tombstoneIDs, item.ID)
		}
	}
	sort.Strings(tombstoneIDs)

	idx, err := o.index.Load(ctx)
	if errors.Is(err, remoteindex.ErrIndexAbsent) {
		idx = remoteindex.NewEmptyIndex(o.deviceID, o.clock)
	} else if err != nil {
		return fail(models.NewSyncError(categorize(err), stepIndex, err))
	}

	remoteFPs := make(map[string]models.Fingerprint, len(idx.Items))
	for _, fp := range idx.Items {
		remoteFPs[fp.ID] = fp
	}

	// Local fingerprints: items in scope, plus out-of-scope items the
	// remote already knows about. Without the latter, narrowing the mode
	// would re-download excluded items and hide favorite flips from the
	// remote side.
	localFPs := make(map[string]models.Fingerprint)
	for _, item := range byID {
		if item.Deleted {
			continue
		}
		_, knownRemotely := remoteFPs[item.ID]
		if !mode.Includes(item.Type, item.Favorite) && !knownRemotely {
			continue
		}
		localFPs[item.ID] = fingerprint.Of(item)
	}

	// Remote tombstones win over any local state: purge matching rows
	// before diffing so a deleted item can never resurrect.
	var purgeIDs []string
	for _, id := range idx.DeletedItems {
		if item, present := byID[id]; present && !item.Deleted {
			purgeIDs = append(purgeIDs, id)
			delete(localFPs, id)
			delete(byID, id)
		}
	}
	sort.Strings(purgeIDs)
	if len(purgeIDs) > 0 {
		if err = o.store.HardDelete(ctx, purgeIDs); err != nil {
			record(models.NewSyncError(models.ErrCategoryLocalStore, stepDelete, err))
		} else {
			report.Deleted += len(purgeIDs)
		}
	}

	o.setState(StateDiffing)
	classes, err := diff.Detect(ctx, localFPs, remoteFPs, tombstoned)
	if err != nil {
		return fail(models.NewSyncError(models.ErrCategoryValidation, stepGather, err))
	}
	log.Debug().
		Int("added", len(classes.Added)).
		Int("modified", len(classes.Modified)).
		Int("favorite_changed", len(classes.FavoriteChanged)).
		Int("to_download", len(classes.ToDownload)).
		Msg("diff classified")

	blob, err := loadDataBlob(ctx, o.objects, o.box)
	if err != nil {
		return fail(models.NewSyncError(categorize(err), stepDownload, err))
	}

	// An id in both Modified and ToDownload diverged on both sides. Those
	// pairs go through the conflict resolver; the winner is written back
	// locally and uploaded like any other modification.
	o.setState(StateConflictResolving)
	modified := make(map[string]struct{}, len(classes.Modified))
	for _, fp := range classes.Modified {
		modified[fp.ID] = struct{}{}
	}

	var localSide, remoteSide []models.SyncItem
	downloads := classes.ToDownload[:0]
	for _, fp := range classes.ToDownload {
		if _, both := modified[fp.ID]; !both {
			downloads = append(downloads, fp)
			continue
		}

		remote, present := blob.Items[fp.ID]
		if !present {
			err := fmt.Errorf("item %s listed in index but missing from data blob", fp.ID)
			record(models.NewSyncError(models.ErrCategoryParsing, stepConflict, err).WithItem(fp.ID))
			continue
		}
		localSide = append(localSide, o.toWire(byID[fp.ID]))
		remoteSide = append(remoteSide, remote)
	}

	contexts := conflict.DetectRealConflicts(localSide, remoteSide)
	results, err := o.resolver.ResolveAll(ctx, contexts)
	if err != nil {
		return fail(models.NewSyncError(models.ErrCategoryValidation, stepConflict, err))
	}
	report.Conflicts = results

	for _, res := range results {
		row, present := byID[res.Resolved.ID]
		if !present {
			continue
		}
		row = applyResolution(row, res.Resolved)
		if err = o.store.Upsert(ctx, row); err != nil {
			record(models.NewSyncError(models.ErrCategoryLocalStore, stepConflict, err).WithItem(row.ID))
			continue
		}
		byID[row.ID] = row
	}

	o.setState(StateTransferring)

	// Remote deletions go first so a failed run can never leave deleted
	// data re-listed by a later step.
	remoteDeleteFailed := false
	for _, id := range tombstoneIDs {
		if wire, present := blob.Items[id]; present {
			delete(blob.Items, id)
			if wire.LazyDownload && strings.HasPrefix(wire.Value, transport.FilesDir+"/") {
				if err = o.packager.DeleteFile(ctx, wire.Value); err != nil {
					record(models.NewSyncError(categorize(err), stepDelete, err).WithItem(id))
					remoteDeleteFailed = true
				}
			}
		}
	}
	report.Deleted += len(tombstoneIDs)

	for _, name := range orphanedPackages(&blob) {
		for _, err := range o.packager.Delete(ctx, []string{name}) {
			record(models.NewSyncError(categorize(err), stepDelete, err))
			remoteDeleteFailed = true
		}
	}

	// Favorite flips race across devices with identical content; the
	// newer fingerprint wins. A remote flip with a newer timestamp is
	// adopted locally, never overwritten by the stale local flag.
	favoriteUploads := classes.FavoriteChanged[:0]
	for _, fp := range classes.FavoriteChanged {
		rf, known := remoteFPs[fp.ID]
		if !known || fp.Timestamp >= rf.Timestamp {
			favoriteUploads = append(favoriteUploads, fp)
			continue
		}

		status := models.SyncStatusSynced
		update := models.ItemUpdate{
			Favorite:     &rf.Favorite,
			LastModified: &rf.Timestamp,
			SyncStatus:   &status,
		}
		if err = o.store.Update(ctx, fp.ID, update); err != nil {
			record(models.NewSyncError(models.ErrCategoryLocalStore, stepApply, err).WithItem(fp.ID))
			continue
		}
		if row, present := byID[fp.ID]; present {
			row.Favorite = rf.Favorite
			row.LastModified = rf.Timestamp
			byID[fp.ID] = row
		}
		report.Downloaded++
	}

	// Uploads: stage fresh wire items for every changed local row; file
	// bytes travel through packages (or standalone objects when lazy)
	// before their metadata enters the blob.
	uploadIDs := make([]string, 0, len(classes.Added)+len(classes.Modified)+len(favoriteUploads))
	for _, s := range [][]models.Fingerprint{classes.Added, classes.Modified, favoriteUploads} {
		for _, fp := range s {
			uploadIDs = append(uploadIDs, fp.ID)
		}
	}
	sort.Strings(uploadIDs)

	staged := make(map[string]models.SyncItem, len(uploadIDs))
	var pending []packager.Attachment
	for _, id := range uploadIDs {
		item, present := byID[id]
		if !present || item.Deleted {
			continue
		}
		wire := o.toWire(item)

		if !item.HasAttachment() {
			staged[id] = wire
			continue
		}

		// Attachment bytes already remote and unchanged: reuse.
		if prev, known := blob.Items[id]; known && prev.Checksum == item.Checksum && item.Checksum != "" &&
			(prev.PackageID != "" || prev.LazyDownload) {
			wire.Checksum = prev.Checksum
			wire.PackageID = prev.PackageID
			wire.LazyDownload = prev.LazyDownload
			if prev.LazyDownload {
				wire.Value = prev.Value
			}
			staged[id] = wire
			continue
		}

		att, loadErr := o.packager.LoadAttachment(item)
		if loadErr != nil {
			record(models.NewSyncError(models.ErrCategoryFileOp, stepUpload, loadErr).WithItem(id))
			o.markStatus(ctx, id, models.SyncStatusError)
			continue
		}
		sum := sha256.Sum256(att.Data)
		wire.Checksum = hex.EncodeToString(sum[:])
		wire.FileSize = int64(len(att.Data))

		if item.LazyDownload {
			path, upErr := o.packager.UploadFile(ctx, att)
			if upErr != nil {
				if isFatal(upErr) {
					return fail(models.NewSyncError(models.ErrCategoryAuth, stepUpload, upErr))
				}
				record(models.NewSyncError(categorize(upErr), stepUpload, upErr).WithItem(id))
				o.markStatus(ctx, id, models.SyncStatusError)
				continue
			}
			// The wire value is the remote object path; receivers fetch
			// bytes on demand. The local row keeps its local path.
			wire.Value = path
			staged[id] = wire
			continue
		}

		staged[id] = wire
		pending = append(pending, att)
	}

	batches, rejected := o.packager.Plan(pending)
	for _, att := range rejected {
		record(models.NewSyncError(models.ErrCategoryFileOp, stepUpload, packager.ErrFileTooLarge).WithItem(att.ItemID))
		o.markStatus(ctx, att.ItemID, models.SyncStatusError)
		delete(staged, att.ItemID)
	}
	for _, batch := range batches {
		pkg, upErr := o.packager.Upload(ctx, batch)
		if upErr != nil {
			if isFatal(upErr) {
				return fail(models.NewSyncError(models.ErrCategoryAuth, stepUpload, upErr))
			}
			for _, att := range batch {
				record(models.NewSyncError(categorize(upErr), stepUpload, upErr).WithItem(att.ItemID))
				o.markStatus(ctx, att.ItemID, models.SyncStatusError)
				delete(staged, att.ItemID)
			}
			continue
		}
		blob.Packages[pkg.PackageID] = pkg
		for _, att := range batch {
			wire := staged[att.ItemID]
			wire.PackageID = pkg.PackageID
			staged[att.ItemID] = wire
		}
	}

	for id, wire := range staged {
		blob.Items[id] = wire
	}
	report.Uploaded = len(staged)

	// Downloads: fetch wire items the remote has and we do not, pulling
	// attachment packages at most once each.
	downloadedIDs, dlErrs := o.applyDownloads(ctx, downloads, &blob)
	for _, se := range dlErrs {
		record(se)
	}
	report.Downloaded += len(downloadedIDs)

	// Commit: payload blob first, index second. An index referencing a
	// missing payload is worse than a stale index.
	o.setState(StateIndexCommit)
	commitFailed := false
	if err = saveDataBlob(ctx, o.objects, o.box, blob); err != nil {
		record(models.NewSyncError(categorize(err), stepCommit, err))
		commitFailed = true
	} else {
		final, qErr := o.store.Query(ctx, store.Filter{})
		if qErr != nil {
			record(models.NewSyncError(models.ErrCategoryLocalStore, stepCommit, qErr))
			commitFailed = true
		} else {
			scoped := final[:0]
			for _, item := range final {
				if _, wasRemote := remoteFPs[item.ID]; mode.Includes(item.Type, item.Favorite) || wasRemote {
					scoped = append(scoped, item)
				}
			}
			next := remoteindex.UpdateWithLocalChanges(idx, o.deviceID, scoped, tombstoneIDs, o.clock)
			if err = o.index.Save(ctx, next); err != nil {
				record(models.NewSyncError(categorize(err), stepCommit, err))
				commitFailed = true
			}
		}
	}

	if !commitFailed {
		for id := range staged {
			o.markStatus(ctx, id, models.SyncStatusSynced)
		}
	}
	if err = o.deletion.Reconcile(ctx, tombstoneIDs, commitFailed || remoteDeleteFailed); err != nil {
		record(models.NewSyncError(models.ErrCategoryLocalStore, stepDelete, err))
	}

	report.Errors = runErrs
	report.DurationMS = o.clock.Now().Sub(started).Milliseconds()

	final := StateDone
	if commitFailed {
		final = StateFailed
	}
	o.finish(final)
	log.Info().
		Int("uploaded", report.Uploaded).
		Int("downloaded", report.Downloaded).
		Int("deleted", report.Deleted).
		Int("conflicts", len(report.Conflicts)).
		Int("errors", len(report.Errors)).
		Int64("duration_ms", report.DurationMS).
		Msg("sync run finished")
	return report, nil
}

// applyDownloads materializes remote items locally. Package archives are
// fetched once per package; each member lands as a file in the attachment
// directory. Lazy items keep their remote pointer until EnsureContent.
func (o *Orchestrator) applyDownloads(
	ctx context.Context,
	downloads []models.Fingerprint,
	blob *DataBlob,
) ([]string, []models.SyncError) {
	var errs []models.SyncError
	var done []string

	payloadsByPackage := make(map[string]map[string][]byte)

	for _, fp := range downloads {
		wire, present := blob.Items[fp.ID]
		if !present {
			err := fmt.Errorf("item %s listed in index but missing from data blob", fp.ID)
			errs = append(errs, models.NewSyncError(models.ErrCategoryParsing, stepDownload, err).WithItem(fp.ID))
			continue
		}

		row := wire.ToClipboardItem()

		if wire.PackageID != "" && !wire.LazyDownload {
			pkg, known := blob.Packages[wire.PackageID]
			if !known {
				err := fmt.Errorf("item %s references unknown package %s", fp.ID, wire.PackageID)
				errs = append(errs, models.NewSyncError(models.ErrCategoryParsing, stepDownload, err).WithItem(fp.ID))
				continue
			}

			payloads, cached := payloadsByPackage[pkg.RemoteName]
			if !cached {
				_, fetched, err := o.packager.Download(ctx, pkg.RemoteName)
				if err != nil {
					errs = append(errs, models.NewSyncError(categorize(err), stepDownload, err).WithItem(fp.ID))
					continue
				}
				payloads = fetched
				payloadsByPackage[pkg.RemoteName] = payloads
			}

			data, member := payloads[fp.ID], memberName(pkg, fp.ID)
			if data == nil {
				err := fmt.Errorf("item %s missing from package %s", fp.ID, pkg.RemoteName)
				errs = append(errs, models.NewSyncError(models.ErrCategoryParsing, stepDownload, err).WithItem(fp.ID))
				continue
			}

			path, err := o.materialize(fp.ID, member, data)
			if err != nil {
				errs = append(errs, models.NewSyncError(models.ErrCategoryFileOp, stepDownload, err).WithItem(fp.ID))
				continue
			}
			row.Value = path
		}

		if err := o.store.Upsert(ctx, row); err != nil {
			errs = append(errs, models.NewSyncError(models.ErrCategoryLocalStore, stepApply, err).WithItem(fp.ID))
			continue
		}
		done = append(done, fp.ID)
	}

	return done, errs
}

// EnsureContent fetches the attachment bytes of a lazy-download item on
// demand, materializes them locally and clears the lazy flag. Non-lazy
// items are returned unchanged.
func (o *Orchestrator) EnsureContent(ctx context.Context, id string) (models.ClipboardItem, error) {
	item, err := o.store.Get(ctx, id)
	if err != nil {
		return models.ClipboardItem{}, err
	}
	if !item.LazyDownload || !item.HasAttachment() ||
		!strings.HasPrefix(item.Value, transport.FilesDir+"/") {
		return item, nil
	}

	data, err := o.packager.DownloadFile(ctx, item.Value)
	if err != nil {
		return models.ClipboardItem{}, fmt.Errorf("fetch lazy content for %s: %w", id, err)
	}

	path, err := o.materialize(id, fileObjectName(item.Value), data)
	if err != nil {
		return models.ClipboardItem{}, err
	}

	lazy := false
	if err = o.store.Update(ctx, id, models.ItemUpdate{Value: &path, LazyDownload: &lazy}); err != nil {
		return models.ClipboardItem{}, fmt.Errorf("record lazy content for %s: %w", id, err)
	}

	item.Value = path
	item.LazyDownload = false
	return item, nil
}

// materialize writes attachment bytes into the attachment directory and
// returns the local path. The item id prefix keeps same-named files apart.
func (o *Orchestrator) materialize(id, name string, data []byte) (string, error) {
	if err := os.MkdirAll(o.attachDir, 0o700); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}
	path := filepath.Join(o.attachDir, id+"_"+name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write attachment for %s: %w", id, err)
	}
	return path, nil
}

// toWire projects a local row, recomputing the inline-content checksum so
// a stale cached value can never reach the remote.
func (o *Orchestrator) toWire(item models.ClipboardItem) models.SyncItem {
	wire := item.ToSyncItem(o.deviceID)
	if !item.HasAttachment() {
		wire.Checksum = fingerprint.ItemChecksum(item)
	}
	return wire
}

func (o *Orchestrator) markStatus(ctx context.Context, id string, status models.SyncStatus) {
	if err := o.store.Update(ctx, id, models.ItemUpdate{SyncStatus: &status}); err != nil {
		o.logger.Warn().Err(err).Str("id", id).Msg("failed to update sync status")
	}
}

func (o *Orchestrator) begin() (models.SyncMode, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return models.SyncMode{}, false
	}
	o.running = true
	o.state = StateGathering
	return o.mode, true
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) finish(s State) {
	o.mu.Lock()
	o.running = false
	o.state = s
	o.mu.Unlock()
}

// applyResolution folds a conflict winner back into the local row. The row
// stays pending so the winner is uploaded by the same run.
func applyResolution(row models.ClipboardItem, winner models.SyncItem) models.ClipboardItem {
	row.Value = winner.Value
	row.Group = winner.Group
	row.Search = winner.Search
	row.Favorite = winner.Favorite
	row.Note = winner.Note
	row.LastModified = winner.LastModified
	row.Checksum = winner.Checksum
	row.SyncStatus = models.SyncStatusPending
	return row
}

// orphanedPackages lists remote package names no surviving blob item
// references, removing their entries from the package table.
func orphanedPackages(blob *DataBlob) []string {
	referenced := make(map[string]struct{})
	for _, wire := range blob.Items {
		if wire.PackageID != "" {
			referenced[wire.PackageID] = struct{}{}
		}
	}

	var names []string
	for id, pkg := range blob.Packages {
		if _, used := referenced[id]; used {
			continue
		}
		names = append(names, pkg.RemoteName)
		delete(blob.Packages, id)
	}
	sort.Strings(names)
	return names
}

// memberName finds the display name a package manifest records for an item.
func memberName(pkg models.FilePackage, itemID string) string {
	for _, m := range pkg.Members {
		if m.ItemID == itemID {
			return m.Name
		}
	}
	return itemID
}

// fileObjectName recovers the display name from a files/<id>_<ts>_<name>
// object path.
func fileObjectName(remotePath string) string {
	base := filepath.Base(remotePath)
	parts := strings.SplitN(base, "_", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return base
}

func categorize(err error) models.ErrorCategory {
	switch {
	case errors.Is(err, transport.ErrUnauthorized):
		return models.ErrCategoryAuth
	case errors.Is(err, transport.ErrNotFound), errors.Is(err, transport.ErrAlreadyExists):
		return models.ErrCategoryValidation
	default:
		return models.ErrCategoryNetwork
	}
}

func isFatal(err error) bool {
	return errors.Is(err, transport.ErrUnauthorized)
}
