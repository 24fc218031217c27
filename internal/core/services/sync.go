package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// audioContentType is the content type requested for upload slots.
const audioContentType = "audio/m4a"

// SyncOrchestrator reconciles local sermon aggregates with the remote
// backend: push of unpushed mutations first, then pull with
// last-write-wins conflict resolution at aggregate granularity.
type SyncOrchestrator struct {
	store        driven.SermonStore
	backend      driven.RemoteBackend
	entitlements driven.EntitlementChecker
	clock        driven.Clock
	userID       string

	// Status tracking
	mu      sync.Mutex
	running bool
	status  driving.SyncStatus
}

// NewSyncOrchestrator creates a sync orchestrator for the given user.
func NewSyncOrchestrator(
	store driven.SermonStore,
	backend driven.RemoteBackend,
	entitlements driven.EntitlementChecker,
	clock driven.Clock,
	userID string,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		store:        store,
		backend:      backend,
		entitlements: entitlements,
		clock:        clock,
		userID:       userID,
	}
}

// SyncAll attempts one full reconciliation pass. Overlapping calls are
// rejected with domain.ErrSyncInProgress rather than queued; the caller
// simply retries at the next opportunity.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	if err := o.checkEntitlement(ctx); err != nil {
		o.setError(err)
		return err
	}

	logger.Section("Push Phase")
	if err := o.push(ctx); err != nil {
		o.setError(err)
		return err
	}

	logger.Section("Pull Phase")
	if err := o.pull(ctx); err != nil {
		o.setError(err)
		return err
	}

	o.mu.Lock()
	o.status.LastError = ""
	o.mu.Unlock()
	return nil
}

// DeleteAllCloudData issues a remote wipe and, only on success, resets
// local sync metadata. A failed wipe leaves local state untouched so no
// data is lost.
func (o *SyncOrchestrator) DeleteAllCloudData(ctx context.Context) error {
	if o.userID == "" {
		return domain.ErrSubscriptionRequired
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	if err := o.backend.DeleteAllUserData(ctx, o.userID); err != nil {
		return fmt.Errorf("delete cloud data: %w", err)
	}

	sermons, err := o.store.List(ctx, o.userID)
	if err != nil {
		return fmt.Errorf("list sermons: %w", err)
	}

	for i := range sermons {
		s := &sermons[i]
		s.RemoteID = ""
		s.LastSyncedAt = nil
		s.SyncStatus = domain.SyncLocalOnly
		s.NeedsSync = false
		s.AudioURL = ""
		if s.Transcript != nil {
			s.Transcript.RemoteID = ""
		}
		if s.Summary != nil {
			s.Summary.RemoteID = ""
		}
		for j := range s.Notes {
			s.Notes[j].RemoteID = ""
		}
		if err := o.store.Save(ctx, s); err != nil {
			return fmt.Errorf("reset sermon %s: %w", s.ID, err)
		}
	}

	logger.Info("Cloud data deleted, %d sermons reset to local-only", len(sermons))
	return nil
}

// Status returns a copy of the current sync status.
func (o *SyncOrchestrator) Status() driving.SyncStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// begin acquires the single-flight guard.
func (o *SyncOrchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return domain.ErrSyncInProgress
	}
	o.running = true
	o.status = driving.SyncStatus{Running: true}
	return nil
}

func (o *SyncOrchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.status.Running = false
	o.mu.Unlock()
}

func (o *SyncOrchestrator) setError(err error) {
	o.mu.Lock()
	o.status.LastError = err.Error()
	o.mu.Unlock()
}

// checkEntitlement fails fast, before any I/O, when no user is known or
// the user lacks a sync entitlement.
func (o *SyncOrchestrator) checkEntitlement(ctx context.Context) error {
	if o.userID == "" {
		return domain.ErrSubscriptionRequired
	}
	ok, err := o.entitlements.CanSync(ctx, o.userID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionRequired, err)
	}
	if !ok {
		return domain.ErrSubscriptionRequired
	}
	return nil
}

// push uploads every aggregate with unpushed mutations. The store is
// persisted after each item so partial progress survives a mid-batch
// failure; the first unhandled error aborts the remainder of the phase.
func (o *SyncOrchestrator) push(ctx context.Context) error {
	sermons, err := o.store.ListNeedingSync(ctx, o.userID)
	if err != nil {
		return fmt.Errorf("list pending sermons: %w", err)
	}

	for i := range sermons {
		s := &sermons[i]
		if err := o.pushOne(ctx, s); err != nil {
			s.SyncStatus = domain.SyncError
			if saveErr := o.store.Save(ctx, s); saveErr != nil {
				logger.Warn("Failed to persist error status for %s: %v", s.ID, saveErr)
			}
			return fmt.Errorf("push sermon %s: %w", s.ID, err)
		}

		o.mu.Lock()
		o.status.Pushed++
		o.mu.Unlock()
	}
	return nil
}

// pushOne syncs a single aggregate: create (with audio upload) when no
// remote ID is known, update otherwise. Children travel in the same
// payload under the parent.
func (o *SyncOrchestrator) pushOne(ctx context.Context, s *domain.Sermon) error {
	logger.Debug("Pushing sermon %s (remote=%q)", s.ID, s.RemoteID)
	s.SyncStatus = domain.SyncSyncing

	if s.RemoteID == "" {
		if err := o.uploadAudio(ctx, s); err != nil {
			return err
		}

		result, err := o.backend.CreateSermon(ctx, buildPayload(s))
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Already created server-side (e.g. a previous pass died
			// after the create landed). The pull phase matches the
			// remote copy by local ID and adopts its remote ID.
			logger.Debug("Sermon %s already exists remotely, deferring to pull", s.ID)
			s.SyncStatus = domain.SyncPending
			return o.store.Save(ctx, s)
		}
		if err != nil {
			return err
		}
		s.RemoteID = result.RemoteID
	} else {
		if err := o.backend.UpdateSermon(ctx, s.RemoteID, buildPayload(s)); err != nil {
			return err
		}
	}

	now := o.clock.Now()
	s.MarkSynced(now)
	clearChildFlags(s)
	return o.store.Save(ctx, s)
}

// uploadAudio runs the signed-slot upload dance for a new aggregate:
// request a slot, stream the file, resolve the permanent public URL.
func (o *SyncOrchestrator) uploadAudio(ctx context.Context, s *domain.Sermon) error {
	if s.AudioPath == "" || s.AudioURL != "" {
		return nil
	}

	slot, err := o.backend.GetUploadSlot(ctx, s.AudioFileName, audioContentType, s.AudioSizeBytes)
	if err != nil {
		return fmt.Errorf("get upload slot: %w", err)
	}
	if err := o.backend.UploadAsset(ctx, s.AudioPath, slot.UploadURL); err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	url, err := o.backend.PublicAssetURL(ctx, slot.StoragePath)
	if err != nil {
		return fmt.Errorf("resolve audio url: %w", err)
	}
	s.AudioURL = url
	return nil
}

// pull fetches all remote aggregates and reconciles them locally with
// last-write-wins at aggregate granularity.
func (o *SyncOrchestrator) pull(ctx context.Context) error {
	remotes, err := o.backend.FetchSermons(ctx, o.userID)
	if err != nil {
		return fmt.Errorf("fetch sermons: %w", err)
	}

	for i := range remotes {
		if err := o.pullOne(ctx, &remotes[i]); err != nil {
			return fmt.Errorf("pull sermon %s: %w", remotes[i].RemoteID, err)
		}

		o.mu.Lock()
		o.status.Pulled++
		o.mu.Unlock()
	}
	return nil
}

func (o *SyncOrchestrator) pullOne(ctx context.Context, remote *driven.RemoteSermon) error {
	local, err := o.store.GetByRemoteID(ctx, remote.RemoteID)
	if errors.Is(err, domain.ErrNotFound) && remote.LocalID != "" {
		// No aggregate carries this remote ID yet. It may be ours from
		// a create that only half-landed (the 409 path): match by the
		// local ID echoed back in the payload and adopt the remote ID.
		local, err = o.store.Get(ctx, remote.LocalID)
		if err == nil {
			local.RemoteID = remote.RemoteID
		}
	}

	if errors.Is(err, domain.ErrNotFound) {
		return o.materialize(ctx, remote)
	}
	if err != nil {
		return err
	}

	now := o.clock.Now()
	if remote.UpdatedAt.After(local.UpdatedAt) {
		logger.Debug("Remote %s newer (%s > %s), overwriting local",
			remote.RemoteID, remote.UpdatedAt.Format(time.RFC3339), local.UpdatedAt.Format(time.RFC3339))
		applyRemote(local, remote)
		local.MarkSynced(now)
	} else if local.RemoteID != "" && !local.NeedsSync {
		// Local wins or equal timestamps: scalar fields untouched.
		// Still persist a freshly adopted remote ID.
		t := now
		local.LastSyncedAt = &t
		local.SyncStatus = domain.SyncSynced
	}
	return o.store.Save(ctx, local)
}

// materialize constructs a local aggregate from a remote payload,
// downloading its audio asset and building its children.
func (o *SyncOrchestrator) materialize(ctx context.Context, remote *driven.RemoteSermon) error {
	logger.Debug("Materializing remote sermon %s locally", remote.RemoteID)

	localPath := ""
	if remote.AudioFileURL != "" {
		p, err := o.backend.DownloadAsset(ctx, remote.AudioFileURL)
		if err != nil {
			return fmt.Errorf("download audio: %w", err)
		}
		localPath = p
	}

	now := o.clock.Now()
	s := &domain.Sermon{
		ID:                  remote.LocalID,
		RemoteID:            remote.RemoteID,
		UserID:              o.userID,
		AudioPath:           localPath,
		SyncStatus:          domain.SyncSynced,
		TranscriptionStatus: domain.TranscriptionStatus(remote.TranscriptionStatus),
		SummaryStatus:       domain.SummaryStatus(remote.SummaryStatus),
	}
	if s.ID == "" {
		s.ID = remote.RemoteID
	}
	applyRemote(s, remote)
	s.MarkSynced(now)
	return o.store.Save(ctx, s)
}

// applyRemote overwrites local scalar fields and children from the
// remote copy. The last-write-wins policy has already decided remote
// wins when this is called.
func applyRemote(s *domain.Sermon, remote *driven.RemoteSermon) {
	s.Title = remote.Title
	s.AudioURL = remote.AudioFileURL
	s.AudioFileName = remote.AudioFileName
	s.AudioSizeBytes = remote.AudioFileSizeBytes
	s.Duration = time.Duration(remote.Duration * float64(time.Second))
	s.Date = remote.Date
	s.ServiceType = remote.ServiceType
	s.Speaker = remote.Speaker
	s.IsArchived = remote.IsArchived
	s.TranscriptionStatus = domain.TranscriptionStatus(remote.TranscriptionStatus)
	s.SummaryStatus = domain.SummaryStatus(remote.SummaryStatus)
	s.UpdatedAt = remote.UpdatedAt

	if remote.Transcript != nil {
		if s.Transcript == nil {
			s.Transcript = &domain.Transcript{ID: remote.Transcript.LocalID, SermonID: s.ID}
		}
		s.Transcript.RemoteID = remote.Transcript.RemoteID
		s.Transcript.Text = remote.Transcript.Text
		s.Transcript.UpdatedAt = remote.Transcript.UpdatedAt
		s.Transcript.NeedsSync = false
	}

	if remote.Summary != nil {
		if s.Summary == nil {
			s.Summary = &domain.Summary{ID: remote.Summary.LocalID, SermonID: s.ID}
		}
		s.Summary.RemoteID = remote.Summary.RemoteID
		s.Summary.Title = remote.Summary.Title
		s.Summary.Text = remote.Summary.Text
		s.Summary.UpdatedAt = remote.Summary.UpdatedAt
		s.Summary.NeedsSync = false
	}

	if len(remote.Notes) > 0 {
		notes := make([]domain.Note, 0, len(remote.Notes))
		for _, rn := range remote.Notes {
			notes = append(notes, domain.Note{
				ID:        rn.LocalID,
				RemoteID:  rn.RemoteID,
				SermonID:  s.ID,
				Text:      rn.Text,
				Timestamp: time.Duration(rn.Timestamp * float64(time.Second)),
				UpdatedAt: rn.UpdatedAt,
			})
		}
		s.Notes = notes
	}
}

// buildPayload flattens an aggregate into the create/update wire shape.
func buildPayload(s *domain.Sermon) driven.SermonPayload {
	p := driven.SermonPayload{
		LocalID:             s.ID,
		Title:               s.Title,
		AudioFilePath:       s.AudioPath,
		AudioFileURL:        s.AudioURL,
		AudioFileName:       s.AudioFileName,
		AudioFileSizeBytes:  s.AudioSizeBytes,
		Duration:            s.Duration.Seconds(),
		Date:                s.Date.UTC().Format(time.RFC3339),
		ServiceType:         s.ServiceType,
		Speaker:             s.Speaker,
		TranscriptionStatus: string(s.TranscriptionStatus),
		SummaryStatus:       string(s.SummaryStatus),
		IsArchived:          s.IsArchived,
		UpdatedAt:           s.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if s.Transcript != nil {
		p.Transcript = &driven.ChildPayload{
			LocalID:   s.Transcript.ID,
			RemoteID:  s.Transcript.RemoteID,
			Text:      s.Transcript.Text,
			UpdatedAt: s.Transcript.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	if s.Summary != nil {
		p.Summary = &driven.SummaryPayload{
			LocalID:   s.Summary.ID,
			RemoteID:  s.Summary.RemoteID,
			Title:     s.Summary.Title,
			Text:      s.Summary.Text,
			UpdatedAt: s.Summary.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	for _, n := range s.Notes {
		p.Notes = append(p.Notes, driven.NotePayload{
			LocalID:   n.ID,
			RemoteID:  n.RemoteID,
			Text:      n.Text,
			Timestamp: n.Timestamp.Seconds(),
			UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return p
}

// clearChildFlags marks children as pushed alongside their parent.
func clearChildFlags(s *domain.Sermon) {
	if s.Transcript != nil {
		s.Transcript.NeedsSync = false
	}
	if s.Summary != nil {
		s.Summary.NeedsSync = false
	}
	for i := range s.Notes {
		s.Notes[i].NeedsSync = false
	}
}
