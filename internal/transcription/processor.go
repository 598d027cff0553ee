// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"fmt"

	internal_audio "github.com/YamazakiYusuke/TalkToBook-sub002/internal/audio"
	internal_entity "github.com/YamazakiYusuke/TalkToBook-sub002/internal/entity"
	internal_recording "github.com/YamazakiYusuke/TalkToBook-sub002/internal/recording"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Processor drives recordings from PENDING to a terminal transcription
// status. Per-item failures are captured as FAILED rows and never abort the
// rest of the queue.
type Processor struct {
	logger       commons.Logger
	store        internal_recording.Store
	transcriber  Transcriber
	cache        ResultCache
	connectivity ConnectivityChecker
	files        *internal_audio.FileManager

	// group collapses concurrent transcriptions of the same asset: a retry
	// racing a queue run performs one provider call, both get the result.
	group singleflight.Group
}

func NewProcessor(
	logger commons.Logger,
	store internal_recording.Store,
	transcriber Transcriber,
	cache ResultCache,
	connectivity ConnectivityChecker,
	files *internal_audio.FileManager,
) *Processor {
	return &Processor{
		logger:       logger,
		store:        store,
		transcriber:  transcriber,
		cache:        cache,
		connectivity: connectivity,
		files:        files,
	}
}

// Transcribe converts a single audio asset to text. Order of checks: the
// asset must exist and be non-empty, a cached result short-circuits the
// call, connectivity is required for a provider round trip.
func (p *Processor) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := p.files.ValidateAudioFile(audioPath); err != nil {
		return "", err
	}

	key, err := CacheKey(audioPath)
	if err != nil {
		return "", types.NewError(types.IOFailure,
			fmt.Sprintf("failed to identify audio asset %s", audioPath), err)
	}
	if text, ok := p.cache.Get(ctx, key); ok {
		p.logger.Debugf("transcript cache hit: %s", audioPath)
		return text, nil
	}

	if !p.connectivity.IsOnline(ctx) {
		return "", types.NewError(types.NoConnectivity,
			"network unreachable, transcription deferred", nil)
	}

	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		text, err := p.transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			return "", err
		}
		p.cache.Put(ctx, key, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ProcessQueue transcribes every PENDING recording in arrival order. Fails
// fast without connectivity. Each item is claimed (IN_PROGRESS acts as a
// lease), transcribed, and finalized independently; a failed item becomes
// FAILED and its siblings continue. Returns the number of completed and
// failed items.
func (p *Processor) ProcessQueue(ctx context.Context) (completed int, failed int, err error) {
	if !p.connectivity.IsOnline(ctx) {
		return 0, 0, types.NewError(types.NoConnectivity,
			"network unreachable, queue not processed", nil)
	}

	pending, err := p.store.GetByStatus(ctx, internal_entity.StatusPending)
	if err != nil {
		return 0, 0, fmt.Errorf("process queue: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}
	p.logger.Infof("processing transcription queue: %d pending", len(pending))

	for _, rec := range pending {
		if procErr := p.processOne(ctx, rec,
			internal_entity.StatusPending, internal_entity.StatusFailed); procErr != nil {
			p.logger.Warnf("queue item failed: id=%s: %v", rec.ID, procErr)
			failed++
			continue
		}
		completed++
	}
	return completed, failed, nil
}

// processOne runs the claim → transcribe → finalize cycle for one recording.
// claimFrom lists the statuses the caller may lease the row from.
func (p *Processor) processOne(ctx context.Context, rec *internal_entity.Recording, claimFrom ...string) error {
	if err := p.store.MarkInProgress(ctx, rec.ID, claimFrom...); err != nil {
		return err
	}

	text, err := p.Transcribe(ctx, rec.AudioFilePath)
	if err != nil {
		if serr := p.store.SetOutcome(ctx, rec.ID, nil, internal_entity.StatusFailed); serr != nil {
			p.logger.Errorf("failed to mark recording failed: id=%s: %v", rec.ID, serr)
		}
		return err
	}

	if err := p.store.SetOutcome(ctx, rec.ID, &text, internal_entity.StatusCompleted); err != nil {
		return err
	}
	return nil
}

// Retry re-runs transcription for a single recording: one stuck in FAILED,
// still PENDING, or left IN_PROGRESS by an interrupted queue run (the lease
// holder crashed before settling the row, so retry is the recovery path).
// Unlike queue processing the outcome propagates to the caller so it can
// react (e.g. re-enable a retry control).
func (p *Processor) Retry(ctx context.Context, recordingID string) (*internal_entity.Recording, error) {
	rec, err := p.store.GetByID(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if err := p.processOne(ctx, rec,
		internal_entity.StatusPending, internal_entity.StatusFailed,
		internal_entity.StatusInProgress); err != nil {
		return nil, err
	}
	return p.store.GetByID(ctx, recordingID)
}

// UpdateStatus is the direct status write-through for callers holding a
// definitive outcome. The store still validates the transition.
func (p *Processor) UpdateStatus(ctx context.Context, recordingID string, status string) error {
	return p.store.UpdateStatus(ctx, recordingID, status)
}
