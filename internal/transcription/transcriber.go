// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/YamazakiYusuke/TalkToBook-sub002/config"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber converts a single audio asset into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// openaiTranscriber calls the OpenAI audio/transcriptions endpoint with
// fixed parameters: configured whisper model and language, JSON output,
// temperature zero for deterministic decoding. Every call is bounded by the
// configured timeout.
type openaiTranscriber struct {
	logger commons.Logger
	client openai.Client
	cfg    *config.TranscriptionConfig
}

func NewOpenAITranscriber(logger commons.Logger, cfg *config.TranscriptionConfig) Transcriber {
	return &openaiTranscriber{
		logger: logger,
		client: openai.NewClient(option.WithAPIKey(cfg.ApiKey)),
		cfg:    cfg,
	}
}

func (t *openaiTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", types.NewError(types.IOFailure,
			fmt.Sprintf("failed to open audio asset %s", audioPath), err)
	}
	defer f.Close()

	callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	resp, err := t.client.Audio.Transcriptions.New(callCtx, openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(t.cfg.Model),
		Language:       openai.String(t.cfg.Language),
		ResponseFormat: openai.AudioResponseFormatJSON,
		Temperature:    openai.Float(0),
	})
	if err != nil {
		return "", t.mapError(err)
	}

	t.logger.Debugf("transcribed %s: %d chars", audioPath, len(resp.Text))
	return resp.Text, nil
}

// mapError translates the provider's error taxonomy into the domain one.
func (t *openaiTranscriber) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.Timeout,
			fmt.Sprintf("transcription exceeded %s", t.cfg.Timeout), err)
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return types.NewServiceError("transcription provider rejected the request",
			apierr.StatusCode, err)
	}
	return types.NewError(types.ServiceError, "transcription call failed", err)
}
