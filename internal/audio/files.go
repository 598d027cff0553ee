// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/types"
	"github.com/google/uuid"
)

// FileManager allocates and deletes audio files inside the recording
// directory and keeps the directory under its byte budget.
type FileManager struct {
	logger     commons.Logger
	directory  string
	limitBytes int64
}

func NewFileManager(logger commons.Logger, directory string, limitBytes int64) (*FileManager, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, types.NewError(types.IOFailure,
			fmt.Sprintf("failed to create recording directory %s", directory), err)
	}
	return &FileManager{
		logger:     logger,
		directory:  directory,
		limitBytes: limitBytes,
	}, nil
}

// GenerateUniqueFileName returns a collision-free WAV file name.
func (m *FileManager) GenerateUniqueFileName() string {
	return fmt.Sprintf("recording_%s_%s.wav",
		time.Now().Format("20060102_150405"), uuid.New().String())
}

// CreateRecordingFile allocates the audio file and returns its absolute
// path. The file is created once at session start and never renamed.
func (m *FileManager) CreateRecordingFile(name string) (string, error) {
	path, err := filepath.Abs(filepath.Join(m.directory, name))
	if err != nil {
		return "", types.NewError(types.IOFailure, "failed to resolve recording path", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", types.NewError(types.IOFailure,
			fmt.Sprintf("failed to create recording file %s", path), err)
	}
	if err := f.Close(); err != nil {
		return "", types.NewError(types.IOFailure,
			fmt.Sprintf("failed to close recording file %s", path), err)
	}
	m.logger.Debugf("created recording file: %s", path)
	return path, nil
}

// DeleteFile removes an audio file. Returns false when the file was already
// gone.
func (m *FileManager) DeleteFile(path string) bool {
	err := os.Remove(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warnf("failed to delete audio file %s: %v", path, err)
		}
		return false
	}
	return true
}

// ValidateAudioFile checks the asset exists and is non-empty. Rows can
// outlive their files, so every transcription revalidates the asset.
func (m *FileManager) ValidateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewError(types.NotFound,
				fmt.Sprintf("audio file missing: %s", path), err)
		}
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to stat audio file %s", path), err)
	}
	if info.Size() <= wavHeaderSize {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("audio file empty: %s", path), nil)
	}
	return nil
}

// EnforceCacheLimit deletes the oldest recordings until the directory is
// within its byte budget.
func (m *FileManager) EnforceCacheLimit() error {
	entries, err := os.ReadDir(m.directory)
	if err != nil {
		return types.NewError(types.IOFailure,
			fmt.Sprintf("failed to read recording directory %s", m.directory), err)
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(m.directory, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}

	if total <= m.limitBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files {
		if total <= m.limitBytes {
			break
		}
		if m.DeleteFile(f.path) {
			total -= f.size
			m.logger.Infof("evicted old recording over cache limit: %s", f.path)
		}
	}
	return nil
}
