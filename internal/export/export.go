// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package export writes recorded artifacts to disk.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ManuGH/vidrec/internal/domain/capture/model"
	xglog "github.com/ManuGH/vidrec/internal/log"
	"github.com/google/renameio/v2"
)

// ErrEmptyArtifact is returned for a nil artifact.
var ErrEmptyArtifact = errors.New("no artifact to export")

// Result describes a written file.
type Result struct {
	Path   string
	Bytes  int
	SHA256 string
}

// Resolve maps dest onto a file path. An empty dest or an existing
// directory receives the artifact's own file name.
func Resolve(dest string, art *model.Artifact) string {
	name := model.DefaultFileName
	if art != nil && art.FileName != "" {
		name = art.FileName
	}
	if dest == "" {
		return name
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		return filepath.Join(dest, name)
	}
	return dest
}

// WriteArtifact writes art to dest atomically: the file either holds the
// complete recording or is left untouched.
func WriteArtifact(ctx context.Context, dest string, art *model.Artifact) (Result, error) {
	if art == nil {
		return Result{}, ErrEmptyArtifact
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	logger := xglog.FromContext(ctx)
	path := Resolve(dest, art)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("create export dir: %w", err)
		}
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return Result{}, fmt.Errorf("create pending artifact file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending artifact file")
		}
	}()

	sum := sha256.New()
	n, err := io.MultiWriter(pendingFile, sum).Write(art.Data)
	if err != nil {
		return Result{}, fmt.Errorf("write artifact data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return Result{}, fmt.Errorf("atomically replace artifact file: %w", err)
	}

	res := Result{Path: path, Bytes: n, SHA256: hex.EncodeToString(sum.Sum(nil))}
	logger.Info().
		Str(xglog.FieldEvent, "artifact.exported").
		Str(xglog.FieldPath, res.Path).
		Int(xglog.FieldArtifactLen, res.Bytes).
		Msg("artifact written")
	return res, nil
}
