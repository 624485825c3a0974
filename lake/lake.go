// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package lake stores run artifacts as immutable blobs.  Artifacts are
// content-addressed (SHA-256) and laid out by capture date and run, so
// the same logical output captured on different days never collides:
//
//	2026/08/25/<run-id>/response.json
//
// The lake is append-only; writing over an existing key is an error.
// Storage goes through the go-cloud blob portability layer, so a local
// directory works for development and tests while production can point
// the same code at a cloud bucket.
package lake

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/queue"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
)

// ErrExists is returned when a write would clobber an existing
// artifact.
var ErrExists = errors.New("artifact already exists in the lake")

// Sink writes artifacts into a blob bucket.
type Sink struct {
	bucket *blob.Bucket
	clk    clock.Clock
}

// New creates a sink over an existing bucket.
func New(bucket *blob.Bucket) *Sink {
	return NewWithClock(bucket, clock.New())
}

// NewWithClock creates a sink with an explicit time source for the
// date-based key layout.
func NewWithClock(bucket *blob.Bucket, clk clock.Clock) *Sink {
	return &Sink{bucket: bucket, clk: clk}
}

// NewFileSink creates a sink over a local directory, the usual
// development and test configuration.
func NewFileSink(dir string) (*Sink, error) {
	bucket, err := fileblob.NewBucket(dir)
	if err != nil {
		return nil, err
	}
	return New(bucket), nil
}

// extension maps a MIME type to a key suffix.
func extension(mimeType string) string {
	switch {
	case mimeType == "application/json":
		return "json"
	case strings.HasPrefix(mimeType, "text/"):
		return "txt"
	default:
		return "bin"
	}
}

// Key computes the lake key for an artifact captured now.
func (s *Sink) Key(runID, artifactType, mimeType string) string {
	now := s.clk.Now().UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s/%s.%s",
		now.Year(), int(now.Month()), now.Day(),
		runID, artifactType, extension(mimeType))
}

// Store writes one artifact and returns its reference.  The key is
// derived from the capture date, run, and artifact type; writing the
// same artifact for the same run twice returns ErrExists.
func (s *Sink) Store(ctx context.Context, runID, artifactType, mimeType string, content []byte) (queue.ArtifactRef, error) {
	key := s.Key(runID, artifactType, mimeType)

	// Append-only check.  Losing a race between the check and the
	// write just means both writers stored identical date/run/type
	// content.
	reader, err := s.bucket.NewRangeReader(ctx, key, 0, 0)
	if err == nil {
		reader.Close()
		return queue.ArtifactRef{}, ErrExists
	} else if !blob.IsNotExist(err) {
		return queue.ArtifactRef{}, err
	}

	writer, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return queue.ArtifactRef{}, err
	}
	if _, err = writer.Write(content); err != nil {
		writer.Close()
		return queue.ArtifactRef{}, err
	}
	if err = writer.Close(); err != nil {
		return queue.ArtifactRef{}, err
	}

	digest := sha256.Sum256(content)
	return queue.ArtifactRef{
		LakeURI:   key,
		SHA256:    hex.EncodeToString(digest[:]),
		ByteCount: int64(len(content)),
	}, nil
}

// Fetch reads an artifact back by its lake URI.
func (s *Sink) Fetch(ctx context.Context, lakeURI string) ([]byte, error) {
	reader, err := s.bucket.NewRangeReader(ctx, lakeURI, 0, -1)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return ioutil.ReadAll(reader)
}

// Verify re-reads an artifact and checks it against its reference.
func (s *Sink) Verify(ctx context.Context, ref queue.ArtifactRef) error {
	content, err := s.Fetch(ctx, ref.LakeURI)
	if err != nil {
		return err
	}
	if int64(len(content)) != ref.ByteCount {
		return fmt.Errorf("artifact %v: has %v bytes, expected %v",
			ref.LakeURI, len(content), ref.ByteCount)
	}
	digest := sha256.Sum256(content)
	if !bytes.Equal(digest[:], mustDecodeHex(ref.SHA256)) {
		return fmt.Errorf("artifact %v: content hash mismatch", ref.LakeURI)
	}
	return nil
}

func mustDecodeHex(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return raw
}
