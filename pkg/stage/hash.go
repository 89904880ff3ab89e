/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stage

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/manifest"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workers"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// castagnoliTable is the CRC-32C polynomial table, matching pgmoneta's
// HASH_ALGORITHM_CRC32C.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// newHasher builds the hash.Hash for algo, or an error for an
// unrecognized algorithm (spec.md §4.3: "Supported algorithms:
// SHA-224, SHA-256, SHA-384, SHA-512, CRC-32C").
func newHasher(algo backup.HashAlgorithm) (hash.Hash, error) {
	switch algo {
	case backup.HashSHA224:
		return sha256.New224(), nil
	case backup.HashSHA256:
		return sha256.New(), nil
	case backup.HashSHA384:
		return sha512.New384(), nil
	case backup.HashSHA512:
		return sha512.New(), nil
	case backup.HashCRC32C:
		return crc32.New(castagnoliTable), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algo)
	}
}

// hashFile computes algo's digest of the file at path as lowercase
// hex, matching the manifest's encoding (spec.md §6, "Manifest CSV").
func hashFile(path string, algo backup.HashAlgorithm) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash computes the manifest for a freshly backed-up data/ directory:
// one row per file, hashed with the server's configured algorithm.
// Feeds link and verify; supplements spec.md's explicit five stages
// with the digest computation that produces the backup.manifest the
// rest of the pipeline consumes (SPEC_FULL.md §4.3).
type Hash struct {
	workflow.BaseStage

	Algorithm     backup.HashAlgorithm
	GlobalWorkers int
}

// NewHash builds the manifest-hashing stage.
func NewHash(algo backup.HashAlgorithm, globalWorkers int) *Hash {
	return &Hash{
		BaseStage:     workflow.BaseStage{StageName: "hash"},
		Algorithm:     algo,
		GlobalWorkers: globalWorkers,
	}
}

func (h *Hash) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	logger := log.FromContext(ctx)

	dataDir := filepath.Join(srv.BackupRoot, label, "data")

	var files []string
	err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hash: walking %s: %w", dataDir, err)
	}

	rows := make([]manifest.Row, len(files))
	numWorkers := srv.EffectiveWorkers(h.GlobalWorkers)
	pool := workers.New(numWorkers)

	for i, rel := range files {
		i, rel := i, rel
		pool.Add(func() error {
			digest, err := hashFile(filepath.Join(dataDir, rel), h.Algorithm)
			if err != nil {
				return fmt.Errorf("hash: %s: %w", rel, err)
			}
			rows[i] = manifest.Row{RelativePath: rel, Hash: digest}
			return nil
		})
	}

	pool.Wait()
	pool.Destroy()

	if !pool.Outcome() {
		return fmt.Errorf("hash: one or more files failed to hash")
	}

	manifestPath := filepath.Join(srv.BackupRoot, label, "backup.manifest")
	f, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("hash: creating manifest: %w", err)
	}
	defer f.Close()

	w := manifest.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("hash: writing manifest row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("hash: flushing manifest: %w", err)
	}

	logger.V(2).Info("hash complete", "server", srv.Name, "label", label, "files", len(rows))
	return nil
}
