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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// Encrypt optionally AES-GCM encrypts every data/ file, gated by a
// per-server flag; disabled it is a no-op. Named by spec.md's §2
// component table ("...encrypt, compress...") but never detailed
// (SPEC_FULL.md §4.3).
type Encrypt struct {
	workflow.BaseStage

	Enabled bool
	Key     []byte
}

// NewEncrypt builds the encrypt stage with a 16/24/32-byte AES key.
func NewEncrypt(enabled bool, key []byte) *Encrypt {
	return &Encrypt{BaseStage: workflow.BaseStage{StageName: "encrypt"}, Enabled: enabled, Key: key}
}

func (e *Encrypt) Execute(ctx context.Context, srv *server.Server, label string, bag *workflow.Bag) error {
	if !e.Enabled {
		return nil
	}

	logger := log.FromContext(ctx)
	block, err := aes.NewCipher(e.Key)
	if err != nil {
		return fmt.Errorf("encrypt: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("encrypt: building GCM mode: %w", err)
	}

	dataDir := filepath.Join(srv.BackupRoot, label, "data")
	var count int

	err = filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) == ".enc" {
			return nil
		}
		if err := encryptFile(path, gcm); err != nil {
			return fmt.Errorf("encrypt: %s: %w", path, err)
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	logger.V(2).Info("encrypt complete", "server", srv.Name, "label", label, "files", count)
	return nil
}

// encryptFile replaces path with path+".enc" containing a random
// nonce followed by the AES-GCM sealed content.
func encryptFile(path string, gcm cipher.AEAD) error {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	if err := os.WriteFile(path+".enc", ciphertext, 0o600); err != nil {
		return err
	}
	return os.Remove(path)
}
