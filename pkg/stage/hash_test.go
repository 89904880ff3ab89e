package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/manifest"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func TestHashExecuteWritesManifest(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data")
	if err := os.MkdirAll(filepath.Join(dataDir, "base"), 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "base", "1.dat"), []byte("hello"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	h := NewHash(backup.HashSHA256, 2)
	bag := workflow.NewBag(false)
	if err := h.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	m, err := manifest.Load(filepath.Join(root, label, "backup.manifest"))
	if err != nil {
		t.Fatalf("Load manifest: %v", err)
	}
	if len(m.Rows) != 1 {
		t.Fatalf("expected 1 manifest row, got %d", len(m.Rows))
	}
	if m.Rows[0].RelativePath != filepath.Join("base", "1.dat") {
		t.Errorf("unexpected relative path: %s", m.Rows[0].RelativePath)
	}
	wantHash, err := hashFile(filepath.Join(dataDir, "base", "1.dat"), backup.HashSHA256)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	if m.Rows[0].Hash != wantHash {
		t.Errorf("Hash = %s, want %s", m.Rows[0].Hash, wantHash)
	}
}

func TestNewHasherRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := newHasher("bogus"); err == nil {
		t.Error("expected an error for an unsupported algorithm")
	}
}
