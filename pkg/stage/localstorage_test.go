package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func TestLocalStorageRecordsBackupSize(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	base := filepath.Join(root, label)
	dataDir := filepath.Join(base, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "a.dat"), []byte("0123456789"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	info := backup.New(label)
	if err := info.Save(filepath.Join(base, "backup.info")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	ls := NewLocalStorage()
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyBackupBase, base, workflow.TagString)

	if err := ls.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	saved, err := backup.Load(filepath.Join(base, "backup.info"))
	if err != nil {
		t.Fatalf("reloading backup.info: %v", err)
	}
	if saved.BackupSize != 10 {
		t.Errorf("BackupSize = %d, want 10", saved.BackupSize)
	}
	if saved.RestoreSize != 10 {
		t.Errorf("RestoreSize = %d, want 10", saved.RestoreSize)
	}
}

func TestLocalStorageUsesExpandedSizeFromCompress(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	base := filepath.Join(root, label)
	dataDir := filepath.Join(base, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "a.dat.gz"), []byte("xx"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	info := backup.New(label)
	if err := info.Save(filepath.Join(base, "backup.info")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	ls := NewLocalStorage()
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyBackupBase, base, workflow.TagString)
	bag.Add("expanded_size", int64(100), workflow.TagUint)

	if err := ls.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	saved, err := backup.Load(filepath.Join(base, "backup.info"))
	if err != nil {
		t.Fatalf("reloading backup.info: %v", err)
	}
	if saved.BackupSize != 2 {
		t.Errorf("BackupSize = %d, want 2 (the size on disk after compression)", saved.BackupSize)
	}
	if saved.RestoreSize != 100 {
		t.Errorf("RestoreSize = %d, want 100 (the expanded size compress.go recorded)", saved.RestoreSize)
	}
}
