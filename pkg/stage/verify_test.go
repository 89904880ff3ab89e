package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func setupVerifyFixture(t *testing.T) (root, label string) {
	t.Helper()
	root = t.TempDir()
	label = "20210101120000"
	base := filepath.Join(root, label)
	dataDir := filepath.Join(base, "data", "base")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "1.dat"), []byte("hello"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	h := NewHash(backup.HashSHA256, 0)
	if err := h.Execute(nil, srv, label, workflow.NewBag(false)); err != nil {
		t.Fatalf("hash setup: %v", err)
	}

	info := backup.New(label)
	info.HashAlgorithm = backup.HashSHA256
	if err := info.Save(filepath.Join(base, "backup.info")); err != nil {
		t.Fatalf("info setup: %v", err)
	}

	return root, label
}

func TestVerifyCleanBackupReportsNoFailures(t *testing.T) {
	root, label := setupVerifyFixture(t)
	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	v := NewVerify(2)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyFiles, string(protocol.FilesFailed), workflow.TagString)

	if err := v.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	failedRaw, _, ok := bag.Get(workflow.KeyFailed)
	if !ok {
		t.Fatal("expected a failed entry in the bag")
	}
	failed := failedRaw.([]protocol.VerifyEntry)
	if len(failed) != 0 {
		t.Errorf("expected no failures, got %+v", failed)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	root, label := setupVerifyFixture(t)
	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	corruptPath := filepath.Join(root, label, "data", "base", "1.dat")
	if err := os.WriteFile(corruptPath, []byte("corrupted-content"), 0o600); err != nil {
		t.Fatalf("corrupting file: %v", err)
	}

	v := NewVerify(0)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyFiles, string(protocol.FilesFailed), workflow.TagString)

	if err := v.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	failedRaw, _, _ := bag.Get(workflow.KeyFailed)
	failed := failedRaw.([]protocol.VerifyEntry)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if failed[0].Filename != filepath.Join("base", "1.dat") {
		t.Errorf("Filename = %s", failed[0].Filename)
	}
	if failed[0].Calculated == failed[0].Original {
		t.Error("Calculated should differ from Original for a corrupted file")
	}
}

func TestVerifyMissingFileReportsUnknown(t *testing.T) {
	root, label := setupVerifyFixture(t)
	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	if err := os.Remove(filepath.Join(root, label, "data", "base", "1.dat")); err != nil {
		t.Fatalf("removing file: %v", err)
	}

	v := NewVerify(0)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyFiles, string(protocol.FilesFailed), workflow.TagString)

	if err := v.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	failedRaw, _, _ := bag.Get(workflow.KeyFailed)
	failed := failedRaw.([]protocol.VerifyEntry)
	if len(failed) != 1 || failed[0].Calculated != "Unknown" {
		t.Errorf("expected one Unknown failure, got %+v", failed)
	}
}

func TestVerifyAllModeRecordsSuccessfulRows(t *testing.T) {
	root, label := setupVerifyFixture(t)
	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	v := NewVerify(0)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyFiles, string(protocol.FilesAll), workflow.TagString)

	if err := v.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	allRaw, _, ok := bag.Get(workflow.KeyAll)
	if !ok {
		t.Fatal("expected an all entry in the bag when Files=all")
	}
	all := allRaw.([]protocol.VerifyEntry)
	if len(all) != 1 {
		t.Errorf("expected 1 successful row, got %d", len(all))
	}
}

func TestVerifyEmptyManifestSucceeds(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	base := filepath.Join(root, label)
	if err := os.MkdirAll(filepath.Join(base, "data"), 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "backup.manifest"), nil, 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	info := backup.New(label)
	info.HashAlgorithm = backup.HashSHA256
	if err := info.Save(filepath.Join(base, "backup.info")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	v := NewVerify(0)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyFiles, string(protocol.FilesAll), workflow.TagString)

	if err := v.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	failedRaw, _, _ := bag.Get(workflow.KeyFailed)
	allRaw, _, _ := bag.Get(workflow.KeyAll)
	if len(failedRaw.([]protocol.VerifyEntry)) != 0 {
		t.Error("expected empty failed deque")
	}
	if len(allRaw.([]protocol.VerifyEntry)) != 0 {
		t.Error("expected empty all deque")
	}
}
