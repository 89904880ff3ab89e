package operation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	root := t.TempDir()
	srv := server.New("pg1", "localhost", 5432, "postgres", filepath.Join(root, "backup"), filepath.Join(root, "wal"))
	srv.SetValid(true)
	srv.SetWALStreaming(true)
	return srv
}

func TestBackupSucceedsAndCreatesDirectory(t *testing.T) {
	srv := newTestServer(t)

	result := Backup(context.Background(), srv, 0)
	if !result.Outcome.Status {
		t.Fatalf("expected success, got outcome %+v", result.Outcome)
	}
	if result.Response.Backup == "" {
		t.Fatal("expected a backup label in the response")
	}

	base := filepath.Join(srv.BackupRoot, result.Response.Backup)
	if _, err := os.Stat(filepath.Join(base, "backup.info")); err != nil {
		t.Errorf("expected backup.info: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "data")); err != nil {
		t.Errorf("expected data directory: %v", err)
	}
}

func TestBackupRejectedWhenServerNotValid(t *testing.T) {
	srv := newTestServer(t)
	srv.SetValid(false)

	result := Backup(context.Background(), srv, 0)
	if result.Outcome.Status {
		t.Fatal("expected failure for an invalid server")
	}
	if result.Outcome.Error != protocol.ErrServerNotValid {
		t.Errorf("Error = %v, want %v", result.Outcome.Error, protocol.ErrServerNotValid)
	}
}

func TestBackupRejectedWhenAlreadyBusy(t *testing.T) {
	srv := newTestServer(t)
	if !srv.TryAcquire(server.KindBackup) {
		t.Fatal("setup: expected to acquire the gate")
	}
	defer srv.Release(server.KindBackup)

	result := Backup(context.Background(), srv, 0)
	if result.Outcome.Status {
		t.Fatal("expected failure for a concurrent backup")
	}
	if result.Outcome.Error != protocol.ErrBackupActive {
		t.Errorf("Error = %v, want %v", result.Outcome.Error, protocol.ErrBackupActive)
	}
	if _, err := os.Stat(srv.BackupRoot); err == nil {
		entries, _ := os.ReadDir(srv.BackupRoot)
		if len(entries) != 0 {
			t.Error("expected no backup directory to be created on rejection")
		}
	}
}

func TestDeleteThenDeleteAgainFails(t *testing.T) {
	srv := newTestServer(t)

	backupResult := Backup(context.Background(), srv, 0)
	if !backupResult.Outcome.Status {
		t.Fatalf("setup backup failed: %+v", backupResult.Outcome)
	}
	label := backupResult.Response.Backup

	del := Delete(context.Background(), srv, label, 0)
	if !del.Outcome.Status {
		t.Fatalf("expected delete to succeed: %+v", del.Outcome)
	}

	second := Delete(context.Background(), srv, label, 0)
	if second.Outcome.Status {
		t.Fatal("expected the second delete to fail")
	}
	if second.Outcome.Error != protocol.ErrDelete {
		t.Errorf("Error = %v, want %v", second.Outcome.Error, protocol.ErrDelete)
	}
}

func TestListOnFreshServerReturnsEmpty(t *testing.T) {
	srv := newTestServer(t)
	if err := os.MkdirAll(srv.BackupRoot, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}

	result := List(context.Background(), srv)
	if !result.Outcome.Status {
		t.Fatalf("expected success, got %+v", result.Outcome)
	}
	if len(result.Response.Backups) != 0 {
		t.Errorf("expected no backups, got %d", len(result.Response.Backups))
	}
}
