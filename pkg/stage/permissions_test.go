package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func TestPermissionsBackupChmodsDataDir(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data", "base")
	if err := os.MkdirAll(dataDir, 0o777); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dataDir, "1.dat")
	if err := os.WriteFile(file, []byte("x"), 0o777); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	p := NewPermissions(PermissionBackup)

	if err := p.Execute(nil, srv, label, workflow.NewBag(false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != fileMode {
		t.Errorf("file mode = %o, want %o", info.Mode().Perm(), fileMode)
	}
}

func TestCleanupRemovesBackupLabelOld(t *testing.T) {
	root := t.TempDir()
	residual := filepath.Join(root, "backup_label.old")
	if err := os.WriteFile(residual, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	c := NewCleanup()
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyTargetBase, root, workflow.TagString)

	if err := c.Execute(nil, srv, "20210101120000", bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(residual); !os.IsNotExist(err) {
		t.Error("backup_label.old should have been removed")
	}
}

func TestCleanupNoOpWhenAbsent(t *testing.T) {
	root := t.TempDir()
	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	c := NewCleanup()
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyTargetBase, root, workflow.TagString)

	if err := c.Execute(nil, srv, "20210101120000", bag); err != nil {
		t.Fatalf("Execute should be a no-op when there is nothing to clean up: %v", err)
	}
}
