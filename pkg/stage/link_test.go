package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver"
	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/manifest"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func makeBackupDir(t *testing.T, root, label string, files map[string]string, major semver.Version) {
	t.Helper()
	base := filepath.Join(root, label)
	dataDir := filepath.Join(base, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var rows []manifest.Row
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dataDir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		digest, err := hashFile(filepath.Join(dataDir, name), backup.HashSHA256)
		if err != nil {
			t.Fatalf("hashFile: %v", err)
		}
		rows = append(rows, manifest.Row{RelativePath: name, Hash: digest})
	}

	f, err := os.Create(filepath.Join(base, "backup.manifest"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	w := manifest.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f.Close()

	info := backup.New(label)
	info.Valid = backup.ValidityValid
	info.MajorVersion = major
	info.HashAlgorithm = backup.HashSHA256
	if err := info.Save(filepath.Join(base, "backup.info")); err != nil {
		t.Fatalf("setup: %v", err)
	}
}

func TestLinkHardlinksUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	v15 := semver.MustParse("15.0.0")

	makeBackupDir(t, root, "20210101120000", map[string]string{
		"unchanged.dat": "same content",
		"removed.dat":   "gone next time",
	}, v15)
	makeBackupDir(t, root, "20210102120000", map[string]string{
		"unchanged.dat": "same content",
		"added.dat":     "brand new",
	}, v15)

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))

	link := NewLink(2)
	bag := workflow.NewBag(false)
	bag.Add(workflow.KeyBackupBase, filepath.Join(root, "20210102120000"), workflow.TagString)

	if err := link.Execute(nil, srv, "20210102120000", bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	newPath := filepath.Join(root, "20210102120000", "data", "unchanged.dat")
	oldPath := filepath.Join(root, "20210101120000", "data", "unchanged.dat")

	newInfo, err := os.Stat(newPath)
	if err != nil {
		t.Fatalf("stat new: %v", err)
	}
	oldInfo, err := os.Stat(oldPath)
	if err != nil {
		t.Fatalf("stat old: %v", err)
	}
	if !os.SameFile(newInfo, oldInfo) {
		t.Error("unchanged.dat should be hardlinked between the two backups")
	}

	addedPath := filepath.Join(root, "20210102120000", "data", "added.dat")
	if _, err := os.Stat(addedPath); err != nil {
		t.Errorf("added.dat should still exist as its own file: %v", err)
	}

	info, err := backup.Load(filepath.Join(root, "20210102120000", "backup.info"))
	if err != nil {
		t.Fatalf("Load info: %v", err)
	}
	if info.LinkingElapsed < 0 {
		t.Error("LinkingElapsed should be non-negative")
	}
}

func TestLinkNoOpWithoutPredecessor(t *testing.T) {
	root := t.TempDir()
	makeBackupDir(t, root, "20210101120000", map[string]string{"a.dat": "x"}, semver.MustParse("15.0.0"))

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	link := NewLink(0)
	bag := workflow.NewBag(false)

	if err := link.Execute(nil, srv, "20210101120000", bag); err != nil {
		t.Fatalf("Execute should no-op without a predecessor: %v", err)
	}
}

func TestLinkSkipsIncompatibleMajorVersion(t *testing.T) {
	root := t.TempDir()
	makeBackupDir(t, root, "20210101120000", map[string]string{"a.dat": "x"}, semver.MustParse("14.0.0"))
	makeBackupDir(t, root, "20210102120000", map[string]string{"a.dat": "x"}, semver.MustParse("15.0.0"))

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	link := NewLink(0)
	bag := workflow.NewBag(false)

	if err := link.Execute(nil, srv, "20210102120000", bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	newInfo, _ := os.Stat(filepath.Join(root, "20210102120000", "data", "a.dat"))
	oldInfo, _ := os.Stat(filepath.Join(root, "20210101120000", "data", "a.dat"))
	if os.SameFile(newInfo, oldInfo) {
		t.Error("files should not be linked across incompatible major versions")
	}
}
