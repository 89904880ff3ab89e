package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

func TestCompressDisabledIsNoOp(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dataDir, "1.dat")
	if err := os.WriteFile(file, []byte("hello"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	c := NewCompress(false)
	if err := c.Execute(nil, srv, label, workflow.NewBag(false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Error("disabled compress should leave the original file untouched")
	}
}

func TestCompressEnabledReplacesFileWithGz(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dataDir, "1.dat")
	if err := os.WriteFile(file, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	c := NewCompress(true)
	bag := workflow.NewBag(false)
	if err := c.Execute(nil, srv, label, bag); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("original file should have been removed after compression")
	}
	if _, err := os.Stat(file + ".gz"); err != nil {
		t.Error("expected a .gz file after compression")
	}
}

func TestEncryptDisabledIsNoOp(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dataDir, "1.dat")
	if err := os.WriteFile(file, []byte("hello"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	e := NewEncrypt(false, nil)
	if err := e.Execute(nil, srv, label, workflow.NewBag(false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Error("disabled encrypt should leave the original file untouched")
	}
}

func TestEncryptEnabledReplacesFileWithEnc(t *testing.T) {
	root := t.TempDir()
	label := "20210101120000"
	dataDir := filepath.Join(root, label, "data")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}
	file := filepath.Join(dataDir, "1.dat")
	if err := os.WriteFile(file, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	srv := server.New("pg1", "localhost", 5432, "postgres", root, filepath.Join(root, "wal"))
	key := make([]byte, 32)
	e := NewEncrypt(true, key)
	if err := e.Execute(nil, srv, label, workflow.NewBag(false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("original file should have been removed after encryption")
	}
	if _, err := os.Stat(file + ".enc"); err != nil {
		t.Error("expected an .enc file after encryption")
	}
}
