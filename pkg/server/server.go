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

// Package server holds the configured-database-endpoint record and the
// per-operation-kind busy gate that serializes access to it.
package server

import (
	"sync/atomic"
	"time"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
)

// Kind identifies the class of operation a Gate serializes.
type Kind int

const (
	KindBackup Kind = iota
	KindRestore
	KindArchive
	KindVerify
	KindDelete
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindBackup:
		return "backup"
	case KindRestore:
		return "restore"
	case KindArchive:
		return "archive"
	case KindVerify:
		return "verify"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Server is a configured database endpoint: connection parameters,
// validity state, and the atomic busy flags that serialize concurrent
// operations against it (spec.md §3, "Server").
type Server struct {
	Name string

	Host string
	Port int
	User string

	BackupRoot string
	WALRoot    string

	// WALSegmentSize overrides walseg.DefaultSegmentSize when non-zero.
	WALSegmentSize int64

	// RateLimit, in bytes/second; zero means unlimited.
	RateLimit int64
	// Workers overrides the global worker pool size; zero defers to
	// the global setting, and a pool size of zero means synchronous.
	Workers int

	// ClusterMember marks this server as participating in the
	// peer-to-peer clustering handshake (out of scope for the core,
	// spec.md §1). It is carried from the configuration; no stage or
	// operation reads it.
	ClusterMember bool

	// HashAlgorithm selects the manifest digest algorithm the hash and
	// verify stages use for this server (spec.md §4.3).
	HashAlgorithm backup.HashAlgorithm

	// CompressBackups and EncryptBackups gate the optional compress and
	// encrypt stages (SPEC_FULL.md §4.3); EncryptionKey is the AES key
	// used when EncryptBackups is set.
	CompressBackups bool
	EncryptBackups  bool
	EncryptionKey   []byte

	// RetentionKeepCount and RetentionMaxAge parameterize the retention
	// stage's count- and age-based sweep policy; zero disables the
	// respective bound.
	RetentionKeepCount int
	RetentionMaxAge    time.Duration

	valid        atomic.Bool
	walStreaming atomic.Bool

	gates [kindCount]atomic.Bool
}

// New builds a Server record with the given name and roots. Validity
// and WAL-streaming state default to false until SetValid/
// SetWALStreaming are called by whatever probes the live connection.
func New(name, host string, port int, user, backupRoot, walRoot string) *Server {
	return &Server{
		Name:          name,
		Host:          host,
		Port:          port,
		User:          user,
		BackupRoot:    backupRoot,
		WALRoot:       walRoot,
		HashAlgorithm: backup.HashSHA256,
	}
}

// Valid reports whether the server is currently configured correctly
// and reachable.
func (s *Server) Valid() bool {
	return s.valid.Load()
}

// SetValid updates the validity flag.
func (s *Server) SetValid(v bool) {
	s.valid.Store(v)
}

// WALStreaming reports whether WAL is currently being streamed for
// this server.
func (s *Server) WALStreaming() bool {
	return s.walStreaming.Load()
}

// SetWALStreaming updates the WAL-streaming flag.
func (s *Server) SetWALStreaming(v bool) {
	s.walStreaming.Store(v)
}

// TryAcquire attempts to CAS the busy flag for kind from false to
// true, reporting success. Only one operation of a given kind may be
// active for a server at a time (spec.md §3 invariant, §4.9).
func (s *Server) TryAcquire(kind Kind) bool {
	return s.gates[kind].CompareAndSwap(false, true)
}

// Release clears the busy flag for kind. Safe to call from any exit
// path, including ones where TryAcquire was never called successfully.
func (s *Server) Release(kind Kind) {
	s.gates[kind].Store(false)
}

// Busy reports whether an operation of kind is currently active,
// without acquiring it.
func (s *Server) Busy(kind Kind) bool {
	return s.gates[kind].Load()
}

// EffectiveWorkers resolves the worker pool size to use for an
// operation against this server: the per-server override if set,
// otherwise globalWorkers.
func (s *Server) EffectiveWorkers(globalWorkers int) int {
	if s.Workers != 0 {
		return s.Workers
	}
	return globalWorkers
}
