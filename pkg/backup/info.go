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

// Package backup models a single backup: its metadata store
// (backup.info) and the catalog abstraction operation drivers use to
// resolve point-in-time recovery targets across a server's backups.
package backup

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
)

// Validity is the tri-state validity of a backup (spec.md §3).
type Validity int

const (
	ValidityUnknown Validity = iota
	ValidityInvalid
	ValidityValid
)

func (v Validity) String() string {
	switch v {
	case ValidityInvalid:
		return "invalid"
	case ValidityValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Known backup.info keys (spec.md §4.6).
const (
	KeyBackupSize      = "BACKUP"
	KeyElapsed         = "ELAPSED"
	KeyLinkingElapsed  = "LINKING_ELAPSED"
	KeyKeep            = "KEEP"
	KeyValid           = "VALID"
	KeyWAL             = "WAL"
	KeyHashAlgorithm   = "HASH_ALGORITHM"
	KeyMajorVersion    = "MAJOR_VERSION"
	KeyComments        = "COMMENTS"
	KeyRestoreSize     = "RESTORE_SIZE"
)

// HashAlgorithm names a supported manifest digest algorithm (spec.md
// §4.3, verify stage).
type HashAlgorithm string

const (
	HashSHA224  HashAlgorithm = "sha224"
	HashSHA256  HashAlgorithm = "sha256"
	HashSHA384  HashAlgorithm = "sha384"
	HashSHA512  HashAlgorithm = "sha512"
	HashCRC32C  HashAlgorithm = "crc32c"
)

// Info is the in-memory form of a backup.info file: a named snapshot's
// metadata (spec.md §3, "Backup").
type Info struct {
	Label string

	Valid Validity
	Keep  bool

	MajorVersion semver.Version

	BackupSize  uint64
	RestoreSize uint64

	StartWAL      string
	HashAlgorithm HashAlgorithm

	Elapsed        time.Duration
	LinkingElapsed time.Duration

	Comments string

	// raw keeps any key unrecognized by this reader for forward
	// compatibility, per spec.md §4.6 "readers tolerate unknown keys".
	raw map[string]string
}

// New returns an empty Info for a freshly-allocated label.
func New(label string) *Info {
	return &Info{
		Label: label,
		raw:   make(map[string]string),
	}
}

// SetUint64 sets an unsigned integer key.
func (i *Info) SetUint64(key string, value uint64) {
	i.ensureRaw()
	i.raw[key] = strconv.FormatUint(value, 10)
}

// SetFloat64 sets a floating point key.
func (i *Info) SetFloat64(key string, value float64) {
	i.ensureRaw()
	i.raw[key] = strconv.FormatFloat(value, 'f', -1, 64)
}

// SetString sets a string key.
func (i *Info) SetString(key, value string) {
	i.ensureRaw()
	i.raw[key] = value
}

// SetBool sets a boolean key.
func (i *Info) SetBool(key string, value bool) {
	i.ensureRaw()
	i.raw[key] = strconv.FormatBool(value)
}

func (i *Info) ensureRaw() {
	if i.raw == nil {
		i.raw = make(map[string]string)
	}
}

// Load parses a backup.info file at path into an Info, inferring the
// label from the parent directory name.
func Load(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := New(labelFromInfoPath(path))

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		info.raw[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	info.applyKnownKeys()
	return info, nil
}

func labelFromInfoPath(path string) string {
	dir := strings.TrimSuffix(path, "/backup.info")
	idx := strings.LastIndex(dir, "/")
	if idx == -1 {
		return dir
	}
	return dir[idx+1:]
}

func (i *Info) applyKnownKeys() {
	if v, ok := i.raw[KeyValid]; ok {
		switch v {
		case "true":
			i.Valid = ValidityValid
		case "false":
			i.Valid = ValidityInvalid
		default:
			i.Valid = ValidityUnknown
		}
	}
	if v, ok := i.raw[KeyKeep]; ok {
		i.Keep = v == "true"
	}
	if v, ok := i.raw[KeyMajorVersion]; ok {
		if parsed, err := semver.Parse(v); err == nil {
			i.MajorVersion = parsed
		}
	}
	if v, ok := i.raw[KeyBackupSize]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			i.BackupSize = n
		}
	}
	if v, ok := i.raw[KeyRestoreSize]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			i.RestoreSize = n
		}
	}
	if v, ok := i.raw[KeyWAL]; ok {
		i.StartWAL = v
	}
	if v, ok := i.raw[KeyHashAlgorithm]; ok {
		i.HashAlgorithm = HashAlgorithm(v)
	}
	if v, ok := i.raw[KeyElapsed]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			i.Elapsed = time.Duration(f * float64(time.Second))
		}
	}
	if v, ok := i.raw[KeyLinkingElapsed]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			i.LinkingElapsed = time.Duration(f * float64(time.Second))
		}
	}
	if v, ok := i.raw[KeyComments]; ok {
		i.Comments = v
	}
}

func (i *Info) syncKnownKeys() {
	i.ensureRaw()
	i.SetBool(KeyValid, i.Valid == ValidityValid)
	i.SetBool(KeyKeep, i.Keep)
	if i.MajorVersion.String() != "" && i.MajorVersion.String() != "0.0.0" {
		i.SetString(KeyMajorVersion, i.MajorVersion.String())
	}
	i.SetUint64(KeyBackupSize, i.BackupSize)
	i.SetUint64(KeyRestoreSize, i.RestoreSize)
	i.SetString(KeyWAL, i.StartWAL)
	i.SetString(KeyHashAlgorithm, string(i.HashAlgorithm))
	i.SetFloat64(KeyElapsed, i.Elapsed.Seconds())
	i.SetFloat64(KeyLinkingElapsed, i.LinkingElapsed.Seconds())
	i.SetString(KeyComments, i.Comments)
}

// Save writes the Info back to path as a backup.info file, rewriting
// the whole file (spec.md §4.6, "Writers are append-or-rewrite").
func (i *Info) Save(path string) error {
	i.syncKnownKeys()

	keys := make([]string, 0, len(i.raw))
	for k := range i.raw {
		keys = append(keys, k)
	}

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", k, i.raw[k])
	}

	return os.WriteFile(path, []byte(sb.String()), 0o600)
}
