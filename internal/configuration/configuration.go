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

// Package configuration loads the engine's on-disk configuration: a
// list of servers to manage plus the global settings that server
// entries may individually override. The file format and its grammar
// are an external collaborator (spec.md §1 names "the on-disk
// configuration file parser... specified interfaces only" as a
// Non-goal); this package only needs to turn that file into the
// pkg/server.Server values the rest of the engine drives, not
// reproduce the original parser's full grammar or diagnostics.
package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/server"
)

var configurationLog = log.WithName("configuration")

const (
	// DefaultWorkers is the global worker pool size used when neither
	// the file nor a server entry overrides it.
	DefaultWorkers = 4

	// DefaultHashAlgorithm is the manifest digest algorithm used when
	// neither the file nor a server entry overrides it.
	DefaultHashAlgorithm = backup.HashSHA256

	// DefaultRetentionKeepCount is the floor below which the retention
	// stage never sweeps a server's backups, absent an override.
	DefaultRetentionKeepCount = 3
)

// Duration wraps time.Duration so the config file can spell retention
// windows and similar settings as "168h" / "30m" instead of raw
// nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("configuration: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Global carries the engine-wide defaults every server entry may
// override individually.
type Global struct {
	Workers            int      `yaml:"workers"`
	LogLevel           string   `yaml:"logLevel"`
	LogDestination     string   `yaml:"logDestination"`
	HashAlgorithm      string   `yaml:"hashAlgorithm"`
	CompressBackups    bool     `yaml:"compressBackups"`
	EncryptBackups     bool     `yaml:"encryptBackups"`
	RetentionKeepCount int      `yaml:"retentionKeepCount"`
	RetentionMaxAge    Duration `yaml:"retentionMaxAge"`
}

// ServerEntry is one managed database endpoint, with optional per-server
// overrides of the Global defaults.
type ServerEntry struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	BackupRoot string `yaml:"backupRoot"`
	WALRoot    string `yaml:"walRoot"`

	WALSegmentSize int64 `yaml:"walSegmentSize"`
	RateLimit      int64 `yaml:"rateLimit"`

	ClusterMember bool `yaml:"clusterMember"`

	Workers            *int      `yaml:"workers"`
	HashAlgorithm      *string   `yaml:"hashAlgorithm"`
	CompressBackups    *bool     `yaml:"compressBackups"`
	EncryptBackups     *bool     `yaml:"encryptBackups"`
	EncryptionKeyFile  string    `yaml:"encryptionKeyFile"`
	RetentionKeepCount *int      `yaml:"retentionKeepCount"`
	RetentionMaxAge    *Duration `yaml:"retentionMaxAge"`
}

// PeerEntry is another node participating in the clustering handshake
// (spec.md §1, "peripheral to the core but documented for completeness").
type PeerEntry struct {
	ID   string `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ClusterSettings configures this process's own clustering identity and
// the peers it should expect to hear from.
type ClusterSettings struct {
	ID    string      `yaml:"id"`
	Peers []PeerEntry `yaml:"peers"`
}

// Data is the full on-disk configuration: global defaults, the server
// list, and optional clustering settings.
type Data struct {
	Global  Global          `yaml:"global"`
	Servers []ServerEntry   `yaml:"servers"`
	Cluster ClusterSettings `yaml:"cluster"`
}

// newDefaultConfig returns a Data populated with the engine's defaults,
// mirroring the shape (if not the field set) of the teacher's own
// newDefaultConfig.
func newDefaultConfig() *Data {
	return &Data{
		Global: Global{
			Workers:            DefaultWorkers,
			LogLevel:           log.DefaultLevelString,
			HashAlgorithm:      string(DefaultHashAlgorithm),
			RetentionKeepCount: DefaultRetentionKeepCount,
		},
	}
}

// Load reads and parses the configuration file at path, filling in
// engine defaults for anything the file omits.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configuration: reading %s: %w", path, err)
	}

	config := newDefaultConfig()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("configuration: parsing %s: %w", path, err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (d *Data) validate() error {
	seen := make(map[string]bool, len(d.Servers))
	for _, s := range d.Servers {
		if s.Name == "" {
			return fmt.Errorf("configuration: server entry missing name")
		}
		if seen[s.Name] {
			return fmt.Errorf("configuration: duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
		if s.BackupRoot == "" {
			return fmt.Errorf("configuration: server %q missing backupRoot", s.Name)
		}
	}
	return nil
}

// BuildServers materializes the configured server list as pkg/server.Server
// records with Global defaults and per-entry overrides resolved.
func (d *Data) BuildServers() ([]*server.Server, error) {
	out := make([]*server.Server, 0, len(d.Servers))
	for _, entry := range d.Servers {
		srv := server.New(entry.Name, entry.Host, entry.Port, entry.User, entry.BackupRoot, entry.WALRoot)
		srv.WALSegmentSize = entry.WALSegmentSize
		srv.RateLimit = entry.RateLimit
		srv.ClusterMember = entry.ClusterMember

		srv.HashAlgorithm = backup.HashAlgorithm(d.Global.HashAlgorithm)
		if entry.HashAlgorithm != nil {
			srv.HashAlgorithm = backup.HashAlgorithm(*entry.HashAlgorithm)
		}

		srv.Workers = 0
		if entry.Workers != nil {
			srv.Workers = *entry.Workers
		}

		srv.CompressBackups = d.Global.CompressBackups
		if entry.CompressBackups != nil {
			srv.CompressBackups = *entry.CompressBackups
		}

		srv.EncryptBackups = d.Global.EncryptBackups
		if entry.EncryptBackups != nil {
			srv.EncryptBackups = *entry.EncryptBackups
		}

		if srv.EncryptBackups {
			if entry.EncryptionKeyFile == "" {
				return nil, fmt.Errorf("configuration: server %q enables encryption but sets no encryptionKeyFile", entry.Name)
			}
			key, err := os.ReadFile(entry.EncryptionKeyFile)
			if err != nil {
				return nil, fmt.Errorf("configuration: server %q encryption key: %w", entry.Name, err)
			}
			srv.EncryptionKey = key
		}

		srv.RetentionKeepCount = d.Global.RetentionKeepCount
		if entry.RetentionKeepCount != nil {
			srv.RetentionKeepCount = *entry.RetentionKeepCount
		}

		srv.RetentionMaxAge = d.Global.RetentionMaxAge.Duration
		if entry.RetentionMaxAge != nil {
			srv.RetentionMaxAge = entry.RetentionMaxAge.Duration
		}

		out = append(out, srv)
	}
	return out, nil
}

// EffectiveWorkers resolves the global worker pool size, defaulting to
// DefaultWorkers when the file leaves it unset.
func (d *Data) EffectiveWorkers() int {
	if d.Global.Workers <= 0 {
		return DefaultWorkers
	}
	return d.Global.Workers
}

// Path returns the absolute path a relative configuration path resolves
// to, for logging and for the watcher below.
func Path(path string) (string, error) {
	return filepath.Abs(path)
}

func logReload(path string) {
	configurationLog.Info("reloaded configuration", "path", path)
}
