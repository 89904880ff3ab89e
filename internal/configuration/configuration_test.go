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

package configuration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pgsentinel/pgsentinel/pkg/backup"
)

func writeConfig(contents string) string {
	dir, err := os.MkdirTemp("", "pgsentinel-config-*")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "pgsentinel.yaml")
	Expect(os.WriteFile(path, []byte(contents), 0o600)).To(Succeed())
	return path
}

var _ = Describe("Configuration loading", func() {
	It("fills in engine defaults when the file sets nothing global", func() {
		path := writeConfig(`
servers:
  - name: pg1
    host: localhost
    port: 5432
    backupRoot: /var/lib/pgsentinel/pg1/backup
`)
		config, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.EffectiveWorkers()).To(Equal(DefaultWorkers))
		Expect(config.Global.HashAlgorithm).To(Equal(string(DefaultHashAlgorithm)))
		Expect(config.Global.RetentionKeepCount).To(Equal(DefaultRetentionKeepCount))
	})

	It("rejects a server entry with no name", func() {
		path := writeConfig(`
servers:
  - host: localhost
    backupRoot: /var/lib/pgsentinel/pg1/backup
`)
		_, err := Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("rejects duplicate server names", func() {
		path := writeConfig(`
servers:
  - name: pg1
    backupRoot: /backup/pg1
  - name: pg1
    backupRoot: /backup/pg1-again
`)
		_, err := Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a server entry with no backupRoot", func() {
		path := writeConfig(`
servers:
  - name: pg1
    host: localhost
`)
		_, err := Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("parses a retention window expressed as a duration string", func() {
		path := writeConfig(`
global:
  retentionMaxAge: 168h
servers:
  - name: pg1
    backupRoot: /backup/pg1
`)
		config, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.Global.RetentionMaxAge.Duration.Hours()).To(Equal(168.0))
	})
})

var _ = Describe("BuildServers", func() {
	It("applies global defaults to a server entry with no overrides", func() {
		config := newDefaultConfig()
		config.Global.HashAlgorithm = string(backup.HashSHA512)
		config.Global.CompressBackups = true
		config.Servers = []ServerEntry{
			{Name: "pg1", Host: "localhost", Port: 5432, BackupRoot: "/backup/pg1", WALRoot: "/wal/pg1"},
		}

		servers, err := config.BuildServers()
		Expect(err).NotTo(HaveOccurred())
		Expect(servers).To(HaveLen(1))
		Expect(servers[0].HashAlgorithm).To(Equal(backup.HashSHA512))
		Expect(servers[0].CompressBackups).To(BeTrue())
	})

	It("lets a server entry override the global hash algorithm", func() {
		config := newDefaultConfig()
		override := string(backup.HashCRC32C)
		config.Servers = []ServerEntry{
			{Name: "pg1", BackupRoot: "/backup/pg1", HashAlgorithm: &override},
		}

		servers, err := config.BuildServers()
		Expect(err).NotTo(HaveOccurred())
		Expect(servers[0].HashAlgorithm).To(Equal(backup.HashCRC32C))
	})

	It("requires an encryption key file when a server enables encryption", func() {
		enabled := true
		config := newDefaultConfig()
		config.Servers = []ServerEntry{
			{Name: "pg1", BackupRoot: "/backup/pg1", EncryptBackups: &enabled},
		}

		_, err := config.BuildServers()
		Expect(err).To(HaveOccurred())
	})

	It("reads the encryption key file when set", func() {
		dir, err := os.MkdirTemp("", "pgsentinel-key-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		keyPath := filepath.Join(dir, "key")
		Expect(os.WriteFile(keyPath, []byte("0123456789abcdef0123456789abcdef"), 0o600)).To(Succeed())

		enabled := true
		config := newDefaultConfig()
		config.Servers = []ServerEntry{
			{Name: "pg1", BackupRoot: "/backup/pg1", EncryptBackups: &enabled, EncryptionKeyFile: keyPath},
		}

		servers, err := config.BuildServers()
		Expect(err).NotTo(HaveOccurred())
		Expect(servers[0].EncryptionKey).NotTo(BeEmpty())
	})
})
