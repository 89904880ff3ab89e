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
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watch", func() {
	It("reloads and reports the new configuration when the file changes", func() {
		path := writeConfig(`
servers:
  - name: pg1
    backupRoot: /backup/pg1
`)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloaded := make(chan *Data, 1)
		Expect(Watch(ctx, path, func(d *Data) { reloaded <- d })).To(Succeed())

		Expect(os.WriteFile(path, []byte(`
servers:
  - name: pg1
    backupRoot: /backup/pg1
  - name: pg2
    backupRoot: /backup/pg2
`), 0o600)).To(Succeed())

		Eventually(reloaded, 5*time.Second).Should(Receive(
			WithTransform(func(d *Data) int { return len(d.Servers) }, Equal(2)),
		))
	})
})
