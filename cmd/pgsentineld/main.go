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

/*
The pgsentineld command is the single entrypoint for both the
supervisor ("serve") and the one-shot client subcommands (backup,
delete, restore, verify, archive, list-backup) that talk to it over
the management socket.
*/
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pgsentinel/pgsentinel/internal/cmd/archive"
	"github.com/pgsentinel/pgsentinel/internal/cmd/backup"
	"github.com/pgsentinel/pgsentinel/internal/cmd/delete"
	"github.com/pgsentinel/pgsentinel/internal/cmd/keygen"
	"github.com/pgsentinel/pgsentinel/internal/cmd/listbackup"
	"github.com/pgsentinel/pgsentinel/internal/cmd/restore"
	"github.com/pgsentinel/pgsentinel/internal/cmd/serve"
	"github.com/pgsentinel/pgsentinel/internal/cmd/verify"
)

func main() {
	cmd := &cobra.Command{
		Use:          "pgsentineld [command]",
		SilenceUsage: true,
	}

	cmd.AddCommand(serve.NewCmd())
	cmd.AddCommand(backup.NewCmd())
	cmd.AddCommand(delete.NewCmd())
	cmd.AddCommand(restore.NewCmd())
	cmd.AddCommand(verify.NewCmd())
	cmd.AddCommand(archive.NewCmd())
	cmd.AddCommand(listbackup.NewCmd())
	cmd.AddCommand(keygen.NewCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
