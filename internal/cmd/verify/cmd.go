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

// Package verify implements the "verify" client subcommand.
package verify

import (
	"fmt"

	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"

	"github.com/pgsentinel/pgsentinel/internal/cmd/common"
	"github.com/pgsentinel/pgsentinel/pkg/client"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
)

// NewCmd creates the "verify" cobra command.
func NewCmd() *cobra.Command {
	var sock common.SocketFlags
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [server] [backup]",
		Short: "Re-hash a backup's manifest and report mismatches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := protocol.FilesFailed
			if all {
				files = protocol.FilesAll
			}

			reply, err := client.Do(cmd.Context(), sock.Network, sock.Address,
				protocol.Header{Command: protocol.CommandVerify, Version: common.ProtocolVersion},
				protocol.Request{Server: args[0], Backup: args[1], Files: files})
			if err != nil {
				log.Error(err, "verify request failed")
				return err
			}
			if !reply.Outcome.Status {
				return fmt.Errorf("verify failed: %s", reply.Outcome.Error)
			}

			rows := reply.Response.Failed
			if all {
				rows = reply.Response.All
			}
			if len(rows) == 0 {
				fmt.Println(aurora.Green("all files verified OK"))
				return nil
			}
			for _, r := range rows {
				fmt.Printf("%s: expected %s, calculated %s\n",
					aurora.Red(r.Filename), r.Original, r.Calculated)
			}
			return nil
		},
	}

	sock.AddFlags(cmd.Flags())
	cmd.Flags().BoolVar(&all, "all", false, "report every file, not only mismatches")
	return cmd
}
