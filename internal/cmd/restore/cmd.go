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

// Package restore implements the "restore" client subcommand.
package restore

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgsentinel/pgsentinel/internal/cmd/common"
	"github.com/pgsentinel/pgsentinel/pkg/client"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
)

// NewCmd creates the "restore" cobra command.
func NewCmd() *cobra.Command {
	var sock common.SocketFlags

	cmd := &cobra.Command{
		Use:   "restore [server] [backup] [directory]",
		Short: "Restore a backup's data files into directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := client.Do(cmd.Context(), sock.Network, sock.Address,
				protocol.Header{Command: protocol.CommandRestore, Version: common.ProtocolVersion},
				protocol.Request{Server: args[0], Backup: args[1], Directory: args[2]})
			if err != nil {
				log.Error(err, "restore request failed")
				return err
			}
			if !reply.Outcome.Status {
				return fmt.Errorf("restore failed: %s", reply.Outcome.Error)
			}
			fmt.Printf("backup %s restored for server %s (%d bytes)\n",
				reply.Response.Backup, reply.Response.Server, reply.Response.RestoreSize)
			return nil
		},
	}

	sock.AddFlags(cmd.Flags())
	return cmd
}
