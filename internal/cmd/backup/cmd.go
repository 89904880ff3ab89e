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

// Package backup implements the "backup" client subcommand.
package backup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgsentinel/pgsentinel/internal/cmd/common"
	"github.com/pgsentinel/pgsentinel/pkg/client"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
)

// NewCmd creates the "backup" cobra command.
func NewCmd() *cobra.Command {
	var sock common.SocketFlags

	cmd := &cobra.Command{
		Use:   "backup [server]",
		Short: "Trigger a full base backup of a managed server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := client.Do(cmd.Context(), sock.Network, sock.Address,
				protocol.Header{Command: protocol.CommandBackup, Version: common.ProtocolVersion},
				protocol.Request{Server: args[0]})
			if err != nil {
				log.Error(err, "backup request failed")
				return err
			}
			if !reply.Outcome.Status {
				return fmt.Errorf("backup failed: %s", reply.Outcome.Error)
			}
			fmt.Printf("backup %s created for server %s (size %d bytes)\n",
				reply.Response.Backup, reply.Response.Server, reply.Response.BackupSize)
			return nil
		},
	}

	sock.AddFlags(cmd.Flags())
	return cmd
}
