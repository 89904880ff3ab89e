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

// Package common holds the management-socket flags shared by every
// client subcommand (backup, delete, restore, verify, archive,
// list-backup), the way the teacher's log.Flags is shared across its
// own internal/cmd/manager/* subcommands.
package common

import (
	"github.com/spf13/pflag"
)

// ProtocolVersion is stamped into every outgoing Header.Version.
const ProtocolVersion = "1"

// SocketFlags carries the network/address pair a client subcommand
// dials to reach the running supervisor.
type SocketFlags struct {
	Network string
	Address string
}

// AddFlags registers --socket-network and --socket-address on fs.
func (f *SocketFlags) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Network, "socket-network", "unix", "network used to dial the management socket (unix or tcp)")
	fs.StringVar(&f.Address, "socket-address", "/var/run/pgsentinel/pgsentinel.sock",
		"address of the management socket")
}
