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

// Package client is the management-socket client used by the CLI
// subcommands (backup, delete, restore, verify, archive, list-backup)
// to talk to a running supervisor, mirroring the way the teacher's
// internal/cmd/manager/backup issues a one-shot request against its
// already-running manager process and prints the response.
package client

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/pgsentinel/pgsentinel/pkg/protocol"
)

// Do dials network/address, sends req for the given command and
// server, and returns the parsed reply. One request per connection,
// matching the supervisor's per-connection request loop.
func Do(ctx context.Context, network, address string, header protocol.Header, req protocol.Request) (protocol.Message, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("client: dialing %s %s: %w", network, address, err)
	}
	defer conn.Close()

	if header.Originator == "" {
		header.Originator = uuid.NewString()
	}

	body, err := protocol.Marshal(protocol.Message{Header: header, Request: req})
	if err != nil {
		return protocol.Message{}, fmt.Errorf("client: marshaling request: %w", err)
	}
	if err := protocol.WriteEnvelope(conn, protocol.NewEnvelope(body)); err != nil {
		return protocol.Message{}, fmt.Errorf("client: writing request: %w", err)
	}

	env, err := protocol.ReadEnvelope(conn)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("client: reading response: %w", err)
	}

	reply, err := protocol.Unmarshal(env.Body)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("client: parsing response: %w", err)
	}
	return reply, nil
}
