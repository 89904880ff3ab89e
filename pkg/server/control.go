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

package server

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" sql.DB driver used by PQControlConnector.
	_ "github.com/lib/pq"
)

// ControlConnector probes a server's live control connection to
// determine whether it is reachable and currently streaming WAL, the
// capability backup/restore/archive preconditions gate on (spec.md §3,
// §4.9).
type ControlConnector interface {
	Probe(ctx context.Context, srv *Server) error
}

// PQControlConnector is the lib/pq-backed ControlConnector: it opens a
// control connection and checks pg_is_in_recovery to decide whether
// the server is a streaming primary.
type PQControlConnector struct {
	SSLMode string
}

// Probe opens a short-lived connection to srv and updates its Valid
// and WALStreaming flags accordingly.
func (c *PQControlConnector) Probe(ctx context.Context, srv *Server) error {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s sslmode=%s connect_timeout=5",
		srv.Host, srv.Port, srv.User, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		srv.SetValid(false)
		return fmt.Errorf("control: opening connection to %s: %w", srv.Name, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		srv.SetValid(false)
		srv.SetWALStreaming(false)
		return fmt.Errorf("control: pinging %s: %w", srv.Name, err)
	}

	var inRecovery bool
	if err := db.QueryRowContext(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		srv.SetValid(false)
		return fmt.Errorf("control: querying recovery state of %s: %w", srv.Name, err)
	}

	srv.SetValid(true)
	srv.SetWALStreaming(!inRecovery)
	return nil
}
