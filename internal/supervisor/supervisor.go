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

// Package supervisor hosts the management listener: it accepts framed
// protocol.Message requests and dispatches each to a worker goroutine
// that runs the requested pkg/operation driver and reports back,
// exactly once per connection's request. This is the goroutine-per-
// operation rendering of the teacher's fork-per-operation model named
// in spec.md §9's Design Notes ("A re-implementation may keep
// fork-per-op, or switch to one process with task supervision").
package supervisor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/metrics"
	"github.com/pgsentinel/pgsentinel/pkg/operation"
	"github.com/pgsentinel/pgsentinel/pkg/protocol"
	"github.com/pgsentinel/pgsentinel/pkg/server"
)

// Supervisor owns the set of managed servers and the global worker
// pool size every operation falls back to absent a per-server
// override.
type Supervisor struct {
	mu      sync.RWMutex
	servers map[string]*server.Server

	GlobalWorkers int
	Metrics       *metrics.Registry
}

// New builds a Supervisor over the given servers.
func New(servers []*server.Server, globalWorkers int, m *metrics.Registry) *Supervisor {
	s := &Supervisor{
		servers:       make(map[string]*server.Server, len(servers)),
		GlobalWorkers: globalWorkers,
		Metrics:       m,
	}
	for _, srv := range servers {
		s.servers[srv.Name] = srv
	}
	return s
}

// Server looks up a managed server by name.
func (s *Supervisor) Server(name string) (*server.Server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.servers[name]
	return srv, ok
}

// SetServers atomically replaces the managed server set, used by a
// configuration.Watch reload callback.
func (s *Supervisor) SetServers(servers []*server.Server) {
	next := make(map[string]*server.Server, len(servers))
	for _, srv := range servers {
		next[srv.Name] = srv
	}
	s.mu.Lock()
	s.servers = next
	s.mu.Unlock()
}

// Serve accepts connections on ln until ctx is canceled, handling each
// on its own goroutine. It returns once ln.Accept starts failing
// because ctx was canceled and ln was closed by the caller.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.FromContext(ctx).WithName("supervisor")

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			default:
			}
			logger.Error(err, "accept failed")
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn reads one or more framed requests off conn, dispatching
// each to a worker goroutine and writing back the framed response,
// until the peer closes the connection or a read/write fails.
func (s *Supervisor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := log.FromContext(ctx).WithName("supervisor")

	for {
		env, err := protocol.ReadEnvelope(conn)
		if err != nil {
			return
		}

		msg, err := protocol.Unmarshal(env.Body)
		if err != nil {
			logger.Error(err, "bad payload")
			s.writeOutcome(conn, msg.Header, protocol.ErrBadPayload)
			return
		}

		done := make(chan protocol.Message, 1)
		go s.dispatch(ctx, msg, done)

		select {
		case reply := <-done:
			if err := s.writeMessage(conn, reply); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// dispatch runs the operation named by msg.Header.Command on its own
// goroutine — the "one worker per inbound command" idiom replacing the
// teacher's fork-per-operation child process — and reports the result
// back on done.
func (s *Supervisor) dispatch(ctx context.Context, msg protocol.Message, done chan<- protocol.Message) {
	start := time.Now()
	reply := msg
	if reply.Header.Originator == "" {
		reply.Header.Originator = uuid.NewString()
	}

	srv, ok := s.Server(msg.Request.Server)
	if !ok {
		reply.Outcome = protocol.Outcome{Status: false, Error: protocol.ErrUnknownServer}
		done <- reply
		return
	}

	var result operation.Result
	switch msg.Header.Command {
	case protocol.CommandBackup:
		result = operation.Backup(ctx, srv, s.GlobalWorkers)
	case protocol.CommandDelete:
		result = operation.Delete(ctx, srv, msg.Request.Backup, s.GlobalWorkers)
	case protocol.CommandRestore:
		result = operation.Restore(ctx, srv, msg.Request.Backup, msg.Request.Directory, s.GlobalWorkers)
	case protocol.CommandVerify:
		result = operation.Verify(ctx, srv, msg.Request.Backup, msg.Request.Files, s.GlobalWorkers)
	case protocol.CommandArchive:
		result = operation.Archive(ctx, srv, msg.Request.Backup, msg.Request.Directory, s.GlobalWorkers)
	case protocol.CommandListBackup:
		result = operation.List(ctx, srv)
	default:
		reply.Outcome = protocol.Outcome{Status: false, Error: protocol.ErrUnknownCommand}
		done <- reply
		return
	}

	reply.Response = result.Response
	reply.Outcome = result.Outcome

	if s.Metrics != nil {
		s.Metrics.ObserveOperation(srv.Name, string(msg.Header.Command), result.Outcome.Status, time.Since(start))
	}

	done <- reply
}

func (s *Supervisor) writeOutcome(conn net.Conn, header protocol.Header, code protocol.ErrorCode) {
	msg := protocol.Message{Header: header, Outcome: protocol.Outcome{Status: false, Error: code}}
	_ = s.writeMessage(conn, msg)
}

func (s *Supervisor) writeMessage(conn net.Conn, msg protocol.Message) error {
	body, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("supervisor: marshaling response: %w", err)
	}
	return protocol.WriteEnvelope(conn, protocol.NewEnvelope(body))
}
