package server

import (
	"context"
	"testing"
	"time"
)

func TestPQControlConnectorProbeFailsAgainstUnreachableHost(t *testing.T) {
	srv := New("pg1", "127.0.0.1", 1, "postgres", t.TempDir(), t.TempDir())
	srv.SetValid(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connector := &PQControlConnector{}
	if err := connector.Probe(ctx, srv); err == nil {
		t.Fatal("expected probe against port 1 to fail")
	}
	if srv.Valid() {
		t.Error("expected Valid to be cleared after a failed probe")
	}
}
