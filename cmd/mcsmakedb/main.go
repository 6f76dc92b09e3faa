// Command mcsmakedb initializes a fresh meta-data store from a node's
// JSON configuration before mcs-nodeserver is first started against it:
// it creates the files backend's directory, or opens the mysql/postgres
// backend once so its CREATE TABLE IF NOT EXISTS runs, the makedb
// counterpart the iov_backend CLI convention names alongside its
// read/write/export tools.
package main

import (
	"log"
	"os"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: mcsmakedb <configuration_file>")
	}

	cfg, err := nodecli.LoadConfig(os.Args[1])
	if err != nil {
		log.Fatalf("mcsmakedb: loading config: %v", err)
	}

	switch cfg.Metadata.Backend {
	case "files":
		if err := os.MkdirAll(cfg.Metadata.DSN, 0o750); err != nil {
			log.Fatalf("mcsmakedb: creating %s: %v", cfg.Metadata.DSN, err)
		}
	case "mysql":
		backend, err := metadata.NewMySQLBackend(cfg.Metadata.DSN)
		if err != nil {
			log.Fatalf("mcsmakedb: %v", err)
		}
		backend.Close()
	case "postgres":
		backend, err := metadata.NewPostgresBackend(cfg.Metadata.DSN)
		if err != nil {
			log.Fatalf("mcsmakedb: %v", err)
		}
		backend.Close()
	default:
		log.Fatalf("mcsmakedb: unknown metadata backend %q", cfg.Metadata.Backend)
	}

	log.Printf("meta-data store for workspace %s ready", cfg.Metadata.WorkspaceID)
}
