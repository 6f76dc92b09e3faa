// Command mcscat reads a range out of an existing collection and streams
// it to stdout, the iov_backend read-path counterpart to its write-path
// sibling mcswrite. Argument order follows the iov_backend CLI
// convention: configuration_file collection_id range (the meta-data
// database lives inside the configuration file's "metadata" section
// rather than as its own positional argument).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/collection"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/rangeliteral"
)

func main() {
	if len(os.Args) != 4 {
		log.Fatalf("usage: mcscat <configuration_file> <collection_id> <range>")
	}
	configFile, collectionID, rangeArg := os.Args[1], os.Args[2], os.Args[3]

	r, err := rangeliteral.Parse(rangeArg)
	if err != nil {
		log.Fatalf("mcscat: %v", err)
	}

	cfg, err := nodecli.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("mcscat: loading config: %v", err)
	}
	node, err := nodecli.OpenNode(cfg)
	if err != nil {
		log.Fatalf("mcscat: building collection engine: %v", err)
	}
	defer node.Close()

	candidates, err := nodecli.Candidates(cfg)
	if err != nil {
		log.Fatalf("mcscat: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coll, err := collection.OpenCollection(ctx, node, collectionID, candidates)
	if err != nil {
		log.Fatalf("mcscat: opening collection %s: %v", collectionID, err)
	}

	buf := make([]byte, r.Length)
	if _, err := coll.Read(ctx, buf, r.Begin); err != nil {
		log.Fatalf("mcscat: read: %v", err)
	}
	if _, err := os.Stdout.Write(buf); err != nil {
		fmt.Fprintln(os.Stderr, "mcscat: writing stdout:", err)
		os.Exit(1)
	}
}
