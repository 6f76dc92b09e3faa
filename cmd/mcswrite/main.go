// Command mcswrite reads stdin and writes it into a collection at a
// given range, growing an Unknown-size_max collection if the write
// reaches past its current end. Argument order mirrors mcscat's:
// configuration_file collection_id range.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/collection"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/rangeliteral"
)

func main() {
	if len(os.Args) != 4 {
		log.Fatalf("usage: mcswrite <configuration_file> <collection_id> <range>")
	}
	configFile, collectionID, rangeArg := os.Args[1], os.Args[2], os.Args[3]

	r, err := rangeliteral.Parse(rangeArg)
	if err != nil {
		log.Fatalf("mcswrite: %v", err)
	}

	cfg, err := nodecli.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("mcswrite: loading config: %v", err)
	}
	node, err := nodecli.OpenNode(cfg)
	if err != nil {
		log.Fatalf("mcswrite: building collection engine: %v", err)
	}
	defer node.Close()

	candidates, err := nodecli.Candidates(cfg)
	if err != nil {
		log.Fatalf("mcswrite: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coll, err := collection.OpenCollection(ctx, node, collectionID, candidates)
	if err != nil {
		log.Fatalf("mcswrite: opening collection %s: %v", collectionID, err)
	}

	buf := make([]byte, r.Length)
	if _, err := io.ReadFull(os.Stdin, buf); err != nil {
		log.Fatalf("mcswrite: reading stdin: %v", err)
	}
	if _, err := coll.Write(ctx, buf, r.Begin, candidates); err != nil {
		log.Fatalf("mcswrite: write: %v", err)
	}
}
