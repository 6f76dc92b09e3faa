// Command mcscollection creates or deletes a collection: collection_open
// and collection_delete (§4.5.1, §4.5.5) exposed as a one-shot CLI
// instead of an RPC a long-lived client would issue.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/collection"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/config"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
)

func main() {
	sizeMax := flag.String("size-max", "unlimited", "collection's maximum size, or \"unlimited\"")
	flag.Parse()
	args := flag.Args()
	if len(args) != 3 {
		log.Fatalf("usage: mcscollection [-size-max N] <configuration_file> <create|delete> <collection_id>")
	}
	configFile, verb, collectionID := args[0], args[1], args[2]

	cfg, err := nodecli.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("mcscollection: loading config: %v", err)
	}
	node, err := nodecli.OpenNode(cfg)
	if err != nil {
		log.Fatalf("mcscollection: building collection engine: %v", err)
	}
	defer node.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch verb {
	case "create":
		candidates, err := nodecli.Candidates(cfg)
		if err != nil {
			log.Fatalf("mcscollection: %v", err)
		}
		max, err := config.ParseSize(*sizeMax)
		if err != nil {
			log.Fatalf("mcscollection: %v", err)
		}
		_, err = collection.CreateCollection(ctx, node, collectionID, metadata.CollectionInformation{SizeMax: max}, candidates)
		if err != nil {
			log.Fatalf("mcscollection: create %s: %v", collectionID, err)
		}
		log.Printf("collection %s created", collectionID)
	case "delete":
		candidates, err := nodecli.Candidates(cfg)
		if err != nil {
			log.Fatalf("mcscollection: %v", err)
		}
		coll, err := collection.OpenCollection(ctx, node, collectionID, candidates)
		if err != nil {
			log.Fatalf("mcscollection: opening %s: %v", collectionID, err)
		}
		if err := coll.Delete(ctx); err != nil {
			log.Fatalf("mcscollection: delete %s: %v", collectionID, err)
		}
		log.Printf("collection %s deleted", collectionID)
	default:
		log.Fatalf("mcscollection: unknown verb %q, want create or delete", verb)
	}
}
