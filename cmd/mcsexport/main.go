// Command mcsexport streams a collection range out to a file, optionally
// compressing it in flight — the teacher's own scm/streams.go wires xz
// and gzip onto arbitrary io.Reader streams the same way, generalized
// here to a -compress flag choosing between the two compressors the
// domain stack carries (xz and lz4) instead of a fixed pipeline.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/collection"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/rangeliteral"
)

func main() {
	compress := flag.String("compress", "none", "compression to apply to the exported bytes: none, lz4, xz")
	out := flag.String("out", "", "output file path (defaults to stdout)")
	flag.Parse()
	args := flag.Args()
	if len(args) != 3 {
		log.Fatalf("usage: mcsexport [-compress none|lz4|xz] [-out file] <configuration_file> <collection_id> <range>")
	}
	configFile, collectionID, rangeArg := args[0], args[1], args[2]

	r, err := rangeliteral.Parse(rangeArg)
	if err != nil {
		log.Fatalf("mcsexport: %v", err)
	}

	cfg, err := nodecli.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("mcsexport: loading config: %v", err)
	}
	node, err := nodecli.OpenNode(cfg)
	if err != nil {
		log.Fatalf("mcsexport: building collection engine: %v", err)
	}
	defer node.Close()

	candidates, err := nodecli.Candidates(cfg)
	if err != nil {
		log.Fatalf("mcsexport: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	coll, err := collection.OpenCollection(ctx, node, collectionID, candidates)
	if err != nil {
		log.Fatalf("mcsexport: opening collection %s: %v", collectionID, err)
	}

	buf := make([]byte, r.Length)
	if _, err := coll.Read(ctx, buf, r.Begin); err != nil {
		log.Fatalf("mcsexport: read: %v", err)
	}

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("mcsexport: creating %s: %v", *out, err)
		}
		defer f.Close()
		dst = f
	}

	if err := writeCompressed(dst, buf, *compress); err != nil {
		log.Fatalf("mcsexport: %v", err)
	}
}

// writeCompressed copies buf to dst through the chosen compressor, or
// uncompressed when kind is "none".
func writeCompressed(dst io.Writer, buf []byte, kind string) error {
	bw := bufio.NewWriterSize(dst, 16*1024)
	switch kind {
	case "none":
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	case "lz4":
		zw := lz4.NewWriter(bw)
		if _, err := zw.Write(buf); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	case "xz":
		zw, err := xz.NewWriter(bw)
		if err != nil {
			return err
		}
		if _, err := zw.Write(buf); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	default:
		return &unknownCompressorError{kind}
	}
	return bw.Flush()
}

type unknownCompressorError struct{ kind string }

func (e *unknownCompressorError) Error() string {
	return "unknown compressor: " + e.kind
}
