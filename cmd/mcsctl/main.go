// Command mcsctl is an interactive operator shell against a running MCS
// node: ad-hoc storage_create/segment_create/storage_size calls typed at
// a prompt, the same role the teacher's own main.go Repl() plays for its
// SQL engine, generalized here to MCS's control RPCs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/config"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

const newPrompt = "mcsctl> "

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "control endpoint to connect to")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c, err := transport.Dial(ctx, transport.Endpoint{Network: "tcp", Address: *addr})
	cancel()
	if err != nil {
		log.Fatalf("mcsctl: dial %s: %v", *addr, err)
	}
	defer c.Close()

	l, err := readline.NewEx(&readline.Config{
		Prompt:          newPrompt,
		HistoryFile:     ".mcsctl-history.tmp",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatalf("mcsctl: %v", err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			log.Fatalf("mcsctl: %v", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := dispatch(c, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// dispatch parses and executes one command line. Recognized verbs:
// storage_create <kind> <size>, storage_remove <id>, storage_size <id>,
// segment_create <storage_id> <size>, segment_remove <storage_id>
// <segment_id>.
func dispatch(c *transport.Client, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "storage_create":
		if len(fields) != 3 {
			return fmt.Errorf("usage: storage_create <kind> <size>")
		}
		kind, err := config.ImplementationKind(fields[1])
		if err != nil {
			return err
		}
		max, err := config.ParseSize(fields[2])
		if err != nil {
			return err
		}
		id, err := c.StorageCreate(kind, max, nil)
		if err != nil {
			return err
		}
		fmt.Println("storage id:", id)
	case "storage_remove":
		if len(fields) != 2 {
			return fmt.Errorf("usage: storage_remove <storage_id>")
		}
		id, err := parseStorageID(fields[1])
		if err != nil {
			return err
		}
		return c.StorageRemove(id)
	case "storage_size":
		if len(fields) != 2 {
			return fmt.Errorf("usage: storage_size <storage_id>")
		}
		id, err := parseStorageID(fields[1])
		if err != nil {
			return err
		}
		max, used, err := c.StorageSize(id)
		if err != nil {
			return err
		}
		if limit, bounded := max.Value(); bounded {
			fmt.Printf("max=%d used=%d\n", limit, used)
		} else {
			fmt.Printf("max=unlimited used=%d\n", used)
		}
	case "segment_create":
		if len(fields) != 3 {
			return fmt.Errorf("usage: segment_create <storage_id> <size>")
		}
		id, err := parseStorageID(fields[1])
		if err != nil {
			return err
		}
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return err
		}
		seg, err := c.SegmentCreate(id, domain.Size(size))
		if err != nil {
			return err
		}
		fmt.Println("segment id:", seg)
	case "segment_remove":
		if len(fields) != 3 {
			return fmt.Errorf("usage: segment_remove <storage_id> <segment_id>")
		}
		id, err := parseStorageID(fields[1])
		if err != nil {
			return err
		}
		seg, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return err
		}
		freed, err := c.SegmentRemove(id, domain.SegmentId(seg))
		if err != nil {
			return err
		}
		fmt.Println("freed bytes:", freed)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func parseStorageID(s string) (domain.StorageId, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.StorageId(n), nil
}
