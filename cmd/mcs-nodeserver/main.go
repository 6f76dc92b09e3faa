// Command mcs-nodeserver runs a single MCS node: it builds the storages
// named in a JSON config file, then serves control and transport RPC over
// the configured listen address until interrupted. Argument handling is
// plain positional flags, matching the teacher's own main.go rather than
// a subcommand framework.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dc0d/onexit"

	"github.com/cc-hpc-itwm/mcs-sub000/cmd/internal/nodecli"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/admin"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/config"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/registry"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/wire"
)

var logger = log.New(os.Stderr, "[mcs/nodeserver] ", log.LstdFlags)

func main() {
	configPath := flag.String("config", "", "path to the node's JSON configuration document")
	adminAddr := flag.String("admin-addr", "", "optional address to serve a /stats websocket push feed on")
	flag.Parse()
	if *configPath == "" {
		logger.Fatalf("usage: mcs-nodeserver -config <path.json>")
	}

	cfg, err := nodecli.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	reg := registry.New()
	onexit.Register(func() {
		if err := reg.Close(); err != nil {
			logger.Printf("registry close: %v", err)
		}
	})

	for _, sc := range cfg.Storages {
		kind, err := config.ImplementationKind(sc.Kind)
		if err != nil {
			logger.Fatalf("storage config: %v", err)
		}
		max, err := config.ParseSize(sc.Size)
		if err != nil {
			logger.Fatalf("storage config: %v", err)
		}
		impl, err := transport.NewImplementationFromConfig(kind, max, sc.Config)
		if err != nil {
			logger.Fatalf("constructing storage %s: %v", sc.Kind, err)
		}
		id := reg.CreateStorage(impl)
		logger.Printf("storage %d (%s) ready", id, kind)
	}

	controlCommands := make(map[wire.CommandKind]bool, len(wire.ControlCommandSet)+len(wire.TransportCommandSet))
	for k, v := range wire.ControlCommandSet {
		controlCommands[k] = v
	}
	for k, v := range wire.TransportCommandSet {
		controlCommands[k] = v
	}

	provider, err := transport.NewProvider(reg, nodecli.Endpoint(cfg), controlCommands, transport.Sequential, logger)
	if err != nil {
		logger.Fatalf("starting provider: %v", err)
	}
	onexit.Register(func() {
		if err := provider.Close(); err != nil {
			logger.Printf("provider close: %v", err)
		}
	})

	logger.Printf("listening on %s", provider.Addr())
	go func() {
		if err := provider.Serve(); err != nil {
			logger.Printf("serve: %v", err)
		}
	}()

	if *adminAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/stats", &admin.Handler{Registry: reg, Interval: 2 * time.Second, Logger: logger})
		adminServer := &http.Server{Addr: *adminAddr, Handler: mux}
		onexit.Register(func() { adminServer.Close() })
		go func() {
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("admin server: %v", err)
			}
		}()
		logger.Printf("admin stats feed on ws://%s/stats", *adminAddr)
	}

	if cfg.Metadata.Backend != "" {
		node, err := nodecli.OpenNode(cfg)
		if err != nil {
			logger.Fatalf("building collection engine: %v", err)
		}
		onexit.Register(func() {
			if err := node.Close(); err != nil {
				logger.Printf("node close: %v", err)
			}
		})
		logger.Printf("collection engine ready (workspace %s)", cfg.Metadata.WorkspaceID)
	}

	select {} // run until onexit's SIGINT/SIGTERM handler terminates the process
}
