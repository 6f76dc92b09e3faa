package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// Endpoint names where a control or transport provider listens: either a
// TCP host:port or a UNIX domain socket path. It is the value a
// TransportAddress's Parameter field carries (JSON-encoded) so a remote
// peer can dial back to the provider that issued a ChunkDescription.
type Endpoint struct {
	Network string `json:"network"` // "tcp" or "unix"
	Address string `json:"address"`
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%s", e.Network, e.Address) }

// Listen opens a net.Listener at e. For "unix" it removes a stale socket
// file left behind by a prior, uncleanly-terminated provider first, the
// way the teacher's node server does before binding its own control
// socket.
func (e Endpoint) Listen() (net.Listener, error) {
	if e.Network == "unix" {
		if _, err := os.Stat(e.Address); err == nil {
			_ = os.Remove(e.Address)
		}
	}
	return net.Listen(e.Network, e.Address)
}

// Dial connects to e, honoring ctx's deadline/cancellation.
func (e Endpoint) Dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, e.Network, e.Address)
}

// MarshalParameter encodes e as the TransportAddress.Parameter payload.
func (e Endpoint) MarshalParameter() []byte {
	b, _ := json.Marshal(e)
	return b
}

// ParseEndpoint decodes a TransportAddress.Parameter payload back into an
// Endpoint.
func ParseEndpoint(b []byte) (Endpoint, error) {
	var e Endpoint
	if err := json.Unmarshal(b, &e); err != nil {
		return Endpoint{}, fmt.Errorf("transport: decode endpoint: %w", err)
	}
	return e, nil
}

// SaveEndpointFile persists e to path as JSON. No command in this
// repository calls it or LoadEndpointFile.
func SaveEndpointFile(path string, e Endpoint) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadEndpointFile is the dual of SaveEndpointFile.
func LoadEndpointFile(path string) (Endpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Endpoint{}, err
	}
	return ParseEndpoint(b)
}
