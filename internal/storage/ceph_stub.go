//go:build !ceph

package storage

import "github.com/cc-hpc-itwm/mcs-sub000/internal/domain"

// CephConfig is a stub when Ceph support is not compiled in, matching the
// teacher's persistence-ceph-stub.go build-tag pattern exactly.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// Ceph is a stub; NewCeph panics. Build with -tags=ceph to enable Ceph
// support.
type Ceph struct{}

func NewCeph(max domain.MaxSize, cfg CephConfig) *Ceph {
	panic("ceph support not compiled in. Build with: go build -tags=ceph")
}
