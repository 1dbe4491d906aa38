// Package discovery publishes which nodes are running to etcd so that
// operators and tooling can see a cluster from outside. Nodes never read
// their peers from here; identity always comes from the init handshake.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ryandielhenn/broadcaster/pkg/message"
)

const Prefix = "/broadcaster/nodes/"

// Client is the subset of *clientv3.Client used here.
type Client interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// Record is the value stored under Prefix+node id.
type Record struct {
	NodeID    string    `json:"node_id"`
	Peers     []string  `json:"peers"`
	StartedAt time.Time `json:"started_at"`
}

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// RegisterNode writes id under a lease of ttl seconds and keeps the lease
// alive until the returned cancel is called.
func RegisterNode(ctx context.Context, cli Client, id message.Identity, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(Record{NodeID: id.NodeID, Peers: id.PeerIDs, StartedAt: time.Now().UTC()})
	if err != nil {
		return 0, nil, err
	}
	if _, err := cli.Put(ctx, Prefix+id.NodeID, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("put %s: %w", id.NodeID, err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		// the channel must be drained or the client logs full-queue warnings
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// Deregister drops the lease, which deletes the node's key.
func Deregister(ctx context.Context, cli Client, lease clientv3.LeaseID) error {
	if _, err := cli.Revoke(ctx, lease); err != nil {
		return fmt.Errorf("revoke lease: %w", err)
	}
	return nil
}

// ListNodes returns every registered node keyed by id. Entries that do not
// decode are skipped.
func ListNodes(ctx context.Context, cli Client) (map[string]Record, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	out := make(map[string]Record, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var rec Record
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			continue
		}
		out[strings.TrimPrefix(string(kv.Key), Prefix)] = rec
	}
	return out, nil
}
