package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ryandielhenn/broadcaster/pkg/message"
)

// fakeEtcd keeps keys in memory; leases are only tracked, never expired.
type fakeEtcd struct {
	mu       sync.Mutex
	kv       map[string]string
	leases   map[clientv3.LeaseID]string
	nextID   clientv3.LeaseID
	alive    context.Context
	grantErr error
}

func newFake() *fakeEtcd {
	return &fakeEtcd{kv: map[string]string{}, leases: map[clientv3.LeaseID]string{}, nextID: 100}
}

func (f *fakeEtcd) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.leases[f.nextID] = ""
	return &clientv3.LeaseGrantResponse{ID: f.nextID, TTL: ttl}, nil
}

func (f *fakeEtcd) KeepAlive(ctx context.Context, _ clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	f.alive = ctx
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeEtcd) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.leases[id]
	if !ok {
		return nil, errors.New("lease not found")
	}
	delete(f.leases, id)
	delete(f.kv, key)
	return &clientv3.LeaseRevokeResponse{}, nil
}

// Put binds key to the most recently granted lease, which is how
// RegisterNode uses it.
func (f *fakeEtcd) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = val
	if _, ok := f.leases[f.nextID]; ok {
		f.leases[f.nextID] = key
	}
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &clientv3.GetResponse{}
	for k, v := range f.kv {
		if strings.HasPrefix(k, key) {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	return resp, nil
}

func TestRegisterAndList(t *testing.T) {
	f := newFake()
	ctx := context.Background()

	lease, cancel, err := RegisterNode(ctx, f, message.Identity{NodeID: "n1", PeerIDs: []string{"n1", "n2"}}, 10)
	require.NoError(t, err)
	defer cancel()
	assert.NotZero(t, lease)

	raw, ok := f.kv[Prefix+"n1"]
	require.True(t, ok)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, "n1", rec.NodeID)
	assert.Equal(t, []string{"n1", "n2"}, rec.Peers)

	f.kv[Prefix+"junk"] = "not json"
	nodes, err := ListNodes(ctx, f)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, "n1", nodes["n1"].NodeID)
}

func TestCancelStopsKeepAlive(t *testing.T) {
	f := newFake()
	_, cancel, err := RegisterNode(context.Background(), f, message.Identity{NodeID: "n1"}, 10)
	require.NoError(t, err)

	require.NotNil(t, f.alive)
	assert.NoError(t, f.alive.Err())
	cancel()
	assert.Error(t, f.alive.Err())
}

func TestDeregisterRemovesKey(t *testing.T) {
	f := newFake()
	ctx := context.Background()
	lease, cancel, err := RegisterNode(ctx, f, message.Identity{NodeID: "n2"}, 10)
	require.NoError(t, err)
	cancel()

	require.NoError(t, Deregister(ctx, f, lease))
	_, ok := f.kv[Prefix+"n2"]
	assert.False(t, ok)

	assert.Error(t, Deregister(ctx, f, lease))
}

func TestRegisterGrantFailure(t *testing.T) {
	f := newFake()
	f.grantErr = errors.New("etcd down")

	_, cancel, err := RegisterNode(context.Background(), f, message.Identity{NodeID: "n1"}, 10)
	assert.ErrorIs(t, err, f.grantErr)
	assert.Nil(t, cancel)
}
