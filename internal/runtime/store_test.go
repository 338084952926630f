package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/leases"
	"github.com/containerd/containerd/v2/core/metadata"
	"github.com/containerd/containerd/v2/pkg/namespaces"
	"github.com/containerd/containerd/v2/plugins/content/local"
	"github.com/containerd/platforms"
	bolt "go.etcd.io/bbolt"
	"google.golang.org/protobuf/types/known/anypb"
)

// Namespace used by runtime tests.
const testNamespace = "eosimg-test"

// Store backed by containerd's local content store and metadata database,
// without a daemon.
type testStore struct {
	db         *metadata.DB
	content    content.Store
	images     images.Store
	containers containers.Store
	leases     leases.Manager
	unpacked   []string // Names passed to Unpack.
}

// Creates a store in a temporary directory and a context in its namespace.
func newTestStore(t *testing.T) (*testStore, context.Context) {
	t.Helper()
	dir := t.TempDir()

	cs, err := local.NewStore(filepath.Join(dir, "content"))
	if err != nil {
		t.Fatalf("content store: %v", err)
	}

	bdb, err := bolt.Open(filepath.Join(dir, "metadata.db"), 0644, nil)
	if err != nil {
		t.Fatalf("metadata db: %v", err)
	}
	t.Cleanup(func() { bdb.Close() })

	ctx := namespaces.WithNamespace(context.Background(), testNamespace)

	db := metadata.NewDB(bdb, cs, nil)
	if err := db.Init(ctx); err != nil {
		t.Fatalf("metadata init: %v", err)
	}

	return &testStore{
		db:         db,
		content:    db.ContentStore(),
		images:     metadata.NewImageStore(db),
		containers: metadata.NewContainerStore(db),
		leases:     metadata.NewLeaseManager(db),
	}, ctx
}

func (s *testStore) ContentStore() content.Store { return s.content }

func (s *testStore) ImageService() images.Store { return s.images }

func (s *testStore) WithLease(ctx context.Context) (context.Context, func(context.Context) error, error) {
	l, err := s.leases.Create(ctx, leases.WithRandomID(), leases.WithExpiration(time.Hour))
	if err != nil {
		return nil, nil, err
	}
	done := func(ctx context.Context) error {
		return s.leases.Delete(namespaces.WithNamespace(ctx, testNamespace), l)
	}
	return leases.WithLease(ctx, l.ID), done, nil
}

func (s *testStore) ImageContainers(ctx context.Context, name string) ([]string, error) {
	ctrs, err := s.containers.List(ctx, fmt.Sprintf("image==%q", name))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ctrs))
	for _, c := range ctrs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (s *testStore) DeleteContainer(ctx context.Context, id string) error {
	return s.containers.Delete(ctx, id)
}

func (s *testStore) Unpack(ctx context.Context, name string, platform platforms.MatchComparer, snapshotter string) error {
	s.unpacked = append(s.unpacked, name)
	return nil
}

func (s *testStore) Close() error { return nil }

// Records a container created from the named image.
func (s *testStore) addContainer(t *testing.T, ctx context.Context, id, image string) {
	t.Helper()
	_, err := s.containers.Create(ctx, containers.Container{
		ID:      id,
		Image:   image,
		Runtime: containers.RuntimeInfo{Name: "io.containerd.runc.v2"},
		Spec:    &anypb.Any{TypeUrl: "types.containerd.io/opencontainers/runtime-spec/1/Spec", Value: []byte("{}")},
	})
	if err != nil {
		t.Fatalf("create container %s: %v", id, err)
	}
}
