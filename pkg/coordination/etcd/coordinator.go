package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"skeenode/pkg/coordination"
)

const nodesPrefix = "/nodes/"

type EtcdCoordinator struct {
	client  *clientv3.Client
	session *concurrency.Session
}

func NewEtcdCoordinator(endpoints []string, ttl int) (*EtcdCoordinator, error) {
	// Create the raw etcd client
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	// Create a concurrency session (keeps lease alive via heartbeats)
	sess, err := concurrency.NewSession(cli, concurrency.WithTTL(ttl))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to create concurrency session: %w", err)
	}

	return &EtcdCoordinator{
		client:  cli,
		session: sess,
	}, nil
}

func (c *EtcdCoordinator) Close() error {
	if c.session != nil {
		c.session.Close()
	}
	return c.client.Close()
}

func (c *EtcdCoordinator) NewElection(name string) coordination.Election {
	// Use the etcd concurrency/election package
	e := concurrency.NewElection(c.session, "/elections/"+name)
	return &EtcdElection{election: e}
}

// RegisterNode puts a key under the coordinator's session lease, so it
// disappears automatically if this process stops renewing the lease.
func (c *EtcdCoordinator) RegisterNode(ctx context.Context, id string) error {
	_, err := c.client.Put(ctx, nodesPrefix+id, time.Now().UTC().Format(time.RFC3339), clientv3.WithLease(c.session.Lease()))
	return err
}

// GetActiveNodes lists every node key currently alive under the lease.
func (c *EtcdCoordinator) GetActiveNodes(ctx context.Context) ([]coordination.Node, error) {
	resp, err := c.client.Get(ctx, nodesPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	nodes := make([]coordination.Node, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := string(kv.Key)[len(nodesPrefix):]
		lastSeen, _ := time.Parse(time.RFC3339, string(kv.Value))
		nodes = append(nodes, coordination.Node{ID: id, LastSeen: lastSeen})
	}
	return nodes, nil
}

// EtcdElection wraps the etcd concurrency.Election struct
type EtcdElection struct {
	election *concurrency.Election
	leading  bool
}

func (e *EtcdElection) Campaign(ctx context.Context, value string) error {
	err := e.election.Campaign(ctx, value)
	e.leading = err == nil
	return err
}

func (e *EtcdElection) Resign(ctx context.Context) error {
	err := e.election.Resign(ctx)
	e.leading = false
	return err
}

func (e *EtcdElection) Leader(ctx context.Context) (string, error) {
	resp, err := e.election.Leader(ctx)
	if err != nil {
		return "", err
	}
	return string(resp.Kvs[0].Value), nil
}

func (e *EtcdElection) IsLeader() bool {
	return e.leading
}
