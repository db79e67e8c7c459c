// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package node is the top-level facade wiring the header-only chain
// engine, the connection supervisor, the address book, the watchlist,
// and a peer-store backing into one running SPV light client (§4.7).
package node

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/kyoto-spv/kyoto/addrmgr"
	"github.com/kyoto-spv/kyoto/chain"
	"github.com/kyoto-spv/kyoto/chaincfg"
	"github.com/kyoto-spv/kyoto/connmgr"
	"github.com/kyoto-spv/kyoto/internal/spawn"
	"github.com/kyoto-spv/kyoto/peerstore"
	"github.com/kyoto-spv/kyoto/watchlist"
	"github.com/kyoto-spv/kyoto/wire"
)

var log btclog.Logger = btclog.Disabled

// UseLogger lets the embedding host supply a concrete logging backend.
func UseLogger(l btclog.Logger) { log = l }

// Config gathers everything a Node needs to run.
type Config struct {
	Params            *chaincfg.Params
	TargetConnections int
	TargetDataPeers   int
	ConfiguredPeers   []string // host:port, dialed before any address-book candidate (§4.4)
	ProxyAddr         string
	PeerStorePath     string // LevelDBStore loaded into the address book at Run, never flushed back; empty disables it
	Nonce             uint64
}

// Node is the running facade: a chain engine, a connection supervisor,
// an address book, and a watchlist, wired together and driven by one
// background task group.
type Node struct {
	cfg       Config
	engine    *chain.Engine
	sup       *connmgr.Supervisor
	addrMgr   *addrmgr.AddrManager
	watchlist *watchlist.Watchlist
	store     peerstore.Store

	spawner      spawn.Spawner
	events       chan Event
	cmds         chan command
	quit         chan struct{}
	shutdownOnce sync.Once
}

// New constructs a Node but does not start it; call Run to begin
// syncing and serving commands.
func New(cfg Config) (*Node, error) {
	wl := watchlist.New()
	am := addrmgr.New()

	var store peerstore.Store
	if cfg.PeerStorePath != "" {
		s, err := peerstore.OpenLevelDBStore(cfg.PeerStorePath)
		if err != nil {
			return nil, fmt.Errorf("opening peer store: %w", err)
		}
		store = s
	}

	n := &Node{
		cfg:       cfg,
		watchlist: wl,
		addrMgr:   am,
		store:     store,
		spawner:   &spawn.Group{},
		events:    make(chan Event, 256),
		cmds:      make(chan command, 32),
		quit:      make(chan struct{}),
	}

	n.engine = chain.New(cfg.Params, nil, wl)
	sup := connmgr.New(connmgr.Config{
		Params:            cfg.Params,
		TargetConnections: cfg.TargetConnections,
		TargetDataPeers:   cfg.TargetDataPeers,
		ConfiguredPeers:   cfg.ConfiguredPeers,
		ProxyAddr:         cfg.ProxyAddr,
		Nonce:             cfg.Nonce,
	}, n.engine, am)
	n.sup = sup
	n.engine.SetRequester(sup)

	return n, nil
}

// Run starts the engine and connection supervisor and drains the
// engine's event stream into the Node's own event channel until
// Shutdown is called. Run blocks until shutdown completes.
func (n *Node) Run() {
	if n.store != nil {
		n.loadPeerStore()
	}

	n.spawner.Go(n.engine.Run)
	n.spawner.Go(n.sup.Run)
	n.spawner.Go(n.relayEvents)
	n.spawner.Go(n.commandLoop)

	<-n.quit
	n.spawner.Wait()
}

func (n *Node) loadPeerStore() {
	it, err := n.store.Load()
	if err != nil {
		log.Warnf("node: loading peer store: %v", err)
		return
	}
	for it.Next() {
		rec := it.Record()
		na := &wire.NetAddress{
			IP:        rec.IP,
			Port:      rec.Port,
			Services:  wire.ServiceFlag(rec.Services),
			Timestamp: rec.LastSeen,
		}
		src := &wire.NetAddress{IP: rec.SourceIP, Port: rec.SourcePort}
		n.addrMgr.AddAddress(na, src)
	}
	if err := it.Err(); err != nil {
		log.Warnf("node: iterating peer store: %v", err)
	}
}

// relayEvents forwards the engine's events onto the Node's own stream
// until the engine's event channel closes (on engine.Stop), then closes
// the Node's stream in turn. It owns n.events' lifetime so Shutdown
// never races a send against the close.
func (n *Node) relayEvents() {
	defer close(n.events)
	for ev := range n.engine.Events() {
		n.events <- adaptChainEvent(ev)
	}
}

// Events returns the Node's merged event stream (chain progress, match
// notifications, reorgs, and connection lifecycle events).
func (n *Node) Events() <-chan Event { return n.events }

// Shutdown stops all background work, giving each peer session the
// supervisor's one-second flush cap, and closes the event stream (§5
// Cancellation). Safe to call more than once.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		close(n.quit)
		n.engine.Stop()
		n.sup.Stop()
		if n.store != nil {
			_ = n.store.Close()
		}
	})
}
