// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package spawn provides the minimal multi-task spawning seam the node
// facade needs (§5): the core is otherwise runtime-agnostic, but the
// supervisor and chain engine each run as persistent background loops
// that must be started and later waited on during structured shutdown.
// The client API itself spawns nothing and has no dependency on this
// package.
package spawn

import "sync"

// Spawner starts background tasks and can wait for all of them to
// return. The zero value of Group below satisfies it directly; a caller
// embedding a different executor only needs to implement these two
// methods.
type Spawner interface {
	Go(task func())
	Wait()
}

// Group is the default goroutine-backed Spawner.
type Group struct {
	wg sync.WaitGroup
}

// Go starts task in a new goroutine tracked by the group.
func (g *Group) Go(task func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		task()
	}()
}

// Wait blocks until every task started with Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
