// Copyright (c) 2026 The Kyoto developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"fmt"

	"github.com/kyoto-spv/kyoto/connmgr"
	"github.com/kyoto-spv/kyoto/wire"
)

// command is the Node's internal command envelope, processed serially
// by commandLoop (§4.7: "client handle with a command channel").
type command struct {
	kind commandKind
	args interface{}
	done chan commandResult
}

type commandKind int

const (
	cmdAddScript commandKind = iota
	cmdBroadcastTx
	cmdGetFeeEstimate
)

type commandResult struct {
	value interface{}
	err   error
}

type addScriptArgs struct {
	script           []byte
	activeFromHeight int32
}

// AddScript registers a watched output script. For a newly watched
// script with activeFromHeight >= 0, the filter rescan cursor is rewound
// to activeFromHeight if that predates what has already been scanned
// (§4.7); -1 starts no rescan. A script that is already watched starts
// no rescan, even with an earlier activeFromHeight. Safe to call
// repeatedly with the same script (§9 idempotence).
func (n *Node) AddScript(ctx context.Context, script []byte, activeFromHeight int32) error {
	_, err := n.call(ctx, cmdAddScript, addScriptArgs{script: script, activeFromHeight: activeFromHeight})
	return err
}

// BroadcastTx announces tx to the network per the §4.7 broadcast policy
// (inv → wait for getdata → serve, retried against up to three distinct
// gossip peers) and reports whether any peer fetched it.
func (n *Node) BroadcastTx(ctx context.Context, tx *wire.MsgTx) (connmgr.BroadcastOutcome, error) {
	v, err := n.call(ctx, cmdBroadcastTx, tx)
	if err != nil {
		return connmgr.BroadcastNoPeerFetched, err
	}
	return v.(connmgr.BroadcastOutcome), nil
}

// GetFeeEstimate is a Non-goal stub: Kyoto carries no mempool, so it
// always reports that no estimate is available (§4.7 Non-goals).
func (n *Node) GetFeeEstimate(ctx context.Context) (int64, error) {
	v, err := n.call(ctx, cmdGetFeeEstimate, nil)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (n *Node) call(ctx context.Context, kind commandKind, args interface{}) (interface{}, error) {
	cmd := command{kind: kind, args: args, done: make(chan commandResult, 1)}
	select {
	case <-n.quit:
		return nil, fmt.Errorf("node: shut down")
	default:
	}
	select {
	case n.cmds <- cmd:
	case <-n.quit:
		return nil, fmt.Errorf("node: shut down")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.done:
		return res.value, res.err
	case <-n.quit:
		return nil, fmt.Errorf("node: shut down")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) commandLoop() {
	for {
		select {
		case cmd := <-n.cmds:
			n.handleCommand(cmd)
		case <-n.quit:
			return
		}
	}
}

func (n *Node) handleCommand(cmd command) {
	var res commandResult
	switch cmd.kind {
	case cmdAddScript:
		a := cmd.args.(addScriptArgs)
		isNew, firstHeight := n.watchlist.AddScript(a.script, a.activeFromHeight)
		if isNew && firstHeight >= 0 {
			n.engine.Rescan(firstHeight)
		}
	case cmdBroadcastTx:
		tx := cmd.args.(*wire.MsgTx)
		res.value = n.sup.BroadcastTx(tx)
	case cmdGetFeeEstimate:
		res.value = int64(0)
		res.err = errNoFeeEstimate
	}
	cmd.done <- res
}

var errNoFeeEstimate = fmt.Errorf("node: no fee estimate available (no mempool)")
