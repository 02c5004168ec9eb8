// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package forkdetector periodically samples a set of named ChainDb
// handles and reports whether they agree on a tip, agree on a chain but
// not its tip, or have genuinely diverged into independent chains. It is
// read-only: it never mutates any ChainDb it watches.
package forkdetector

import (
	"context"
	"sort"
	"time"

	"github.com/daglabs/halfnode/chaindb"
	"github.com/daglabs/halfnode/chainhash"
)

// Handle names one of the ChainDb instances being watched, e.g. one per
// configured peer or per locally tracked chain.
type Handle struct {
	Name    string
	ChainDb *chaindb.ChainDb
}

// Detector runs the periodic chain-divergence check.
type Detector struct {
	interval time.Duration
	handles  []Handle
}

// New returns a Detector that samples handles every interval.
func New(interval time.Duration, handles []Handle) *Detector {
	return &Detector{interval: interval, handles: handles}
}

// Run blocks, checking chains every interval until ctx is canceled.
func (d *Detector) Run(ctx context.Context) {
	log.Infof("ForkDetector: Watching %d peers", len(d.handles))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.CheckChains(ctx); err != nil {
				log.Warnf("ForkDetector: check failed: %s", err)
			}
		}
	}
}

type tipKey struct {
	height int32
	hash   chainhash.Hash
}

func (k tipKey) less(o tipKey) bool {
	if k.height != o.height {
		return k.height < o.height
	}
	return hashLess(k.hash, o.hash)
}

func hashLess(a, b chainhash.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ChainGroup is one independent chain discovered among the watched
// handles: its deepest known agreed height/hash, and the names of every
// handle riding on it (at whatever tip height they individually report).
type ChainGroup struct {
	Height int32
	Hash   chainhash.Hash
	Peers  []string
}

// CheckChains samples every handle's current tip and groups them into
// independent chains. It returns a single group when every handle agrees
// on a tip or at least a common chain.
func (d *Detector) CheckChains(ctx context.Context) ([]ChainGroup, error) {
	log.Infof("ForkDetector: Checking chains")

	tips := make([]tipKey, len(d.handles))
	for i, h := range d.handles {
		height, err := h.ChainDb.GetHeight(ctx)
		if err != nil {
			return nil, err
		}
		hash, err := h.ChainDb.GetTopHash(ctx)
		if err != nil {
			return nil, err
		}
		tips[i] = tipKey{height: height, hash: hash}
	}

	// Level 1: group handles reporting an identical tip.
	l1 := make(map[tipKey][]string)
	var l1Keys []tipKey
	for i, tip := range tips {
		if _, ok := l1[tip]; !ok {
			l1Keys = append(l1Keys, tip)
		}
		l1[tip] = append(l1[tip], d.handles[i].Name)
	}
	if len(l1) == 1 {
		log.Infof("ForkDetector: All peers at same tip")
		return []ChainGroup{{Height: l1Keys[0].height, Hash: l1Keys[0].hash, Peers: l1[l1Keys[0]]}}, nil
	}

	// Level 2: group tips that share an ancestor chain, tallest first so
	// the deepest tip of each independent chain is tried as a root before
	// any of its descendants.
	sort.Slice(l1Keys, func(i, j int) bool { return l1Keys[j].less(l1Keys[i]) })

	var roots []tipKey
	parent := make(map[tipKey]*tipKey)

	for _, pt := range l1Keys {
		placed := false
		for _, root := range roots {
			cpt := root
			for parent[cpt] != nil {
				cpt = *parent[cpt]
			}

			height := cpt.height
			cur := cpt.hash
			cdb := d.byName(l1[cpt][0])

			for height > pt.height {
				block, err := cdb.GetBlock(ctx, cur)
				if err != nil {
					return nil, err
				}
				cur = block.Header.HashPrevBlock
				height--
			}

			if cur == pt.hash {
				ptCopy := pt
				parent[cpt] = &ptCopy
				placed = true
				break
			}
		}
		if !placed {
			roots = append(roots, pt)
			parent[pt] = nil
		}
	}

	if len(roots) == 1 {
		log.Infof("ForkDetector: All peers in same chain")
		return []ChainGroup{d.collectGroup(roots[0], l1, parent)}, nil
	}

	// Level 3: independent chains have genuinely diverged; report each.
	log.Warnf("ForkDetector: %d independent chains detected", len(roots))
	groups := make([]ChainGroup, len(roots))
	for i, root := range roots {
		groups[i] = d.collectGroup(root, l1, parent)
		log.Warnf("ForkDetector: - height %d, block %s: %v", groups[i].Height, groups[i].Hash, groups[i].Peers)
	}
	return groups, nil
}

func (d *Detector) collectGroup(root tipKey, l1 map[tipKey][]string, parent map[tipKey]*tipKey) ChainGroup {
	peers := append([]string(nil), l1[root]...)
	cpt := root
	for parent[cpt] != nil {
		cpt = *parent[cpt]
		peers = append(peers, l1[cpt]...)
	}
	return ChainGroup{Height: root.height, Hash: root.hash, Peers: peers}
}

func (d *Detector) byName(name string) *chaindb.ChainDb {
	for _, h := range d.handles {
		if h.Name == name {
			return h.ChainDb
		}
	}
	return nil
}
