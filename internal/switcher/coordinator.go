// Package switcher reacts to chain selector changes by re-activating the wallet connectors.
package switcher

import (
	"context"
	"sync"
	"time"

	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/metrics"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Target is a chain id, or Default for "whatever chain the connector picks".
type Target uint64

const Default Target = 0

func (t Target) chainID() *uint64 {
	if t == Default {
		return nil
	}
	id := uint64(t)
	return &id
}

type CacheInvalidator interface {
	ClearAll()
}

// ErrorSink receives the outcome of each activation. A nil err clears the previous error.
type ErrorSink interface {
	SetError(kind wallet.Kind, err error)
}

type Option struct {
	ChainID uint64 `json:"chainId"`
	Label   string `json:"label"`
}

type Coordinator struct {
	primary  wallet.Connector
	injected wallet.Connector
	registry *chains.Registry
	cache    CacheInvalidator
	errs     ErrorSink
	recorder metrics.Recorder
	timeout  time.Duration

	mu      sync.Mutex
	desired Target
	lanes   map[wallet.Kind]*lane
	wg      sync.WaitGroup
}

// lane runs one connector's activations one at a time; seq is the newest request.
type lane struct {
	run sync.Mutex
	seq uint64
}

type CoordinatorOption func(*Coordinator)

// WithActivationTimeout bounds each activation. Wallet prompts count against it.
func WithActivationTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

func WithRecorder(r metrics.Recorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

// NewCoordinator wires the primary connector and, optionally, the injected wallet that
// follows it when the primary is read-only.
func NewCoordinator(primary, injected wallet.Connector, registry *chains.Registry, cache CacheInvalidator, errs ErrorSink, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		primary:  primary,
		injected: injected,
		registry: registry,
		cache:    cache,
		errs:     errs,
		recorder: metrics.NoopRecorder{},
		timeout:  2 * time.Minute,
		lanes:    make(map[wallet.Kind]*lane),
	}
	if nc, ok := primary.(*wallet.NetworkConnector); ok {
		c.desired = Target(nc.DefaultChainID())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Primary() wallet.Connector { return c.primary }

// SwitchChain never returns an error; activation results go to the ErrorSink.
func (c *Coordinator) SwitchChain(desired Target) {
	c.mu.Lock()
	c.desired = desired
	c.mu.Unlock()

	current, connected := c.primary.CurrentChainID()
	if connected && desired != Default && uint64(desired) == current {
		return
	}
	// never downgrade an explicit connection to "no chain"
	if desired == Default && connected {
		return
	}

	if c.cache != nil {
		c.cache.ClearAll()
	}

	log.Info("switching chain", "primary", c.primary.Kind().String(), "target", uint64(desired))
	c.recorder.ChainSwitch(uint64(desired))
	c.activate(c.primary, desired)

	if c.primary.Kind() != wallet.KindNetwork || c.injected == nil || c.injected == c.primary {
		return
	}
	if _, hasAccount := c.injected.CurrentAccount(); hasAccount {
		c.activate(c.injected, desired)
	}
}

// activate runs in the background; the two connectors never wait on each other.
// Activations of one connector run one at a time and a request that is no longer the newest
// when its turn comes is skipped, so the connector ends on the latest target.
// Only the newest request reports to the ErrorSink.
func (c *Coordinator) activate(conn wallet.Connector, desired Target) {
	c.mu.Lock()
	l, ok := c.lanes[conn.Kind()]
	if !ok {
		l = &lane{}
		c.lanes[conn.Kind()] = l
	}
	l.seq++
	seq := l.seq
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		l.run.Lock()
		defer l.run.Unlock()
		if !c.isLatest(l, seq) {
			log.Info("chain switch superseded", "connector", conn.Kind().String(), "target", uint64(desired))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := conn.Activate(ctx, desired.chainID())
		if !c.isLatest(l, seq) {
			log.Info("chain switch superseded", "connector", conn.Kind().String(), "target", uint64(desired), "error", err)
			return
		}
		if err != nil {
			log.Error("chain switch failed", "connector", conn.Kind().String(), "target", uint64(desired), "error", err)
		} else {
			log.Info("chain switched", "connector", conn.Kind().String(), "target", uint64(desired))
		}
		if c.errs != nil {
			c.errs.SetError(conn.Kind(), err)
		}
	}()
}

func (c *Coordinator) isLatest(l *lane, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return l.seq == seq
}

// Wait blocks until every activation started so far has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Desired is the selector value: the last requested target.
func (c *Coordinator) Desired() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// Options lists what the chain selector offers. A read-only primary can only reach chains with an
// RPC url; a wallet primary offers the Default entry and every registry chain, hidden ones included.
func (c *Coordinator) Options() []Option {
	if c.registry == nil {
		return nil
	}

	if c.primary.Kind() == wallet.KindNetwork {
		ids := c.registry.NetworkIDs()
		out := make([]Option, 0, len(ids))
		for _, id := range ids {
			out = append(out, c.option(id))
		}
		return out
	}

	out := []Option{{ChainID: uint64(Default), Label: "Default Chain"}}
	for _, desc := range c.registry.All() {
		out = append(out, Option{ChainID: desc.ChainID, Label: desc.Name})
	}
	return out
}

func (c *Coordinator) option(id uint64) Option {
	desc, err := c.registry.Get(id)
	if err != nil {
		return Option{ChainID: id, Label: ""}
	}
	return Option{ChainID: id, Label: desc.Name}
}
