// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"

	"github.com/DataShieldAI/repoguard/internal/common"
	"github.com/DataShieldAI/repoguard/internal/evidence"
	"github.com/DataShieldAI/repoguard/internal/github"
	"github.com/DataShieldAI/repoguard/internal/ipfs"
	"github.com/DataShieldAI/repoguard/internal/ledger"
	"github.com/DataShieldAI/repoguard/internal/sqlite"
)

// Orchestrator wires the durable store, the evidence archive, and the
// external collaborators, and owns the background reconciliation loop.
type Orchestrator struct {
	cfg     Config
	store   *sqlite.Store
	archive *evidence.Archive
	ledger  ledger.Client
	hosting github.Client
	storage ipfs.Store

	agentAddress string
	syncEnabled  bool
	syncCancel   context.CancelFunc
	syncDone     chan struct{}
}

// Option overrides a default collaborator, mainly for tests.
type Option func(*Orchestrator)

// WithLedger substitutes the ledger client.
func WithLedger(client ledger.Client) Option {
	return func(o *Orchestrator) { o.ledger = client }
}

// WithHosting substitutes the hosting client.
func WithHosting(client github.Client) Option {
	return func(o *Orchestrator) { o.hosting = client }
}

// WithStorage substitutes the storage collaborator.
func WithStorage(store ipfs.Store) Option {
	return func(o *Orchestrator) { o.storage = store }
}

// WithoutSync disables the background reconciliation loop.
func WithoutSync() Option {
	return func(o *Orchestrator) { o.syncEnabled = false }
}

// New opens the stores and builds the default collaborators from their
// package configurations, then applies the options.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	archive, err := evidence.OpenArchive(cfg.EvidencePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open evidence archive: %w", err)
	}

	orch := &Orchestrator{
		cfg:         cfg,
		store:       store,
		archive:     archive,
		syncEnabled: true,
	}

	for _, opt := range opts {
		opt(orch)
	}

	if orch.ledger == nil {
		gatewayCfg, err := ledger.LoadGatewayConfig()
		if err != nil {
			store.Close()
			return nil, err
		}
		gateway, err := ledger.NewGateway(gatewayCfg)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build ledger gateway: %w", err)
		}
		orch.ledger = gateway
		orch.agentAddress = gateway.AgentAddress()
	}
	if orch.hosting == nil {
		hostingCfg, err := github.LoadConfig()
		if err != nil {
			store.Close()
			return nil, err
		}
		orch.hosting = github.NewHTTPClient(hostingCfg)
	}
	if orch.storage == nil {
		storageCfg, err := ipfs.LoadConfig()
		if err != nil {
			store.Close()
			return nil, err
		}
		if storageCfg.Endpoint != "" {
			ipfsStore, err := ipfs.NewHTTPStore(storageCfg)
			if err != nil {
				store.Close()
				return nil, err
			}
			orch.storage = ipfsStore
		} else {
			common.Logger().Info("orchestrator: no storage endpoint configured, notices will not be hosted")
		}
	}
	return orch, nil
}

// Start launches the reconciliation loop unless disabled.
func (o *Orchestrator) Start(ctx context.Context) {
	if !o.syncEnabled || o.syncCancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.syncCancel = cancel
	o.syncDone = make(chan struct{})
	go o.reconcileLoop(runCtx)
}

// Close stops the reconciler and releases the stores.
func (o *Orchestrator) Close() error {
	if o.syncCancel != nil {
		o.syncCancel()
		<-o.syncDone
		o.syncCancel = nil
	}
	return o.store.Close()
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Store returns the record store.
func (o *Orchestrator) Store() *sqlite.Store { return o.store }

// Archive returns the evidence archive.
func (o *Orchestrator) Archive() *evidence.Archive { return o.archive }

// Ledger returns the ledger client.
func (o *Orchestrator) Ledger() ledger.Client { return o.ledger }

// Hosting returns the hosting client.
func (o *Orchestrator) Hosting() github.Client { return o.hosting }

// Storage returns the storage collaborator; nil when none is configured.
func (o *Orchestrator) Storage() ipfs.Store { return o.storage }

// AgentAddress returns the privileged agent address, when known.
func (o *Orchestrator) AgentAddress() string { return o.agentAddress }
