// Package engine wires the wallet backend together: ledger and compression
// RPC, metadata resolution, planning, transaction building and the optional
// signer, history and live feed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/cache"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/compression"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/config"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/flags"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/jupiter"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/metadata"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/planner"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/portfolio"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/rpc"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/storage/postgres"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/txbuilder"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/wallet"
)

// ActionHistory is the queryable side of the action log.
type ActionHistory interface {
	storage.ActionLog
	RecentActions(ctx context.Context, owner string, limit int) ([]models.ActionEvent, error)
}

// Engine is the main orchestrator for wallet operations
type Engine struct {
	cfg    *config.Config
	logger *logrus.Logger

	ledger      *rpc.Client
	compression *compression.Client
	jupiter     *jupiter.Client

	onChain   *metadata.OnChainService
	resolver  *metadata.Resolver
	writeback *metadata.Writeback
	portfolio *portfolio.Aggregator
	assembler *planner.Assembler
	builder   *txbuilder.Builder

	redis     *redis.Client
	metaStore storage.MetadataStore
	flags     *flags.Store
	gate      *flags.ActionGate
	history   ActionHistory
	feed      storage.ActionPublisher
	signer    *wallet.Wallet

	closers []io.Closer
}

// New builds an Engine from cfg. Redis, ClickHouse and the signer are
// optional; a Postgres metadata store that cannot be reached is fatal.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{cfg: cfg, logger: logger}

	// 1. RPC clients
	e.ledger = rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Name:         "ledger",
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	compressionRPC := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.CompressionRPCUrl,
		Name:         "compression",
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	e.compression = compression.NewClient(compressionRPC, logger)
	e.jupiter = jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterPriceURL, cfg.JupiterAPIKey, cfg.HTTPTimeout)

	// 2. Storage
	if err := e.openStorage(ctx); err != nil {
		e.Close()
		return nil, err
	}

	// 3. Metadata
	e.onChain = metadata.NewOnChainService(e.ledger, cfg.HTTPTimeout, logger)
	e.resolver = e.newResolver()
	e.portfolio = portfolio.NewAggregator(e.ledger, e.compression, e.resolver, logger)

	// 4. Planning and building
	assembler, err := e.newAssembler()
	if err != nil {
		e.Close()
		return nil, err
	}
	e.assembler = assembler
	e.builder = txbuilder.NewBuilder(
		e.ledger,
		txbuilder.NewRPCLookupTables(e.ledger, logger),
		solana.MustPublicKeyFromBase58(constants.CompressionLookupTable),
		logger,
	)

	// 5. Signer
	w, err := wallet.New(e.ledger, wallet.Config{
		PrivateKey: cfg.WalletPrivateKey,
		Commitment: cfg.WalletCommitment,
		Logger:     logger,
	})
	switch {
	case errors.Is(err, wallet.ErrNoSigner):
		logger.Info("no wallet key configured; execute is disabled")
	case err != nil:
		e.Close()
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	default:
		e.signer = w
		logger.WithField("address", w.Address()).Info("wallet loaded")
	}

	return e, nil
}

func (e *Engine) openStorage(ctx context.Context) error {
	cfg := e.cfg

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			e.logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable; flags and live feed disabled")
		} else {
			e.redis = client
			e.closers = append(e.closers, client)

			fs, err := flags.NewStore(client)
			if err != nil {
				return fmt.Errorf("failed to create flag store: %w", err)
			}
			e.flags = fs
			e.feed = cache.NewPubSubManager(client, e.logger)
		}
	}
	if e.flags != nil {
		e.gate = flags.NewActionGate(e.flags, e.logger)
	}

	switch cfg.MetadataStore {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		store := postgres.NewMetadataStore(pool)
		e.closers = append(e.closers, store)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to create metadata schema: %w", err)
		}
		e.metaStore = store
	case "redis":
		if e.redis != nil {
			store, err := cache.NewRedisMetadataStore(e.redis, e.logger)
			if err != nil {
				return err
			}
			e.metaStore = store
		}
	}
	if e.metaStore == nil && cfg.MetadataCacheURL == "" {
		e.logger.Warn("no metadata store or cache service; metadata cache tier disabled")
	}

	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, e.logger)
		if err != nil {
			e.logger.WithError(err).Warn("clickhouse unavailable; action history disabled")
		} else {
			e.history = ch
			e.closers = append(e.closers, ch)
		}
	}
	return nil
}

// newResolver orders the tiers cache, asset index, on-chain. Hits from the
// later two are written back to wherever the cache tier reads from.
func (e *Engine) newResolver() *metadata.Resolver {
	cfg := e.cfg
	var (
		tiers []metadata.Tier
		saver metadata.Saver
	)

	switch {
	case cfg.MetadataCacheURL != "":
		cc := metadata.NewCacheClient(cfg.MetadataCacheURL, cfg.HTTPTimeout, e.logger)
		tiers = append(tiers, metadata.Tier{Source: cc})
		saver = cc
	case e.metaStore != nil:
		tiers = append(tiers, metadata.Tier{Source: metadata.NewStoreSource(e.metaStore)})
		saver = e.metaStore
	}

	if cfg.AssetIndexRPCUrl != "" {
		index := rpc.NewClient(rpc.ClientConfig{
			BaseURL:      cfg.AssetIndexRPCUrl,
			Name:         "asset-index",
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       e.logger,
		})
		tiers = append(tiers, metadata.Tier{Source: metadata.NewAssetIndexSource(index), WriteBack: true})
	}

	if cfg.OnChainMetadataURL != "" {
		tiers = append(tiers, metadata.Tier{
			Source:    metadata.NewOnChainClient(cfg.OnChainMetadataURL, cfg.HTTPTimeout, e.logger),
			WriteBack: true,
		})
	} else {
		tiers = append(tiers, metadata.Tier{Source: e.onChain, WriteBack: true})
	}

	if saver != nil {
		e.writeback = metadata.NewWriteback(saver, constants.WritebackTimeout, e.logger)
	}
	return metadata.NewResolver(metadata.ResolverConfig{
		Tiers:     tiers,
		Prices:    e.jupiter,
		Writeback: e.writeback,
		Logger:    e.logger,
	})
}

func (e *Engine) newAssembler() (*planner.Assembler, error) {
	cfg := e.cfg
	tree, err := solana.PublicKeyFromBase58(cfg.StateTree)
	if err != nil {
		return nil, fmt.Errorf("invalid STATE_TREE: %w", err)
	}
	queue, err := solana.PublicKeyFromBase58(cfg.NullifierQueue)
	if err != nil {
		return nil, fmt.Errorf("invalid NULLIFIER_QUEUE: %w", err)
	}

	guard := planner.NewSwapGuard(planner.GuardConfig{
		MaxPriceImpactBps: uint16(cfg.MaxPriceImpactBps),
		MaxSlippageBps:    uint16(cfg.MaxSlippageBps),
		AllowedMints:      cfg.AllowedMints,
	})
	return planner.NewAssembler(planner.Config{
		Ledger:           e.ledger,
		Compressed:       e.compression,
		Swaps:            e.jupiter,
		StateTree:        compression.StateTree{Tree: tree, Queue: queue},
		ComputeUnitLimit: uint32(cfg.ComputeUnitLimit),
		Guard:            guard,
		Logger:           e.logger,
	})
}

// Ping checks the ledger RPC and every configured store.
func (e *Engine) Ping(ctx context.Context) map[string]string {
	status := map[string]string{}
	check := func(name string, err error) {
		if err != nil {
			status[name] = err.Error()
			return
		}
		status[name] = "ok"
	}

	_, err := e.ledger.GetLatestBlockhash(ctx, "")
	check("ledger", err)
	if e.redis != nil {
		check("redis", e.redis.Ping(ctx).Err())
	}
	if e.metaStore != nil {
		check("metadata_store", e.metaStore.Ping(ctx))
	}
	if e.history != nil {
		check("clickhouse", e.history.Ping(ctx))
	}
	return status
}

func (e *Engine) Jupiter() *jupiter.Client             { return e.jupiter }
func (e *Engine) OnChain() *metadata.OnChainService    { return e.onChain }
func (e *Engine) MetadataStore() storage.MetadataStore { return e.metaStore }
func (e *Engine) Flags() *flags.Store                  { return e.flags }
func (e *Engine) Signer() *wallet.Wallet               { return e.signer }
func (e *Engine) HasHistory() bool                     { return e.history != nil }

// Resolve is the metadata resolver chain.
func (e *Engine) Resolve(ctx context.Context, mints []string) map[string]metadata.Priced {
	return e.resolver.Resolve(ctx, mints)
}

// Close waits for pending metadata writes, then releases connections.
func (e *Engine) Close() error {
	if e.writeback != nil {
		e.writeback.Wait()
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
