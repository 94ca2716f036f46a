package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/quoteline/matcher/backend/internal/config"
	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

type Service struct {
	cfg    config.IndexerConfig
	rpc    *rpc.Client
	store  *Store
	logger *slog.Logger
}

func New(cfg config.IndexerConfig, logger *slog.Logger) (*Service, error) {
	store, err := NewStore(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &Service{
		cfg:    cfg,
		rpc:    rpc.New(cfg.RPCURL),
		store:  store,
		logger: logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	s.logger.Info("indexer started",
		"rpc", s.cfg.RPCURL,
		"db_driver", "postgres",
		"commitment", s.cfg.Commitment,
		"matchers", len(s.cfg.Matchers),
	)

	if err := s.syncOnce(ctx); err != nil {
		s.logger.Error("initial sync failed", "err", err)
	}
	if s.cfg.EnableBasePriceStream {
		go s.runBasePriceStream(ctx)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("indexer stopped")
			return nil
		case <-ticker.C:
			if err := s.syncOnce(ctx); err != nil {
				s.logger.Error("sync failed", "err", err)
			}
		}
	}
}

func (s *Service) syncOnce(ctx context.Context) error {
	slot, err := s.rpc.GetSlot(ctx, s.cfg.Commitment)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}

	stats := map[string]int{}

	err = s.store.WithTx(ctx, func(tx *Tx) error {
		for _, spec := range s.cfg.Matchers {
			if err := s.syncMatcher(ctx, tx, slot, spec, stats); err != nil {
				return err
			}
		}
		return s.store.UpsertSyncStateTx(ctx, tx, slot)
	})
	if err != nil {
		return err
	}

	s.logger.Info(
		"sync complete",
		"slot", slot,
		"contexts", stats["contexts"],
	)

	return nil
}

// syncMatcher scans one matcher program for 320-byte context accounts
// whose tag slot matches the configured tag, and upserts each decoded
// header into the store.
func (s *Service) syncMatcher(ctx context.Context, tx *Tx, slot uint64, spec config.MatcherSpec, stats map[string]int) error {
	tag := spec.Tag.Bytes()

	accounts, err := s.rpc.GetProgramAccountsWithOpts(ctx, spec.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: s.cfg.Commitment,
		Filters: []rpc.RPCFilter{
			{DataSize: uint64(matcherctx.CtxSize)},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: matcherctx.MagicOffset, Bytes: solana.Base58(tag[:])}},
		},
	})
	if err != nil {
		return fmt.Errorf("scan %s contexts for program %s: %w", spec.Label, spec.ProgramID, err)
	}

	for _, item := range accounts {
		if item == nil || item.Account == nil {
			continue
		}
		if err := s.indexContext(ctx, tx, slot, spec, item, stats); err != nil {
			s.logger.Warn("failed to index context",
				"program", spec.ProgramID,
				"matcher", spec.Label,
				"pubkey", item.Pubkey,
				"slot", slot,
				"err", err,
			)
		}
	}
	return nil
}

func (s *Service) indexContext(ctx context.Context, tx *Tx, slot uint64, spec config.MatcherSpec, item *rpc.KeyedAccount, stats map[string]int) error {
	header, err := matcherctx.DecodeHeader(item.Account.Data.GetBinary())
	if err != nil {
		return err
	}
	if header.Tag() != spec.Tag {
		// RPC nodes can serve stale data that slips past the memcmp filter.
		return fmt.Errorf("tag mismatch: got %s want %s", header.Tag(), spec.Tag)
	}
	if err := s.store.UpsertContextTx(ctx, tx, item.Pubkey, spec, slot, header); err != nil {
		return err
	}
	stats["contexts"]++
	return nil
}
