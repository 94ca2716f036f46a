package keeper

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/quoteline/matcher/backend/internal/chain"
	"github.com/quoteline/matcher/backend/internal/config"
	"github.com/quoteline/matcher/backend/internal/indexer"
	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

// priceScale converts the oracle's float price into the fixed-point u64
// representation the matcher programs store.
const priceScale = uint64(1_000_000)

var (
	initContextDisc     = anchorInstructionDiscriminator("init_context")
	updateExecPriceDisc = anchorInstructionDiscriminator("update_exec_price")
)

var errSkipMatcher = errors.New("skip matcher")

type Service struct {
	cfg    config.KeeperConfig
	rpc    *rpc.Client
	signer solana.PrivateKey
	store  *indexer.Store
	logger *slog.Logger
}

func New(cfg config.KeeperConfig, logger *slog.Logger) (*Service, error) {
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair %q: %w", cfg.KeypairPath, err)
	}

	store, err := indexer.NewStore(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &Service{
		cfg:    cfg,
		rpc:    rpc.New(cfg.RPCURL),
		signer: signer,
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

	s.logger.Info("keeper started",
		"rpc", s.cfg.RPCURL,
		"commitment", s.cfg.Commitment,
		"signer", s.signer.PublicKey(),
		"market", s.cfg.PriceMarket,
		"matchers", len(s.cfg.Matchers),
	)

	if err := s.tick(ctx); err != nil {
		s.logger.Error("keeper tick failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("keeper stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error("keeper tick failed", "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	stats := map[string]int{}

	for _, spec := range s.cfg.Matchers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.processMatcher(ctx, spec, stats)
		if err == nil {
			continue
		}
		if errors.Is(err, errSkipMatcher) {
			stats["skipped"]++
			s.logger.Warn("matcher skipped", "matcher", spec.Label, "reason", err)
			continue
		}
		stats["failed"]++
		s.logger.Warn("matcher processing failed", "matcher", spec.Label, "err", err)
	}

	s.logger.Info(
		"keeper tick complete",
		"matchers", len(s.cfg.Matchers),
		"updated", stats["updated"],
		"unchanged", stats["unchanged"],
		"initialized", stats["initialized"],
		"skipped", stats["skipped"],
		"failed", stats["failed"],
	)
	return nil
}

func (s *Service) processMatcher(ctx context.Context, spec config.MatcherSpec, stats map[string]int) error {
	ctxKey, _, err := chain.DeriveContextPDA(spec.ProgramID, spec.Tag)
	if err != nil {
		return fmt.Errorf("derive context PDA: %w", err)
	}
	lpKey, _, err := chain.DeriveLPAuthorityPDA(spec.ProgramID, s.signer.PublicKey())
	if err != nil {
		return fmt.Errorf("derive lp authority PDA: %w", err)
	}

	data, err := s.fetchContextData(ctx, ctxKey)
	if err != nil {
		return err
	}

	ctxView := matcherctx.Account{Key: ctxKey, Data: data, IsWritable: true}

	if len(data) >= matcherctx.CtxSize && matcherctx.ReadMagic(data) == matcherctx.TagUninitialized {
		if err := s.initContext(ctx, spec, ctxView, lpKey); err != nil {
			return err
		}
		stats["initialized"]++
		return nil
	}

	// Mirror the program's own guard before spending a transaction on it.
	signerView := matcherctx.Account{Key: lpKey, IsSigner: true}
	if err := matcherctx.VerifyLPPDA(signerView, ctxView, spec.Tag, spec.Label); err != nil {
		return fmt.Errorf("%w: %w", errSkipMatcher, err)
	}

	execPrice, err := s.quoteExecPrice(ctx, spec)
	if err != nil {
		return err
	}

	if matcherctx.ReadExecPrice(data) == execPrice {
		stats["unchanged"]++
		return nil
	}

	updateIx := newUpdateExecPriceInstruction(spec.ProgramID, s.signer.PublicKey(), ctxKey, lpKey, execPrice)

	signature, err := s.submit(ctx, updateIx)
	if err != nil {
		return fmt.Errorf("update_exec_price for %s: %w", spec.Label, err)
	}

	s.confirmWrittenPrice(ctx, spec, ctxKey, data, execPrice)

	s.logger.Info("exec price updated",
		"matcher", spec.Label,
		"context", ctxKey,
		"exec_price", execPrice,
		"spread_bps", spec.SpreadBps,
		"signature", signature,
	)
	stats["updated"]++
	return nil
}

func (s *Service) fetchContextData(ctx context.Context, ctxKey solana.PublicKey) ([]byte, error) {
	resp, err := s.rpc.GetAccountInfoWithOpts(ctx, ctxKey, &rpc.GetAccountInfoOpts{Commitment: s.cfg.Commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: context account %s not provisioned", errSkipMatcher, ctxKey)
		}
		return nil, fmt.Errorf("fetch context %s: %w", ctxKey, err)
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("%w: context account %s not provisioned", errSkipMatcher, ctxKey)
	}
	return resp.Value.Data.GetBinary(), nil
}

// initContext claims a freshly allocated context account for the
// configured matcher. The header image is computed locally and compared
// against the on-chain bytes after confirmation.
func (s *Service) initContext(ctx context.Context, spec config.MatcherSpec, ctxView matcherctx.Account, lpKey solana.PublicKey) error {
	if err := matcherctx.VerifyInitPreconditions(ctxView, spec.Tag, spec.Label); err != nil {
		return fmt.Errorf("%w: %w", errSkipMatcher, err)
	}

	expected := append([]byte(nil), ctxView.Data...)
	matcherctx.WriteHeader(expected, spec.Tag, spec.Mode, lpKey)

	initIx := newInitContextInstruction(spec.ProgramID, s.signer.PublicKey(), ctxView.Key, lpKey, spec.Tag, spec.Mode)

	signature, err := s.submit(ctx, initIx)
	if err != nil {
		return fmt.Errorf("init_context for %s: %w", spec.Label, err)
	}

	written, err := s.fetchContextData(ctx, ctxView.Key)
	if err != nil {
		s.logger.Warn("context readback failed after init", "matcher", spec.Label, "err", err)
	} else if !bytes.Equal(written[:matcherctx.PrivateRegionOffset], expected[:matcherctx.PrivateRegionOffset]) {
		s.logger.Warn("on-chain context header differs from local image",
			"matcher", spec.Label,
			"context", ctxView.Key,
		)
	}

	s.logger.Info("context initialized",
		"matcher", spec.Label,
		"context", ctxView.Key,
		"lp_authority", lpKey,
		"mode", spec.Mode,
		"signature", signature,
	)
	return nil
}

// quoteExecPrice turns the freshest stored base price into the matcher's
// execution price, applying the configured spread.
func (s *Service) quoteExecPrice(ctx context.Context, spec config.MatcherSpec) (uint64, error) {
	base, err := s.store.GetLatestBasePrice(ctx, s.cfg.PriceMarket)
	if err != nil {
		if errors.Is(err, indexer.ErrNotFound) {
			return 0, fmt.Errorf("%w: no base price stored for market %s", errSkipMatcher, s.cfg.PriceMarket)
		}
		return 0, fmt.Errorf("load base price: %w", err)
	}

	now := time.Now().Unix()
	maxAge := int64(s.cfg.BasePriceMaxAge / time.Second)
	if maxAge > 0 && now-base.PublishTime > maxAge {
		return 0, fmt.Errorf("%w: base price is stale (published %ds ago)", errSkipMatcher, now-base.PublishTime)
	}

	basePrice := uint64(math.Round(base.Price * float64(priceScale)))
	if basePrice == 0 {
		return 0, fmt.Errorf("%w: base price rounds to zero", errSkipMatcher)
	}

	execPrice, err := matcherctx.ComputeExecPrice(basePrice, spec.SpreadBps)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errSkipMatcher, err)
	}
	return execPrice, nil
}

// confirmWrittenPrice re-fetches the context account and checks that the
// return-price channel carries exactly the bytes a local write would have
// produced. A mismatch points at a competing writer or a buggy program.
func (s *Service) confirmWrittenPrice(ctx context.Context, spec config.MatcherSpec, ctxKey solana.PublicKey, before []byte, execPrice uint64) {
	expected := append([]byte(nil), before...)
	matcherctx.WriteExecPrice(expected, execPrice)

	written, err := s.fetchContextData(ctx, ctxKey)
	if err != nil {
		s.logger.Warn("context readback failed after update", "matcher", spec.Label, "err", err)
		return
	}
	if len(written) < matcherctx.CtxSize {
		s.logger.Warn("context shrank after update", "matcher", spec.Label, "len", len(written))
		return
	}
	if !bytes.Equal(written[:8], expected[:8]) {
		s.logger.Warn("on-chain exec price differs from submitted price",
			"matcher", spec.Label,
			"context", ctxKey,
			"want", execPrice,
			"got", matcherctx.ReadExecPrice(written),
		)
	}
}

func (s *Service) submit(ctx context.Context, ix solana.Instruction) (solana.Signature, error) {
	instructions := make([]solana.Instruction, 0, 3)
	if s.cfg.ComputeUnitLimit > 0 {
		cuLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(s.cfg.ComputeUnitLimit).ValidateAndBuild()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit limit instruction: %w", err)
		}
		instructions = append(instructions, cuLimitIx)
	}
	if s.cfg.ComputeUnitPriceMicroLamports > 0 {
		cuPriceIx, err := computebudget.NewSetComputeUnitPriceInstruction(s.cfg.ComputeUnitPriceMicroLamports).ValidateAndBuild()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit price instruction: %w", err)
		}
		instructions = append(instructions, cuPriceIx)
	}
	instructions = append(instructions, ix)

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	signature, err := s.sendTransaction(txCtx, instructions)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := s.waitForConfirmation(txCtx, signature); err != nil {
		return solana.Signature{}, fmt.Errorf("wait confirmation %s: %w", signature, err)
	}
	return signature, nil
}

func (s *Service) sendTransaction(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.Commitment,
	}
	if s.cfg.MaxRetries != nil {
		retries := *s.cfg.MaxRetries
		opts.MaxRetries = &retries
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (s *Service) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

func newInitContextInstruction(
	programID solana.PublicKey,
	payer solana.PublicKey,
	ctxKey solana.PublicKey,
	lpAuthority solana.PublicKey,
	tag matcherctx.Tag,
	mode uint8,
) solana.Instruction {
	data := make([]byte, 0, 8+8+1)
	data = append(data, initContextDisc[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(tag))
	data = append(data, mode)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ctxKey, true, false),
		solana.NewAccountMeta(lpAuthority, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, data)
}

func newUpdateExecPriceInstruction(
	programID solana.PublicKey,
	executor solana.PublicKey,
	ctxKey solana.PublicKey,
	lpAuthority solana.PublicKey,
	execPrice uint64,
) solana.Instruction {
	data := make([]byte, 0, 8+8)
	data = append(data, updateExecPriceDisc[:]...)
	data = binary.LittleEndian.AppendUint64(data, execPrice)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(executor, false, true),
		solana.NewAccountMeta(ctxKey, true, false),
		solana.NewAccountMeta(lpAuthority, false, false),
	}

	return solana.NewInstruction(programID, accounts, data)
}

func anchorInstructionDiscriminator(ixName string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + ixName))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}
