package indexer

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/quoteline/matcher/backend/internal/config"
	"github.com/quoteline/matcher/backend/internal/matcherctx"
)

type ContextRecord struct {
	Pubkey       string `json:"pubkey"`
	MatcherLabel string `json:"matcher_label"`
	Tag          string `json:"tag"`
	ProgramID    string `json:"program_id"`
	LPPDA        string `json:"lp_pda"`
	Mode         uint8  `json:"mode"`
	Version      uint32 `json:"version"`
	ExecPrice    string `json:"exec_price"`
	Slot         int64  `json:"slot"`
	UpdatedAt    int64  `json:"updated_at"`
}

type ExecPriceTickRecord struct {
	ID            int64  `json:"id"`
	ContextPubkey string `json:"context_pubkey"`
	MatcherLabel  string `json:"matcher_label"`
	Tag           string `json:"tag"`
	ExecPrice     string `json:"exec_price"`
	Slot          int64  `json:"slot"`
	RecordedAt    int64  `json:"recorded_at"`
}

// UpsertContextTx stores the current view of one context account and
// appends an exec-price tick when the return-price channel changed
// since the last observation.
func (s *Store) UpsertContextTx(
	ctx context.Context,
	tx *Tx,
	pubkey solana.PublicKey,
	spec config.MatcherSpec,
	slot uint64,
	header matcherctx.Header,
) error {
	pubkeyText := pubkey.String()
	execPrice := strconv.FormatUint(header.ExecPrice, 10)

	prevPrice, err := s.getContextExecPriceTx(ctx, tx, pubkeyText)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contexts (
			pubkey, matcher_label, tag, program_id, lp_pda, mode, version,
			exec_price, slot, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			matcher_label = excluded.matcher_label,
			tag = excluded.tag,
			program_id = excluded.program_id,
			lp_pda = excluded.lp_pda,
			mode = excluded.mode,
			version = excluded.version,
			exec_price = excluded.exec_price,
			slot = excluded.slot,
			updated_at = excluded.updated_at
	`,
		pubkeyText,
		spec.Label,
		header.Tag().String(),
		spec.ProgramID.String(),
		header.LPPDA.String(),
		int64(header.Mode),
		int64(header.Version),
		execPrice,
		int64(slot),
		now,
	)
	if err != nil {
		return err
	}

	if prevPrice != nil && *prevPrice == execPrice {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exec_price_ticks (
			context_pubkey, matcher_label, tag, exec_price, slot, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		pubkeyText,
		spec.Label,
		header.Tag().String(),
		execPrice,
		int64(slot),
		now,
	)
	return err
}

func (s *Store) getContextExecPriceTx(ctx context.Context, tx *Tx, pubkey string) (*string, error) {
	row := tx.QueryRowContext(ctx, `SELECT exec_price FROM contexts WHERE pubkey = ?`, pubkey)
	var price string
	err := row.Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

type ContextFilter struct {
	Tag    string
	LPPDA  string
	Limit  int
	Offset int
}

func (s *Store) ListContexts(ctx context.Context, filter ContextFilter) ([]ContextRecord, int, int, error) {
	limit, offset := normalizeWindow(filter.Limit, filter.Offset)

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if strings.TrimSpace(filter.Tag) != "" {
		clauses = append(clauses, "tag = ?")
		args = append(args, strings.TrimSpace(filter.Tag))
	}
	if strings.TrimSpace(filter.LPPDA) != "" {
		clauses = append(clauses, "lp_pda = ?")
		args = append(args, strings.TrimSpace(filter.LPPDA))
	}

	query := `SELECT pubkey, matcher_label, tag, program_id, lp_pda, mode, version, exec_price, slot, updated_at FROM contexts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC, pubkey ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	out := make([]ContextRecord, 0, limit)
	for rows.Next() {
		var item ContextRecord
		var mode, version int64
		if err := rows.Scan(
			&item.Pubkey,
			&item.MatcherLabel,
			&item.Tag,
			&item.ProgramID,
			&item.LPPDA,
			&mode,
			&version,
			&item.ExecPrice,
			&item.Slot,
			&item.UpdatedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		item.Mode = uint8(mode)
		item.Version = uint32(version)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}
	return out, limit, offset, nil
}

type ExecPriceTickFilter struct {
	ContextPubkey string
	Tag           string
	Limit         int
	Offset        int
}

func (s *Store) ListExecPriceTicks(ctx context.Context, filter ExecPriceTickFilter) ([]ExecPriceTickRecord, int, int, error) {
	limit, offset := normalizeWindow(filter.Limit, filter.Offset)

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if strings.TrimSpace(filter.ContextPubkey) != "" {
		clauses = append(clauses, "context_pubkey = ?")
		args = append(args, strings.TrimSpace(filter.ContextPubkey))
	}
	if strings.TrimSpace(filter.Tag) != "" {
		clauses = append(clauses, "tag = ?")
		args = append(args, strings.TrimSpace(filter.Tag))
	}

	query := `SELECT id, context_pubkey, matcher_label, tag, exec_price, slot, recorded_at FROM exec_price_ticks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	out := make([]ExecPriceTickRecord, 0, limit)
	for rows.Next() {
		var item ExecPriceTickRecord
		if err := rows.Scan(
			&item.ID,
			&item.ContextPubkey,
			&item.MatcherLabel,
			&item.Tag,
			&item.ExecPrice,
			&item.Slot,
			&item.RecordedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}
	return out, limit, offset, nil
}

func normalizeWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
