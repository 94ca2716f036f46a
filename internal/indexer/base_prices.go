package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultMarketSymbol = "BTCUSD"

type BasePriceTickInput struct {
	Market      string
	Source      string
	FeedID      string
	Slot        int64
	PublishTime int64
	Price       float64
	Conf        float64
	Expo        int32
	ReceivedAt  int64
	RawJSON     string
}

type BasePriceRecord struct {
	Market      string  `json:"market"`
	Source      string  `json:"source"`
	FeedID      string  `json:"feed_id"`
	Slot        int64   `json:"slot"`
	PublishTime int64   `json:"publish_time"`
	Price       float64 `json:"price"`
	Conf        float64 `json:"conf"`
	Expo        int32   `json:"expo"`
	ReceivedAt  int64   `json:"received_at"`
}

func NormalizeMarketSymbol(raw string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	var out strings.Builder
	out.Grow(len(trimmed))
	for _, r := range trimmed {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func normalizeMarketWithDefault(raw string) string {
	market := NormalizeMarketSymbol(raw)
	if market == "" {
		return defaultMarketSymbol
	}
	return market
}

func (s *Store) InsertBasePriceTick(ctx context.Context, input BasePriceTickInput) (bool, error) {
	market := normalizeMarketWithDefault(input.Market)
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "pyth"
	}
	feedID := strings.ToLower(strings.TrimSpace(input.FeedID))
	if feedID == "" {
		return false, fmt.Errorf("feed id is required")
	}
	if input.Price <= 0 {
		return false, fmt.Errorf("price must be > 0")
	}
	now := time.Now().Unix()
	publishTime := input.PublishTime
	if publishTime <= 0 {
		publishTime = now
	}
	receivedAt := input.ReceivedAt
	if receivedAt <= 0 {
		receivedAt = now
	}
	rawJSON := strings.TrimSpace(input.RawJSON)
	if rawJSON == "" {
		rawJSON = "{}"
	}

	result, err := s.db.ExecContext(
		ctx,
		`
		INSERT INTO base_price_ticks (
			market, source, feed_id, slot, publish_time, price, conf, expo, received_at, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market, source, publish_time, slot) DO NOTHING
		`,
		market,
		source,
		feedID,
		input.Slot,
		publishTime,
		input.Price,
		input.Conf,
		int64(input.Expo),
		receivedAt,
		rawJSON,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *Store) GetLatestBasePrice(ctx context.Context, market string) (BasePriceRecord, error) {
	normalized := normalizeMarketWithDefault(market)

	row := s.db.QueryRowContext(
		ctx,
		`
		SELECT market, source, feed_id, slot, publish_time, price, conf, expo, received_at
		FROM base_price_ticks
		WHERE market = ?
		ORDER BY publish_time DESC, slot DESC, id DESC
		LIMIT 1
		`,
		normalized,
	)

	var item BasePriceRecord
	var expo int64
	if err := row.Scan(
		&item.Market,
		&item.Source,
		&item.FeedID,
		&item.Slot,
		&item.PublishTime,
		&item.Price,
		&item.Conf,
		&expo,
		&item.ReceivedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BasePriceRecord{}, ErrNotFound
		}
		return BasePriceRecord{}, err
	}
	item.Expo = int32(expo)
	return item, nil
}

type BasePriceFilter struct {
	Market   string
	FromUnix int64
	ToUnix   int64
	Limit    int
	Offset   int
}

func (s *Store) ListBasePriceTicks(ctx context.Context, filter BasePriceFilter) ([]BasePriceRecord, int, int, error) {
	limit, offset := normalizeWindow(filter.Limit, filter.Offset)

	clauses := []string{"market = ?"}
	args := []any{normalizeMarketWithDefault(filter.Market)}
	if filter.FromUnix > 0 {
		clauses = append(clauses, "publish_time >= ?")
		args = append(args, filter.FromUnix)
	}
	if filter.ToUnix > 0 {
		clauses = append(clauses, "publish_time <= ?")
		args = append(args, filter.ToUnix)
	}

	query := `SELECT market, source, feed_id, slot, publish_time, price, conf, expo, received_at FROM base_price_ticks WHERE ` +
		strings.Join(clauses, " AND ") +
		" ORDER BY publish_time DESC, slot DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	out := make([]BasePriceRecord, 0, limit)
	for rows.Next() {
		var item BasePriceRecord
		var expo int64
		if err := rows.Scan(
			&item.Market,
			&item.Source,
			&item.FeedID,
			&item.Slot,
			&item.PublishTime,
			&item.Price,
			&item.Conf,
			&expo,
			&item.ReceivedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		item.Expo = int32(expo)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}
	return out, limit, offset, nil
}
