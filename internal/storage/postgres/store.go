package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"randomnessScope/internal/model"
)

// Store provides Postgres persistence for exported requests.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertRequests inserts or updates request aggregates. The conflict
// guard only updates rows still pending, so a terminal status never
// regresses when older windows are replayed.
func (s *Store) UpsertRequests(ctx context.Context, requests []model.RequestRecord) error {
	if len(requests) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range requests {
		var randomness, fulfillTxHash, fulfillGasUsed *string
		var callbackSuccess *bool
		var fulfillBlock, fulfillTS *int64
		if r.Fulfillment != nil {
			randomness = &r.Fulfillment.Randomness
			callbackSuccess = &r.Fulfillment.CallbackSuccess
			fulfillGasUsed = &r.Fulfillment.ActualGasUsed
			fulfillTxHash = &r.Fulfillment.TxHash
			block := int64(r.Fulfillment.BlockNumber)
			ts := int64(r.Fulfillment.Timestamp)
			fulfillBlock = &block
			fulfillTS = &ts
		}

		var retdata, failGasLimit, failGasUsed *string
		if r.Failure != nil {
			retdata = &r.Failure.Retdata
			failGasLimit = &r.Failure.GasLimit
			failGasUsed = &r.Failure.ActualGasUsed
		}

		batch.Queue(`
			INSERT INTO randomness_requests (
				request_id, requester, pub_key_hash, round, deadline,
				callback_gas_limit, fee_paid, effective_fee_per_gas, status,
				tx_hash, block_number, block_ts,
				randomness, callback_success, fulfillment_gas_used,
				fulfillment_tx_hash, fulfillment_block_number, fulfillment_ts,
				failure_retdata, failure_gas_limit, failure_gas_used,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
			ON CONFLICT (request_id)
			DO UPDATE SET
				status = EXCLUDED.status,
				randomness = EXCLUDED.randomness,
				callback_success = EXCLUDED.callback_success,
				fulfillment_gas_used = EXCLUDED.fulfillment_gas_used,
				fulfillment_tx_hash = EXCLUDED.fulfillment_tx_hash,
				fulfillment_block_number = EXCLUDED.fulfillment_block_number,
				fulfillment_ts = EXCLUDED.fulfillment_ts,
				failure_retdata = EXCLUDED.failure_retdata,
				failure_gas_limit = EXCLUDED.failure_gas_limit,
				failure_gas_used = EXCLUDED.failure_gas_used,
				updated_at = now()
			WHERE randomness_requests.status = 'pending'
		`,
			r.RequestID,
			r.Requester,
			r.PubKeyHash,
			r.Round,
			int64(r.Deadline),
			r.CallbackGasLimit,
			r.FeePaid,
			r.EffectiveFeePerGas,
			r.Status,
			r.TxHash,
			int64(r.BlockNumber),
			int64(r.Timestamp),
			randomness,
			callbackSuccess,
			fulfillGasUsed,
			fulfillTxHash,
			fulfillBlock,
			fulfillTS,
			retdata,
			failGasLimit,
			failGasUsed,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range requests {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadScanState returns the last exported block for a coordinator.
func (s *Store) LoadScanState(ctx context.Context, coordinator string) (uint64, bool, error) {
	if coordinator == "" {
		return 0, false, fmt.Errorf("coordinator address required")
	}
	var lastBlock uint64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM scan_state WHERE coordinator=$1`, coordinator)
	if err := row.Scan(&lastBlock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return lastBlock, true, nil
}

// SaveScanState upserts the last exported block for a coordinator.
func (s *Store) SaveScanState(ctx context.Context, coordinator string, lastBlock uint64) error {
	if coordinator == "" {
		return fmt.Errorf("coordinator address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (coordinator, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (coordinator) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, coordinator, int64(lastBlock))
	return err
}
