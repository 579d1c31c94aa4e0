package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

const (
	// DefaultExchangeRate is 1:1 in ledger units.
	DefaultExchangeRate = amount.Scale

	baseFeeBps         = 50
	corridorPremiumBps = 25

	// ComplianceLimit is the largest remittance accepted without manual
	// review (ledger units).
	ComplianceLimit = 10_000 * amount.Scale
)

func poolNotFound(id uint32) error {
	return model.Errorf(model.KindPoolNotFound, "pool %d not found", id).WithEntity(gateway.FormatID(id))
}

func (l *Ledger) requireAdmin(addr string) error {
	if addr != l.admin {
		return model.Errorf(model.KindUnauthorized, "%s is not the contract admin", addr)
	}
	return nil
}

func (l *Ledger) createPool(t *txn, a gateway.CreatePoolArgs) (uint32, error) {
	if err := l.requireAdmin(a.Admin); err != nil {
		return 0, err
	}
	if a.MinDeposit < 0 || a.MaxDeposit <= 0 || a.MinDeposit > a.MaxDeposit {
		return 0, model.Validationf("deposit_limits", "invalid deposit limits")
	}

	corridor := a.Corridor
	if corridor == "" {
		corridor = gateway.Corridor(a.BaseCurrency, a.TargetCurrency)
	}
	res, err := t.Exec(`
		INSERT INTO pools
		(name, base_currency, target_currency, corridor, apy_basis_points,
		 min_deposit, max_deposit, lock_duration, moneygram_corridor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Name, a.BaseCurrency, a.TargetCurrency, corridor, a.APYBasisPoints,
		a.MinDeposit, a.MaxDeposit, a.LockDuration, a.MoneyGramCorridorID)
	if err != nil {
		return 0, fmt.Errorf("insert pool: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pool id: %w", err)
	}

	// Initial rate; an oracle or admin updates it later.
	if _, err := t.Exec(`
		INSERT OR IGNORE INTO exchange_rates (currency_pair, rate) VALUES (?, ?)
	`, gateway.CurrencyPair(a.BaseCurrency, a.TargetCurrency), DefaultExchangeRate); err != nil {
		return 0, fmt.Errorf("init exchange rate: %w", err)
	}

	l.logger.Info("yield pool created", "id", id64, "corridor", corridor, "apy_bps", a.APYBasisPoints)
	return uint32(id64), nil
}

func (l *Ledger) depositToPool(t *txn, a gateway.DepositArgs) error {
	pool, err := loadPool(t, a.PoolID)
	if err != nil {
		return err
	}
	entity := gateway.FormatID(pool.ID)
	switch {
	case !pool.IsActive:
		return model.NewError(model.KindPoolInactive, "pool is not active").WithEntity(entity)
	case a.Amount < pool.MinDeposit:
		return model.NewError(model.KindMinDepositNotMet, "deposit below pool minimum").
			WithEntity(entity).WithDetail("min_deposit", pool.MinDeposit)
	case a.Amount > pool.MaxDeposit:
		return model.NewError(model.KindMaxDepositExceeded, "deposit above pool maximum").
			WithEntity(entity).WithDetail("max_deposit", pool.MaxDeposit)
	}

	now := t.now.Unix()
	lockUntil := now + int64(pool.LockDuration)
	if _, err := t.Exec(`
		INSERT INTO positions
		(user, pool_id, principal, deposit_timestamp, last_claim_timestamp, lock_until, auto_compound, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.User, pool.ID, a.Amount, now, now, lockUntil, boolInt(a.AutoCompound), t.hash); err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	if _, err := t.Exec(`UPDATE pools SET total_deposited = total_deposited + ? WHERE id = ?`, a.Amount, pool.ID); err != nil {
		return fmt.Errorf("update pool total: %w", err)
	}
	if _, err := t.Exec(`
		INSERT OR IGNORE INTO pool_participants (pool_id, participant, position)
		VALUES (?, ?, (SELECT COUNT(*) FROM pool_participants WHERE pool_id = ?))
	`, pool.ID, a.User, pool.ID); err != nil {
		return fmt.Errorf("add pool participant: %w", err)
	}

	l.logger.Info("pool deposit", "pool", pool.ID, "user", a.User, "amount", a.Amount)
	return nil
}

// distributeYield credits totalYield to every position in the pool pro rata
// by principal. Auto-compounding positions add their share to principal.
func (l *Ledger) distributeYield(t *txn, a gateway.DistributeYieldArgs) error {
	if err := l.requireAdmin(a.Admin); err != nil {
		return err
	}
	if a.TotalYield <= 0 {
		return model.Validationf("total_yield", "yield must be positive")
	}
	pool, err := loadPool(t, a.PoolID)
	if err != nil {
		return err
	}
	if pool.TotalDeposited <= 0 {
		return model.NewError(model.KindInsufficientBalance, "pool has no deposits").WithEntity(gateway.FormatID(pool.ID))
	}

	type share struct {
		seq       int64
		principal int64
		compound  bool
	}
	rows, err := t.Query(`SELECT seq, principal, auto_compound FROM positions WHERE pool_id = ? ORDER BY seq`, pool.ID)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	var shares []share
	for rows.Next() {
		var s share
		var compound int
		if err := rows.Scan(&s.seq, &s.principal, &compound); err != nil {
			rows.Close()
			return fmt.Errorf("scan position: %w", err)
		}
		s.compound = compound != 0
		shares = append(shares, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var compounded int64
	for _, s := range shares {
		cut := s.principal * a.TotalYield / pool.TotalDeposited
		principal := s.principal
		if s.compound {
			principal += cut
			compounded += cut
		}
		if _, err := t.Exec(`
			UPDATE positions SET yield_earned = yield_earned + ?, principal = ?, last_claim_timestamp = ?
			WHERE seq = ?
		`, cut, principal, t.now.Unix(), s.seq); err != nil {
			return fmt.Errorf("credit position: %w", err)
		}
	}
	if _, err := t.Exec(`
		UPDATE pools SET total_yield_earned = total_yield_earned + ?, total_deposited = total_deposited + ?
		WHERE id = ?
	`, a.TotalYield, compounded, pool.ID); err != nil {
		return fmt.Errorf("update pool yield: %w", err)
	}
	return nil
}

func (l *Ledger) sendCrossBorder(t *txn, a gateway.SendCrossBorderArgs) (uint32, error) {
	if a.Amount <= 0 {
		return 0, model.Validationf("amount", "transfer amount must be positive")
	}
	if a.Amount > ComplianceLimit {
		return 0, model.NewError(model.KindComplianceError, "transfer exceeds the compliance limit").
			WithDetail("limit", ComplianceLimit)
	}

	corridor := gateway.Corridor(a.FromCurrency, a.ToCurrency)
	supported, err := corridorSupported(t, corridor)
	if err != nil {
		return 0, err
	}
	if !supported {
		return 0, model.Errorf(model.KindUnsupportedCorridor, "corridor %s is not supported", corridor).
			WithDetail("corridor", corridor)
	}

	rate, err := exchangeRate(t, gateway.CurrencyPair(a.FromCurrency, a.ToCurrency))
	if err != nil {
		return 0, err
	}

	txType := gateway.TransactionRemittanceOut
	if a.UseYieldPool {
		if err := withdrawFromPositions(t, a.Sender, a.Amount); err != nil {
			return 0, err
		}
		txType = gateway.TransactionYieldWithdraw
	}

	fees := a.Amount*baseFeeBps/10000 + a.Amount*corridorPremiumBps/10000
	res, err := t.Exec(`
		INSERT INTO transfers
		(from_user, to_address, from_currency, to_currency, amount, exchange_rate, fees,
		 corridor, transaction_type, status, timestamp, moneygram_ref, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)
	`, a.Sender, a.ToAddress, a.FromCurrency, a.ToCurrency, a.Amount, rate, fees,
		corridor, txType, string(model.TransferPending), t.now.Unix(), t.hash)
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transfer id: %w", err)
	}
	if _, err := t.Exec(`UPDATE transfers SET moneygram_ref = ? WHERE id = ?`, fmt.Sprintf("SSAVE%d", id64), id64); err != nil {
		return 0, fmt.Errorf("set moneygram ref: %w", err)
	}

	l.logger.Info("cross-border transfer", "id", id64, "corridor", corridor, "amount", a.Amount)
	return uint32(id64), nil
}

// withdrawFromPositions funds a transfer from the sender's unlocked
// positions, oldest first.
func withdrawFromPositions(t *txn, user string, amt int64) error {
	rows, err := t.Query(`
		SELECT seq, pool_id, principal, lock_until FROM positions
		WHERE user = ? AND principal > 0 ORDER BY seq
	`, user)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	type pos struct {
		seq       int64
		pool      uint32
		principal int64
	}
	var unlocked []pos
	var available int64
	var locked bool
	now := t.now.Unix()
	for rows.Next() {
		var p pos
		var lockUntil int64
		if err := rows.Scan(&p.seq, &p.pool, &p.principal, &lockUntil); err != nil {
			rows.Close()
			return fmt.Errorf("scan position: %w", err)
		}
		if now < lockUntil {
			locked = true
			continue
		}
		unlocked = append(unlocked, p)
		available += p.principal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if available < amt {
		if locked {
			return model.NewError(model.KindPositionLocked, "pool positions are still locked").
				WithDetail("available", available)
		}
		return model.NewError(model.KindInsufficientBalance, "insufficient pool balance for transfer").
			WithDetail("available", available)
	}

	remaining := amt
	for _, p := range unlocked {
		if remaining == 0 {
			break
		}
		take := min(p.principal, remaining)
		remaining -= take
		if _, err := t.Exec(`UPDATE positions SET principal = principal - ? WHERE seq = ?`, take, p.seq); err != nil {
			return fmt.Errorf("debit position: %w", err)
		}
		if _, err := t.Exec(`UPDATE pools SET total_deposited = total_deposited - ? WHERE id = ?`, take, p.pool); err != nil {
			return fmt.Errorf("debit pool: %w", err)
		}
	}
	return nil
}

func (l *Ledger) updateExchangeRate(t *txn, a gateway.UpdateExchangeRateArgs) error {
	if err := l.requireAdmin(a.Admin); err != nil {
		return err
	}
	if a.NewRate <= 0 {
		return model.Validationf("rate", "exchange rate must be positive")
	}
	if _, err := t.Exec(`
		INSERT INTO exchange_rates (currency_pair, rate) VALUES (?, ?)
		ON CONFLICT(currency_pair) DO UPDATE SET rate = excluded.rate
	`, a.CurrencyPair, a.NewRate); err != nil {
		return fmt.Errorf("update exchange rate: %w", err)
	}
	return nil
}

func exchangeRate(t *txn, pair string) (int64, error) {
	var rate int64
	err := t.QueryRow(`SELECT rate FROM exchange_rates WHERE currency_pair = ?`, pair).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultExchangeRate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("exchange rate: %w", err)
	}
	return rate, nil
}

func corridorSupported(t *txn, corridor string) (bool, error) {
	var one int
	err := t.QueryRow(`SELECT 1 FROM corridors WHERE corridor = ?`, corridor).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("corridor lookup: %w", err)
	}
	return true, nil
}

func corridors(t *txn) ([]string, error) {
	rows, err := t.Query(`SELECT corridor FROM corridors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("corridors: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan corridor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const poolColumns = `id, name, base_currency, target_currency, corridor, total_deposited,
	total_yield_earned, apy_basis_points, is_active, min_deposit, max_deposit,
	lock_duration, moneygram_corridor_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanPool(s scanner) (gateway.PoolRecord, error) {
	var p gateway.PoolRecord
	var active int
	err := s.Scan(&p.ID, &p.Name, &p.BaseCurrency, &p.TargetCurrency, &p.Corridor, &p.TotalDeposited,
		&p.TotalYieldEarned, &p.APYBasisPoints, &active, &p.MinDeposit, &p.MaxDeposit,
		&p.LockDuration, &p.MoneyGramCorridorID)
	p.IsActive = active != 0
	return p, err
}

func poolParticipants(t *txn, id uint32) ([]string, error) {
	rows, err := t.Query(`SELECT participant FROM pool_participants WHERE pool_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("pool participants: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan pool participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadPool(t *txn, id uint32) (gateway.PoolRecord, error) {
	p, err := scanPool(t.QueryRow(`SELECT `+poolColumns+` FROM pools WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, poolNotFound(id)
	}
	if err != nil {
		return p, fmt.Errorf("load pool: %w", err)
	}
	p.Participants, err = poolParticipants(t, id)
	return p, err
}

func pools(t *txn) ([]gateway.PoolRecord, error) {
	rows, err := t.Query(`SELECT ` + poolColumns + ` FROM pools ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}
	out := []gateway.PoolRecord{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Participants are loaded after the cursor closes; the ledger holds a
	// single connection.
	for i := range out {
		if out[i].Participants, err = poolParticipants(t, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func positions(t *txn, user string) ([]gateway.PositionRecord, error) {
	rows, err := t.Query(`
		SELECT user, pool_id, principal, yield_earned, deposit_timestamp, last_claim_timestamp,
		       lock_until, auto_compound, tx_hash
		FROM positions WHERE user = ? ORDER BY seq
	`, user)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	defer rows.Close()
	out := []gateway.PositionRecord{}
	for rows.Next() {
		var p gateway.PositionRecord
		var compound int
		if err := rows.Scan(&p.User, &p.PoolID, &p.Principal, &p.YieldEarned, &p.DepositTimestamp,
			&p.LastClaimTimestamp, &p.LockUntil, &compound, &p.TransactionHash); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.AutoCompound = compound != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func transfers(t *txn, user string) ([]gateway.TransferRecord, error) {
	rows, err := t.Query(`
		SELECT id, from_user, to_address, from_currency, to_currency, amount, exchange_rate, fees,
		       corridor, transaction_type, status, timestamp, moneygram_ref, tx_hash
		FROM transfers WHERE from_user = ? ORDER BY id
	`, user)
	if err != nil {
		return nil, fmt.Errorf("transfers: %w", err)
	}
	defer rows.Close()
	out := []gateway.TransferRecord{}
	for rows.Next() {
		var r gateway.TransferRecord
		if err := rows.Scan(&r.ID, &r.FromUser, &r.ToAddress, &r.FromCurrency, &r.ToCurrency, &r.Amount,
			&r.ExchangeRate, &r.Fees, &r.Corridor, &r.TransactionType, &r.Status, &r.Timestamp,
			&r.MoneyGramRef, &r.TransactionHash); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func totalValueLocked(t *txn) (int64, error) {
	var tvl int64
	if err := t.QueryRow(`SELECT COALESCE(SUM(total_deposited), 0) FROM pools`).Scan(&tvl); err != nil {
		return 0, fmt.Errorf("total value locked: %w", err)
	}
	return tvl, nil
}

func projectedYield(t *txn, a gateway.ProjectedYieldArgs) (int64, error) {
	pool, err := loadPool(t, a.PoolID)
	if err != nil {
		return 0, err
	}
	daily := int64(pool.APYBasisPoints) * a.Amount / (10000 * 365)
	return daily * int64(a.DurationDays), nil
}
