package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/invite"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/operation"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/property"
	"github.com/avatarctic/tenancy-engine/internal/core/domain/tenancy"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// TxConfig bounds the optimistic retry loop.
type TxConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
}

// TransactionCoordinator runs read-compute-write cycles against a DocumentStore and commits them
// atomically, retrying the whole cycle on version conflicts.
type TransactionCoordinator struct {
	store       ports.DocumentStore
	cache       ports.Cache
	metrics     ports.OperationMetrics
	logger      *logrus.Logger
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	timeout     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewTransactionCoordinator(store ports.DocumentStore, cache ports.Cache, metrics ports.OperationMetrics, cfg *TxConfig, logger *logrus.Logger) *TransactionCoordinator {
	// Apply defaults
	mr := 8
	bb := 10 * time.Millisecond
	mb := 250 * time.Millisecond
	to := 5 * time.Second
	if cfg != nil {
		if cfg.MaxRetries > 0 {
			mr = cfg.MaxRetries
		}
		if cfg.BaseBackoff > 0 {
			bb = cfg.BaseBackoff
		}
		if cfg.MaxBackoff > 0 {
			mb = cfg.MaxBackoff
		}
		if cfg.Timeout > 0 {
			to = cfg.Timeout
		}
	}
	if mb < bb {
		mb = bb
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &TransactionCoordinator{
		store:       store,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		maxRetries:  mr,
		baseBackoff: bb,
		maxBackoff:  mb,
		timeout:     to,
		sleep:       sleepContext,
	}
}

// Store exposes the underlying store for non-transactional reads.
func (c *TransactionCoordinator) Store() ports.DocumentStore {
	return c.store
}

// Run executes fn until its writes commit. fn must be free of side effects outside tx because it
// may run several times. A non-nil error from fn aborts without writing; Tx.Reject lets fn
// commit its staged writes and still report a business failure.
func (c *TransactionCoordinator) Run(ctx context.Context, op operation.Name, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		tx := newTx(c.store)
		if err := fn(ctx, tx); err != nil {
			return c.deadlineConflict(ctx, op, attempt, err)
		}
		if len(tx.writes) == 0 {
			return tx.rejected
		}

		err := c.store.Commit(ctx, tx.readSet(), tx.writeSet())
		if err == nil {
			c.invalidate(ctx, tx)
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{"operation": op, "attempt": attempt + 1, "writes": len(tx.writes)}).Debug("tx: committed")
			}
			return tx.rejected
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return c.deadlineConflict(ctx, op, attempt, err)
		}

		c.metrics.IncTxConflict(op)
		if attempt >= c.maxRetries {
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{"operation": op, "attempts": attempt + 1}).Warn("tx: retries exhausted")
			}
			return apperr.ErrConflict.Wrap(err)
		}
		if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
			return apperr.ErrConflict.WithMessage("transaction timed out after %d attempts", attempt+1).Wrap(serr)
		}
		c.metrics.IncTxRetry(op)
	}
}

// deadlineConflict reports an attempt cut short by the transaction deadline as a retry-safe
// conflict. Business errors and caller cancellation pass through unchanged.
func (c *TransactionCoordinator) deadlineConflict(ctx context.Context, op operation.Name, attempt int, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	c.metrics.IncTxConflict(op)
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{"operation": op, "attempts": attempt + 1}).WithError(err).Warn("tx: deadline exceeded")
	}
	return apperr.ErrConflict.WithMessage("transaction timed out after %d attempts", attempt+1).Wrap(err)
}

// backoff is full-jitter exponential: uniform in [0, min(max, base*2^attempt)].
func (c *TransactionCoordinator) backoff(attempt int) time.Duration {
	ceiling := c.maxBackoff
	if attempt < 30 {
		if d := c.baseBackoff << attempt; d > 0 && d < ceiling {
			ceiling = d
		}
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

func (c *TransactionCoordinator) invalidate(ctx context.Context, tx *Tx) {
	if c.cache == nil {
		return
	}
	for _, k := range tx.order {
		if k.Kind != ports.KindProperty {
			continue
		}
		id, err := uuid.Parse(k.ID)
		if err != nil {
			continue
		}
		if err := c.cache.Delete(ctx, ports.PropertyCacheKey(id)); err != nil && c.logger != nil {
			c.logger.WithFields(logrus.Fields{"property_id": k.ID}).WithError(err).Warn("tx: failed to invalidate cached property")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Tx tracks the read-set and staged write-set of one attempt.
type Tx struct {
	store    ports.DocumentStore
	reads    map[ports.DocumentKey]*ports.Document
	writes   map[ports.DocumentKey][]byte
	order    []ports.DocumentKey
	rejected error
}

func newTx(store ports.DocumentStore) *Tx {
	return &Tx{
		store:  store,
		reads:  make(map[ports.DocumentKey]*ports.Document),
		writes: make(map[ports.DocumentKey][]byte),
	}
}

// Reject records a business failure returned by Run after the staged writes commit.
func (tx *Tx) Reject(err error) {
	tx.rejected = err
}

// get returns the staged body, the body read earlier in this attempt, or a fresh read.
// ok is false when the document does not exist; absence is recorded as version 0.
func (tx *Tx) get(ctx context.Context, key ports.DocumentKey, dst any) (bool, error) {
	if body, staged := tx.writes[key]; staged {
		return true, json.Unmarshal(body, dst)
	}
	doc, seen := tx.reads[key]
	if !seen {
		d, err := tx.store.Get(ctx, key)
		switch {
		case errors.Is(err, ports.ErrDocumentNotFound):
			d = &ports.Document{Key: key, Version: 0}
		case err != nil:
			return false, fmt.Errorf("failed to read %s: %w", key, err)
		}
		tx.reads[key] = d
		doc = d
	}
	if doc.Version == 0 {
		return false, nil
	}
	if err := json.Unmarshal(doc.Body, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (tx *Tx) put(key ports.DocumentKey, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, staged := tx.writes[key]; !staged {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = body
	return nil
}

func (tx *Tx) readSet() []ports.DocumentVersion {
	out := make([]ports.DocumentVersion, 0, len(tx.reads))
	for k, d := range tx.reads {
		out = append(out, ports.DocumentVersion{Key: k, Version: d.Version})
	}
	return out
}

// writeSet turns staged bodies into conditional writes. Keys that were never read are
// create-only: they must not exist at commit.
func (tx *Tx) writeSet() []ports.DocumentWrite {
	out := make([]ports.DocumentWrite, 0, len(tx.order))
	for _, k := range tx.order {
		w := ports.DocumentWrite{Key: k, Body: tx.writes[k]}
		if d, ok := tx.reads[k]; ok {
			w.ExpectedVersion = d.Version
		} else {
			w.CreateOnly = true
		}
		out = append(out, w)
	}
	return out
}

func PropertyKey(id uuid.UUID) ports.DocumentKey {
	return ports.DocumentKey{Kind: ports.KindProperty, ID: id.String()}
}

func InviteKey(code string) ports.DocumentKey {
	return ports.DocumentKey{Kind: ports.KindInvite, ID: code}
}

func TenantAssociationKey(tenantID uuid.UUID) ports.DocumentKey {
	return ports.DocumentKey{Kind: ports.KindTenantAssociation, ID: tenantID.String()}
}

func LandlordRosterKey(landlordID uuid.UUID) ports.DocumentKey {
	return ports.DocumentKey{Kind: ports.KindLandlordRoster, ID: landlordID.String()}
}

func decodeInvite(d *ports.Document) (*invite.InviteCode, error) {
	var c invite.InviteCode
	if err := json.Unmarshal(d.Body, &c); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.Key, err)
	}
	return &c, nil
}

// GetProperty returns apperr.ErrPropertyNotFound when absent.
func (tx *Tx) GetProperty(ctx context.Context, id uuid.UUID) (*property.Property, error) {
	var p property.Property
	ok, err := tx.get(ctx, PropertyKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrPropertyNotFound
	}
	return &p, nil
}

// PutProperty stages p after re-checking every unit's capacity invariant.
func (tx *Tx) PutProperty(p *property.Property) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid property: %w", err)
	}
	return tx.put(PropertyKey(p.ID), p)
}

// CreateProperty stages p as a new document; commit fails with ErrDuplicateKey if it exists.
func (tx *Tx) CreateProperty(p *property.Property) error {
	if _, read := tx.reads[PropertyKey(p.ID)]; read {
		return fmt.Errorf("property %s was read in this transaction and cannot be created", p.ID)
	}
	return tx.PutProperty(p)
}

// GetInvite returns apperr.ErrCodeNotFound when absent.
func (tx *Tx) GetInvite(ctx context.Context, code string) (*invite.InviteCode, error) {
	var c invite.InviteCode
	ok, err := tx.get(ctx, InviteKey(code), &c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrCodeNotFound
	}
	return &c, nil
}

func (tx *Tx) PutInvite(c *invite.InviteCode) error {
	return tx.put(InviteKey(c.Code), c)
}

// GetTenantAssociation returns an empty association when the tenant has none yet.
func (tx *Tx) GetTenantAssociation(ctx context.Context, tenantID uuid.UUID) (*tenancy.TenantAssociation, error) {
	a := tenancy.TenantAssociation{TenantID: tenantID}
	if _, err := tx.get(ctx, TenantAssociationKey(tenantID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (tx *Tx) PutTenantAssociation(a *tenancy.TenantAssociation) error {
	return tx.put(TenantAssociationKey(a.TenantID), a)
}

// GetLandlordRoster returns an empty roster when the landlord has none yet.
func (tx *Tx) GetLandlordRoster(ctx context.Context, landlordID uuid.UUID) (*tenancy.LandlordRoster, error) {
	r := tenancy.LandlordRoster{LandlordID: landlordID}
	if _, err := tx.get(ctx, LandlordRosterKey(landlordID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (tx *Tx) PutLandlordRoster(r *tenancy.LandlordRoster) error {
	return tx.put(LandlordRosterKey(r.LandlordID), r)
}
