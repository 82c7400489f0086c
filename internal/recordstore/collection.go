// Package recordstore persists homogeneous record collections as whole
// documents. Every operation re-reads the resource; writes replace it
// atomically through the backend while holding the resource lock.
package recordstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"projecttracker/internal/blob"
	"projecttracker/internal/logging"
	"projecttracker/internal/metrics"
	"projecttracker/internal/serialize"
	"projecttracker/pkg/domain"
)

// ErrSkipWrite may be returned by a Mutate callback to end the operation
// successfully without rewriting the resource.
var ErrSkipWrite = errors.New("recordstore: skip write")

// Option configures a Collection.
type Option func(*settings)

type settings struct {
	key           string
	locker        *Locker
	locking       bool
	createMissing bool
	logger        *zap.Logger
	metrics       metrics.Recorder
}

// WithKey stores the collection under key instead of "<resource>.json".
func WithKey(key string) Option {
	return func(s *settings) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLocker shares l between collections so multi-resource scopes coordinate.
func WithLocker(l *Locker) Option { return func(s *settings) { s.locker = l } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *settings) { s.logger = logging.OrNop(l) } }

// WithMetrics sets the operation recorder.
func WithMetrics(r metrics.Recorder) Option { return func(s *settings) { s.metrics = metrics.OrNop(r) } }

// WithCreateMissing controls whether an absent resource loads as an empty
// collection (true, the default) or fails with ErrStorageUnavailable.
func WithCreateMissing(v bool) Option { return func(s *settings) { s.createMissing = v } }

// WithoutLocking disables the resource lock. Concurrent writers then race
// and can lose updates; it exists to demonstrate exactly that.
func WithoutLocking() Option { return func(s *settings) { s.locking = false } }

// Collection is a named resource holding records of type T.
type Collection[T any] struct {
	resource string
	entity   domain.EntityType
	store    blob.Store
	fields   domain.FieldAccessor[T]
	settings
}

// New binds a collection of T to resource on store.
func New[T any](store blob.Store, resource string, entity domain.EntityType, fields domain.FieldAccessor[T], opts ...Option) *Collection[T] {
	s := settings{
		key:           resource + ".json",
		locking:       true,
		createMissing: true,
		logger:        zap.NewNop(),
		metrics:       metrics.Nop{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.locker == nil {
		s.locker = NewLocker()
	}
	s.logger = s.logger.With(zap.String("resource", resource))
	return &Collection[T]{resource: resource, entity: entity, store: store, fields: fields, settings: s}
}

// Resource returns the resource name, which is also the lock name.
func (c *Collection[T]) Resource() string { return c.resource }

// Key returns the storage key of the document.
func (c *Collection[T]) Key() string { return c.key }

// Entity returns the entity type of the records.
func (c *Collection[T]) Entity() domain.EntityType { return c.entity }

// Locker returns the locker guarding the resource.
func (c *Collection[T]) Locker() *Locker { return c.locker }

// LoadAll reads every record of the resource.
func (c *Collection[T]) LoadAll(ctx context.Context) (records []T, err error) {
	defer c.observe(ctx, "load", time.Now(), &err)
	ctx, release, err := c.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer release()
	return c.read(ctx)
}

// FindOneByField returns the first record whose field equals value. Values
// are compared with ==, so value must have the field's exact type.
func (c *Collection[T]) FindOneByField(ctx context.Context, field string, value any) (record T, err error) {
	defer c.observe(ctx, "find", time.Now(), &err)
	if err := c.checkField(field); err != nil {
		return record, err
	}
	ctx, release, err := c.lock(ctx, false)
	if err != nil {
		return record, err
	}
	defer release()
	records, err := c.read(ctx)
	if err != nil {
		return record, err
	}
	i := c.indexOf(records, field, value)
	if i < 0 {
		return record, domain.NotFoundError{Entity: c.entity, Field: field, Value: value}
	}
	return records[i], nil
}

// FindAll returns every record accepted by match, in stored order.
func (c *Collection[T]) FindAll(ctx context.Context, match func(T) bool) (out []T, err error) {
	defer c.observe(ctx, "find_all", time.Now(), &err)
	ctx, release, err := c.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer release()
	records, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	out = []T{}
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Insert appends record to the resource.
func (c *Collection[T]) Insert(ctx context.Context, record T) (err error) {
	defer c.observe(ctx, "insert", time.Now(), &err)
	return c.mutate(ctx, func(records []T) ([]T, error) {
		return append(records, record), nil
	})
}

// DeleteOneByField removes the first record whose field equals value.
func (c *Collection[T]) DeleteOneByField(ctx context.Context, field string, value any) (err error) {
	defer c.observe(ctx, "delete", time.Now(), &err)
	if err := c.checkField(field); err != nil {
		return err
	}
	return c.mutate(ctx, func(records []T) ([]T, error) {
		i := c.indexOf(records, field, value)
		if i < 0 {
			return nil, domain.NotFoundError{Entity: c.entity, Field: field, Value: value}
		}
		return append(records[:i], records[i+1:]...), nil
	})
}

// UpdateOneByField replaces the first record whose field equals value with
// record. It reports false, and writes nothing, when no record matched.
func (c *Collection[T]) UpdateOneByField(ctx context.Context, field string, value any, record T) (updated bool, err error) {
	defer c.observe(ctx, "update", time.Now(), &err)
	if err := c.checkField(field); err != nil {
		return false, err
	}
	err = c.mutate(ctx, func(records []T) ([]T, error) {
		i := c.indexOf(records, field, value)
		if i < 0 {
			return nil, ErrSkipWrite
		}
		records[i] = record
		updated = true
		return records, nil
	})
	return updated, err
}

// SaveAll overwrites the resource with records.
func (c *Collection[T]) SaveAll(ctx context.Context, records []T) (err error) {
	defer c.observe(ctx, "save", time.Now(), &err)
	ctx, release, err := c.lock(ctx, true)
	if err != nil {
		return err
	}
	defer release()
	return c.write(ctx, records)
}

// Mutate runs fn on the current records and writes its result, all within
// one lock scope. If fn returns ErrSkipWrite nothing is written and Mutate
// returns nil; any other error aborts without writing.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) (err error) {
	defer c.observe(ctx, "mutate", time.Now(), &err)
	return c.mutate(ctx, fn)
}

func (c *Collection[T]) mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	ctx, release, err := c.lock(ctx, true)
	if err != nil {
		return err
	}
	defer release()
	records, err := c.read(ctx)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.write(ctx, next)
}

func (c *Collection[T]) lock(ctx context.Context, write bool) (context.Context, func(), error) {
	if !c.locking {
		return ctx, func() {}, nil
	}
	claims := Claims{Read: []string{c.resource}}
	if write {
		claims = Claims{Write: []string{c.resource}}
	}
	return c.locker.Acquire(ctx, claims)
}

func (c *Collection[T]) checkField(field string) error {
	if _, ok := c.fields.Lookup(*new(T), field); !ok {
		return domain.SchemaError{Resource: c.resource, Field: field}
	}
	return nil
}

func (c *Collection[T]) indexOf(records []T, field string, value any) int {
	for i, r := range records {
		if v, ok := c.fields.Lookup(r, field); ok && v == value {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) read(ctx context.Context) ([]T, error) {
	_, rc, err := c.store.Get(ctx, c.key)
	if errors.Is(err, blob.ErrNotFound) && c.createMissing {
		c.logger.Debug("resource missing, treating as empty", zap.String("key", c.key))
		return []T{}, nil
	}
	if err != nil {
		return nil, c.storageErr("read", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, c.storageErr("read", domain.ErrStorageUnavailable, err)
	}
	records, err := serialize.UnmarshalDocument[T](b)
	if err != nil {
		c.logger.Warn("corrupt resource", zap.String("key", c.key), zap.Error(err))
		return nil, c.storageErr("read", domain.ErrCorruptFormat, err)
	}
	return records, nil
}

func (c *Collection[T]) write(ctx context.Context, records []T) error {
	b, err := serialize.MarshalDocument(records)
	if err != nil {
		return c.storageErr("write", domain.ErrCorruptFormat, err)
	}
	if _, err := c.store.Put(ctx, c.key, bytes.NewReader(b), blob.PutOptions{ContentType: "application/json"}); err != nil {
		return c.storageErr("write", domain.ErrStorageUnavailable, err)
	}
	c.logger.Debug("resource written", zap.String("key", c.key), zap.Int("records", len(records)))
	return nil
}

func (c *Collection[T]) storageErr(op string, kind, err error) error {
	return &domain.StorageError{Resource: c.resource, Op: op, Kind: kind, Err: err}
}

func (c *Collection[T]) observe(ctx context.Context, op string, start time.Time, errp *error) {
	c.metrics.Observe(ctx, c.resource, op, *errp, time.Since(start))
	if *errp != nil && !errors.Is(*errp, domain.ErrNotFound) {
		c.logger.Debug("operation failed", zap.String("op", op), zap.Error(*errp))
	}
}
