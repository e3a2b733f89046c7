package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store operations
const (
	OpCreate  = "create"
	OpGet     = "get"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpResolve = "resolve"
	OpLink    = "link"
)

// Store reads and writes records of any entity in the registry.
//
// Create and Update validate the record against the entity declaration and
// check that every reference points at an existing row in the same
// transaction. Delete applies the delete policy of every relationship below
// the record, recursively and atomically.
type Store struct {
	db      *gorm.DB
	reg     *schema.Registry
	logger  *zap.Logger
	metrics *telemetry.StoreMetrics
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for operation logs
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithStoreMetrics records operation counts and durations
func WithStoreMetrics(m *telemetry.StoreMetrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a store over db for the entities of reg.
// It fails if the persistence models have drifted from the registry.
func NewStore(db *gorm.DB, reg *schema.Registry, opts ...StoreOption) (*Store, error) {
	if err := models.Verify(reg); err != nil {
		return nil, fmt.Errorf("models do not match the registry: %w", err)
	}
	s := &Store{db: db, reg: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Registry returns the registry the store serves
func (s *Store) Registry() *schema.Registry {
	return s.reg
}

// Create validates rec and inserts it as a new record of entity.
// The returned model carries the assigned primary key.
func (s *Store) Create(ctx context.Context, entity string, rec schema.Record) (m models.Model, err error) {
	ctx, done := s.observe(ctx, OpCreate, entity)
	defer func() { done(err) }()

	return s.create(ctx, entity, rec)
}

func (s *Store) create(ctx context.Context, entity string, rec schema.Record) (models.Model, error) {
	e, b, err := s.lookup(entity)
	if err != nil {
		return nil, err
	}
	clean, err := s.reg.ValidateRecord(entity, rec, schema.ModeCreate)
	if err != nil {
		return nil, err
	}

	m := b.New()
	m.Assign(clean)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkReferences(tx, e, clean); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(m).Error
	})
	if err != nil {
		return nil, TranslateError(err)
	}

	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrRecordID.Int64(m.GetID()))
	return m, nil
}

// Get returns the record of entity with the given id
func (s *Store) Get(ctx context.Context, entity string, id int64) (m models.Model, err error) {
	ctx, done := s.observe(ctx, OpGet, entity, telemetry.AttrRecordID.Int64(id))
	defer func() { done(err) }()

	return s.get(s.db.WithContext(ctx), entity, id)
}

// Update applies the fields present in rec to an existing record.
// Absent fields keep their value; a nil value clears an optional field.
func (s *Store) Update(ctx context.Context, entity string, id int64, rec schema.Record) (m models.Model, err error) {
	ctx, done := s.observe(ctx, OpUpdate, entity, telemetry.AttrRecordID.Int64(id))
	defer func() { done(err) }()

	e, _, err := s.lookup(entity)
	if err != nil {
		return nil, err
	}
	clean, err := s.reg.ValidateRecord(entity, rec, schema.ModeUpdate)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.get(tx, entity, id)
		if err != nil {
			return err
		}
		m = current
		if len(clean) == 0 {
			return nil
		}
		if err := s.checkReferences(tx, e, clean); err != nil {
			return err
		}
		if err := tx.Model(m).Omit(clause.Associations).Updates(map[string]any(clean)).Error; err != nil {
			return err
		}
		m.Assign(clean)
		return nil
	})
	if err != nil {
		return nil, TranslateError(err)
	}
	return m, nil
}

// Delete removes a record after applying the delete policy of every
// relationship in which entity is the parent. A RESTRICT relationship with
// remaining children aborts the whole delete with shared.ErrReferenced.
func (s *Store) Delete(ctx context.Context, entity string, id int64) (err error) {
	ctx, done := s.observe(ctx, OpDelete, entity, telemetry.AttrRecordID.Int64(id))
	defer func() { done(err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.get(tx, entity, id); err != nil {
			return err
		}
		return s.deleteTree(tx, entity, id)
	})
	return TranslateError(err)
}

func (s *Store) deleteTree(tx *gorm.DB, entity string, id int64) error {
	e, b, err := s.lookup(entity)
	if err != nil {
		return err
	}

	for _, rel := range s.reg.ChildRelationships(entity) {
		child, cb, err := s.lookup(rel.Child)
		if err != nil {
			return err
		}
		children := func() *gorm.DB {
			return tx.Model(cb.New()).Where(rel.ForeignKey+" = ?", id)
		}

		switch rel.OnDelete {
		case schema.Restrict:
			var n int64
			if err := children().Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s %d still has %d %s record(s) through %s",
					shared.ErrReferenced, entity, id, n, rel.Child, rel.Name)
			}
		case schema.Cascade:
			var ids []int64
			if err := children().Pluck(child.PrimaryKey, &ids).Error; err != nil {
				return err
			}
			for _, childID := range ids {
				if err := s.deleteTree(tx, rel.Child, childID); err != nil {
					return err
				}
			}
		case schema.SetNull:
			if err := children().Update(rel.ForeignKey, nil).Error; err != nil {
				return err
			}
		}
	}

	return tx.Where(e.PrimaryKey+" = ?", id).Delete(b.New()).Error
}

// List returns one page of records of entity.
//
// filter.Filters holds equality conditions keyed by field name; values are
// validated like record values. OrderBy must be a sortable column and
// falls back to the primary key.
func (s *Store) List(ctx context.Context, entity string, filter shared.Filter) (page shared.Paginated[models.Model], err error) {
	ctx, done := s.observe(ctx, OpList, entity)
	defer func() { done(err) }()

	e, b, err := s.lookup(entity)
	if err != nil {
		return page, err
	}

	query := s.db.WithContext(ctx).Model(b.New())
	query, err = s.applyFilters(query, e, filter.Filters)
	if err != nil {
		return page, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return page, TranslateError(err)
	}

	filter = filter.Normalize()
	for _, col := range orderColumns(e, s.reg.SortableColumns(entity), filter.OrderBy, filter.OrderDir) {
		query = query.Order(col)
	}
	items, err := b.Find(query.Offset(filter.Offset()).Limit(filter.PageSize))
	if err != nil {
		return page, TranslateError(err)
	}

	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func (s *Store) applyFilters(query *gorm.DB, e schema.Entity, filters map[string]any) (*gorm.DB, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == e.PrimaryKey {
			query = query.Where(k+" = ?", filters[k])
			continue
		}
		clean, err := s.reg.ValidateRecord(e.Name, schema.Record{k: filters[k]}, schema.ModeUpdate)
		if err != nil {
			return nil, err
		}
		if v := clean[k]; v != nil {
			query = query.Where(k+" = ?", v)
		} else {
			query = query.Where(k + " IS NULL")
		}
	}
	return query, nil
}

// Resolve follows a navigation from the record (entity, id): a collection
// returns the child records, a back reference returns the single parent and
// a many-to-many navigation returns the records on the far side of the
// junction. Results are ordered by primary key.
func (s *Store) Resolve(ctx context.Context, entity string, id int64, navigation string) (items []models.Model, err error) {
	ctx, done := s.observe(ctx, OpResolve, entity,
		telemetry.AttrRecordID.Int64(id), telemetry.AttrNavigation.String(navigation))
	defer func() { done(err) }()

	nav, err := s.reg.Navigate(entity, navigation)
	if err != nil {
		return nil, err
	}
	return s.resolve(s.db.WithContext(ctx), nav, id)
}

// Parent returns the record a back reference points at, or nil when the
// reference is unset.
func (s *Store) Parent(ctx context.Context, entity string, id int64, backReference string) (models.Model, error) {
	items, err := s.resolveKind(ctx, entity, id, backReference, schema.ToOne)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// Children returns the records in a collection of the parent record
func (s *Store) Children(ctx context.Context, entity string, id int64, collection string) ([]models.Model, error) {
	return s.resolveKind(ctx, entity, id, collection, schema.ToMany)
}

// Related returns the records linked to (entity, id) through a junction
func (s *Store) Related(ctx context.Context, entity string, id int64, name string) ([]models.Model, error) {
	return s.resolveKind(ctx, entity, id, name, schema.ManyToManyKind)
}

// Link creates the junction record that relates (entity, id) to targetID
// through a many-to-many navigation. attrs holds any extra junction fields.
func (s *Store) Link(ctx context.Context, entity string, id int64, navigation string, targetID int64, attrs schema.Record) (m models.Model, err error) {
	ctx, done := s.observe(ctx, OpLink, entity,
		telemetry.AttrRecordID.Int64(id), telemetry.AttrNavigation.String(navigation))
	defer func() { done(err) }()

	nav, err := s.navigateKind(entity, navigation, schema.ManyToManyKind)
	if err != nil {
		return nil, err
	}
	rec := make(schema.Record, len(attrs)+2)
	for k, v := range attrs {
		rec[k] = v
	}
	rec[nav.Near.ForeignKey] = id
	rec[nav.Far.ForeignKey] = targetID
	return s.create(ctx, nav.Through, rec)
}

func (s *Store) resolveKind(ctx context.Context, entity string, id int64, name string, kind schema.NavigationKind) ([]models.Model, error) {
	if _, err := s.navigateKind(entity, name, kind); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, entity, id, name)
}

func (s *Store) navigateKind(entity, name string, kind schema.NavigationKind) (schema.Navigation, error) {
	nav, err := s.reg.Navigate(entity, name)
	if err != nil {
		return nav, err
	}
	if nav.Kind != kind {
		return nav, fmt.Errorf("%w: %s.%s is %s, not %s", shared.ErrUnknownNavigation, entity, name, nav.Kind, kind)
	}
	return nav, nil
}

func (s *Store) resolve(tx *gorm.DB, nav schema.Navigation, id int64) ([]models.Model, error) {
	source, err := s.get(tx, nav.Entity, id)
	if err != nil {
		return nil, err
	}
	target, tb, err := s.lookup(nav.Target)
	if err != nil {
		return nil, err
	}
	byID := clause.OrderByColumn{Column: clause.Column{Name: target.PrimaryKey}}

	var items []models.Model
	switch nav.Kind {
	case schema.ToMany:
		items, err = tb.Find(tx.Where(nav.Relationship.ForeignKey+" = ?", id).Order(byID))
	case schema.ToOne:
		ref, _ := source.Attributes()[nav.Relationship.ForeignKey].(int64)
		if ref == 0 {
			return nil, nil
		}
		parent, err := s.get(tx, nav.Target, ref)
		if err != nil {
			return nil, err
		}
		return []models.Model{parent}, nil
	case schema.ManyToManyKind:
		_, jb, err := s.lookup(nav.Through)
		if err != nil {
			return nil, err
		}
		linked := tx.Model(jb.New()).Select(nav.Far.ForeignKey).Where(nav.Near.ForeignKey+" = ?", id)
		items, err = tb.Find(tx.Where(target.PrimaryKey+" IN (?)", linked).Order(byID))
		if err != nil {
			return nil, TranslateError(err)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: navigation kind %q", shared.ErrUnknownNavigation, nav.Kind)
	}
	if err != nil {
		return nil, TranslateError(err)
	}
	return items, nil
}

func (s *Store) get(tx *gorm.DB, entity string, id int64) (models.Model, error) {
	e, b, err := s.lookup(entity)
	if err != nil {
		return nil, err
	}
	m := b.New()
	if err := tx.First(m, e.PrimaryKey+" = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s %d", shared.ErrNotFound, entity, id)
		}
		return nil, TranslateError(err)
	}
	return m, nil
}

// checkReferences fails with shared.ErrDanglingReference for every reference
// in rec whose target row does not exist.
func (s *Store) checkReferences(tx *gorm.DB, e schema.Entity, rec schema.Record) error {
	var errs []error
	for _, f := range e.ReferenceFields() {
		ref, ok := rec[f.Name].(int64)
		if !ok {
			continue
		}
		target, tb, err := s.lookup(f.References)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(tb.New()).Where(target.PrimaryKey+" = ?", ref).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			errs = append(errs, fmt.Errorf("%w: %s.%s = %d: no %s with that id",
				shared.ErrDanglingReference, e.Name, f.Name, ref, f.References))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) lookup(entity string) (schema.Entity, models.Binding, error) {
	e, err := s.reg.MustEntity(entity)
	if err != nil {
		return e, models.Binding{}, err
	}
	b, ok := models.For(entity)
	if !ok {
		return e, b, fmt.Errorf("%w: no model bound to %s", shared.ErrUnknownEntity, entity)
	}
	return e, b, nil
}

// observe opens the span, and returns a func that closes it and records the
// metrics and operation log.
func (s *Store) observe(ctx context.Context, op, entity string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	if logger.GetOperation(ctx) == "" {
		ctx = logger.WithOperation(ctx, op)
	}
	ctx, span := telemetry.StartStoreSpan(ctx, op, entity, attrs...)

	return ctx, func(err error) {
		telemetry.Finish(span, err)
		s.metrics.Record(ctx, op, entity, started, err)

		log := logger.Enrich(ctx, s.logger).With(
			zap.String("entity", entity),
			zap.Duration("duration", time.Since(started)),
		)
		switch outcome := telemetry.Outcome(err); outcome {
		case "ok":
			log.Debug("store operation completed")
		case "error":
			log.Error("store operation failed", zap.Error(err))
		default:
			log.Info("store operation rejected", zap.String("outcome", outcome), zap.Error(err))
		}
	}
}
