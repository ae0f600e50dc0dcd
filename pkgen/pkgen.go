// Package pkgen reserves primary key values for new rows before their INSERT
// statements are translated.
//
// Four strategies are provided: database sequences, a lookup table
// (AUTO_PK_SUPPORT) holding the next free value per table, identity columns
// whose values are only known after the INSERT, and random UUIDs. Sequence
// and lookup table keys are reserved in blocks and cached in memory, so most
// calls to Generate do not reach the database.
//
//	keys := pkgen.NewProvider(adapter)
//	if err := keys.Setup(ctx, drv, registry.Entities()); err != nil {
//		return err
//	}
//	id, err := keys.Generate(ctx, tx, registry.MustEntity("Artist"))
package pkgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
)

const (
	// DefaultCacheSize is the number of keys reserved per round trip.
	DefaultCacheSize = 20
	// InitialValue is the first key handed out for a new table.
	InitialValue = 200
)

// Generator is a key generation strategy.
type Generator interface {
	// Generate returns a new key for e. Strategies with PostInsert set
	// return nil; the key is read back after the INSERT.
	Generate(ctx context.Context, ex dialect.ExecQuerier, e *schema.Entity) (any, error)
	// PostInsert reports that keys are assigned by the database on INSERT.
	PostInsert() bool
	// SetupStatements returns the DDL creating the objects backing the keys
	// of entities.
	SetupStatements(entities []*schema.Entity) []string
	// DropStatements returns the DDL dropping them.
	DropStatements(entities []*schema.Entity) []string
	// Setup creates the missing backing objects. It may be run repeatedly.
	Setup(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error
	// Teardown drops the existing backing objects.
	Teardown(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error
}

// Provider dispatches key generation to the strategy of each entity. It
// owns the key caches of its strategies and is safe for concurrent use.
type Provider struct {
	adapter   dialect.Adapter
	strategy  map[schema.PKGeneration]Generator
	cacheSize int
	log       *sql.QueryLogger

	setup singleflight.Group
	mu    sync.Mutex
	done  map[string]struct{}
}

// Option configures a Provider.
type Option func(*Provider)

// WithCacheSize sets the number of keys reserved per round trip for
// entities that do not set their own KeyCacheSize. Values below 1 disable
// caching.
func WithCacheSize(n int) Option {
	return func(p *Provider) {
		p.cacheSize = max(n, 1)
	}
}

// WithQueryLogger logs key generation statements and the generated keys.
func WithQueryLogger(l *sql.QueryLogger) Option {
	return func(p *Provider) {
		p.log = l
	}
}

// NewProvider returns the key provider of an adapter.
func NewProvider(a dialect.Adapter, opts ...Option) *Provider {
	p := &Provider{
		adapter:   a,
		cacheSize: DefaultCacheSize,
		done:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.strategy = map[schema.PKGeneration]Generator{
		schema.PKLookup:   NewLookupTable(a, p.cacheSize, p.log),
		schema.PKIdentity: Identity{},
		schema.PKUUID:     UUID{},
	}
	if a.Sequences() != nil {
		p.strategy[schema.PKSequence] = NewSequence(a, p.cacheSize, p.log)
	}
	return p
}

// Adapter returns the adapter keys are generated for.
func (p *Provider) Adapter() dialect.Adapter { return p.adapter }

// ForEntity returns the generator of e: the strategy named by the entity,
// else the adapter default. Sequence keys fall back to the lookup table on
// adapters without sequences.
func (p *Provider) ForEntity(e *schema.Entity) Generator {
	s := dialect.KeyStrategy(p.adapter, e)
	if g, ok := p.strategy[s]; ok {
		return g
	}
	return p.strategy[schema.PKLookup]
}

// PostInsert reports whether the keys of e are assigned by the database.
func (p *Provider) PostInsert(e *schema.Entity) bool {
	return p.ForEntity(e).PostInsert()
}

// Generate returns a new key for e. Entities with a single BINARY or
// VARBINARY key column get random bytes of the column length unless they
// use identity or UUID keys. Failures are returned as
// strata.KeyGenerationError.
func (p *Provider) Generate(ctx context.Context, ex dialect.ExecQuerier, e *schema.Entity) (any, error) {
	pk := e.PrimaryKey()
	if len(pk) != 1 {
		return nil, strata.NewKeyGenerationError(e.Name, fmt.Errorf("pkgen: %d primary key columns, want 1", len(pk)))
	}
	g := p.ForEntity(e)
	if _, isUUID := g.(UUID); !isUUID && !g.PostInsert() {
		if key, ok := binaryKey(pk[0]); ok {
			return key, nil
		}
	}
	key, err := g.Generate(ctx, ex, e)
	if err != nil {
		return nil, strata.NewKeyGenerationError(e.Name, err)
	}
	if key != nil {
		p.log.LogGeneratedKey(ctx, e.Name, key)
	}
	return key, nil
}

// SetupStatements returns the DDL of the key support objects of entities,
// sequences first.
func (p *Provider) SetupStatements(entities []*schema.Entity) []string {
	var stmts []string
	p.each(entities, func(_ schema.PKGeneration, g Generator, group []*schema.Entity) {
		stmts = append(stmts, g.SetupStatements(group)...)
	})
	return stmts
}

// DropStatements returns the DDL dropping the key support objects.
func (p *Provider) DropStatements(entities []*schema.Entity) []string {
	var stmts []string
	p.each(entities, func(_ schema.PKGeneration, g Generator, group []*schema.Entity) {
		stmts = append(stmts, g.DropStatements(group)...)
	})
	return stmts
}

// Setup creates the key support objects of entities. An entity is set up
// at most once per provider until Teardown. Setups of one strategy are
// serialized: concurrent callers share the running execution and then set
// up whatever of their own entities is still pending, so the backing
// objects are never created twice.
func (p *Provider) Setup(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	var err error
	p.each(entities, func(s schema.PKGeneration, g Generator, group []*schema.Entity) {
		if err != nil {
			return
		}
		err = p.setupGroup(ctx, ex, s, g, group)
	})
	if err != nil {
		return fmt.Errorf("pkgen: setup: %w", err)
	}
	return nil
}

func (p *Provider) setupGroup(ctx context.Context, ex dialect.ExecQuerier, s schema.PKGeneration, g Generator, group []*schema.Entity) error {
	key := p.adapter.Name() + ":" + string(s)
	for {
		if len(p.pending(group)) == 0 {
			return nil
		}
		ran := false
		_, err, _ := p.setup.Do(key, func() (any, error) {
			ran = true
			pending := p.pending(group)
			if len(pending) == 0 {
				return nil, nil
			}
			if err := g.Setup(ctx, ex, pending); err != nil {
				return nil, err
			}
			p.mark(pending, true)
			return nil, nil
		})
		if ran {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Teardown drops the key support objects of entities.
func (p *Provider) Teardown(ctx context.Context, ex dialect.ExecQuerier, entities []*schema.Entity) error {
	var errs []error
	p.each(entities, func(_ schema.PKGeneration, g Generator, group []*schema.Entity) {
		if err := g.Teardown(ctx, ex, group); err != nil {
			errs = append(errs, err)
			return
		}
		p.mark(group, false)
	})
	if err := strata.NewAggregateError(errs...); err != nil {
		return fmt.Errorf("pkgen: teardown: %w", err)
	}
	return nil
}

// each groups entities by generator and calls fn per group in a fixed
// strategy order. Entities without a generated key are skipped.
func (p *Provider) each(entities []*schema.Entity, fn func(schema.PKGeneration, Generator, []*schema.Entity)) {
	groups := make(map[schema.PKGeneration][]*schema.Entity)
	for _, e := range entities {
		if len(e.PrimaryKey()) != 1 {
			continue
		}
		s := dialect.KeyStrategy(p.adapter, e)
		if _, ok := p.strategy[s]; !ok {
			s = schema.PKLookup
		}
		groups[s] = append(groups[s], e)
	}
	for _, s := range []schema.PKGeneration{schema.PKSequence, schema.PKLookup, schema.PKIdentity, schema.PKUUID} {
		if group := groups[s]; len(group) > 0 {
			fn(s, p.strategy[s], group)
		}
	}
}

func (p *Provider) pending(entities []*schema.Entity) []*schema.Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	var pending []*schema.Entity
	for _, e := range entities {
		if _, ok := p.done[e.Name]; !ok {
			pending = append(pending, e)
		}
	}
	return pending
}

func (p *Provider) mark(entities []*schema.Entity, done bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entities {
		if done {
			p.done[e.Name] = struct{}{}
		} else {
			delete(p.done, e.Name)
		}
	}
}

// binaryKey returns random bytes for fixed length binary key columns.
func binaryKey(c *schema.Column) ([]byte, bool) {
	if c.Length <= 0 || (c.Type != schema.Binary && c.Type != schema.VarBinary) {
		return nil, false
	}
	b := make([]byte, c.Length)
	if _, err := rand.Read(b); err != nil {
		return nil, false
	}
	return b, true
}

// cacheSize returns the block size of e.
func cacheSize(e *schema.Entity, def int) int {
	if e.KeyCacheSize > 0 {
		return e.KeyCacheSize
	}
	return def
}

// keyRange is a reserved block of keys [next, last].
type keyRange struct {
	mu         sync.Mutex
	next, last int64
}

// ranges holds one key block per entity.
type ranges struct {
	mu sync.Mutex
	m  map[string]*keyRange
}

func (r *ranges) get(name string) *keyRange {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]*keyRange)
	}
	kr, ok := r.m[name]
	if !ok {
		kr = &keyRange{next: 1, last: 0}
		r.m[name] = kr
	}
	return kr
}

// next returns the next key of the entity block, reserving a new block of
// size keys through reserve when the current one is exhausted. Callers for
// the same entity are serialized; other entities are not blocked.
func (r *ranges) next(name string, size int, reserve func() (int64, error)) (int64, error) {
	kr := r.get(name)
	kr.mu.Lock()
	defer kr.mu.Unlock()
	if kr.next > kr.last {
		start, err := reserve()
		if err != nil {
			return 0, err
		}
		kr.next, kr.last = start, start+int64(size)-1
	}
	v := kr.next
	kr.next++
	return v, nil
}

// reset drops the cached blocks of entities.
func (r *ranges) reset(entities []*schema.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entities {
		delete(r.m, e.Name)
	}
}
