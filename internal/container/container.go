// Package container resolves capabilities (usually interfaces) to
// implementations registered as transient constructors, lazily built
// singletons, or factories.
//
// Capabilities are keyed by the static type parameter, so a registration can
// only ever produce values that satisfy it.
//
// Cycles are detected along one resolution chain. Two goroutines that start
// from different singletons of one cycle at the same moment (A needs B, B needs
// A) wait on each other's construction; wire cyclic graphs from a single
// goroutine at startup or, better, do not build them.
package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/sandevgo/mythic/internal/core"
	"golang.org/x/sync/singleflight"
)

// ErrSealed is returned when registering a capability that was already resolved.
var ErrSealed = errors.New("capability already resolved")

type lifetime int

const (
	transient lifetime = iota
	singleton
	factory
)

func (l lifetime) String() string {
	switch l {
	case singleton:
		return "singleton"
	case factory:
		return "factory"
	default:
		return "transient"
	}
}

type registration struct {
	lifetime lifetime
	build    func(s *scope) (any, error)
}

// Resolver is handed to constructors; resolving through it extends the
// current resolution chain.
type Resolver interface {
	Context() context.Context
	scope() *scope
}

type Container struct {
	mu        sync.Mutex
	regs      map[reflect.Type]*registration
	sealed    map[reflect.Type]bool
	instances map[reflect.Type]any
	group     singleflight.Group
}

func New() *Container {
	return &Container{
		regs:      make(map[reflect.Type]*registration),
		sealed:    make(map[reflect.Type]bool),
		instances: make(map[reflect.Type]any),
	}
}

func (c *Container) Context() context.Context { return context.Background() }

func (c *Container) scope() *scope {
	return &scope{c: c, ctx: context.Background()}
}

// Register adds a transient constructor: every resolve builds a new value.
func Register[T any](c *Container, ctor func(r Resolver) (T, error)) error {
	return c.register(reflect.TypeFor[T](), transient, func(s *scope) (any, error) {
		return ctor(s)
	})
}

// RegisterSingleton adds a constructor whose first successful result is cached.
// Concurrent first resolutions share one construction. Failures are not cached.
func RegisterSingleton[T any](c *Container, ctor func(r Resolver) (T, error)) error {
	return c.register(reflect.TypeFor[T](), singleton, func(s *scope) (any, error) {
		return ctor(s)
	})
}

// RegisterInstance registers an already built singleton.
func RegisterInstance[T any](c *Container, v T) error {
	return RegisterSingleton(c, func(Resolver) (T, error) { return v, nil })
}

// RegisterFactory adds caller-supplied creation logic that receives the
// context of the resolve call. Resolution semantics match Register.
func RegisterFactory[T any](c *Container, fn func(ctx context.Context, r Resolver) (T, error)) error {
	return c.register(reflect.TypeFor[T](), factory, func(s *scope) (any, error) {
		return fn(s.ctx, s)
	})
}

func (c *Container) register(key reflect.Type, lt lifetime, build func(*scope) (any, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sealed[key] {
		return fmt.Errorf("register %s %s: %w", lt, typeName(key), ErrSealed)
	}
	c.regs[key] = &registration{lifetime: lt, build: build}
	delete(c.instances, key)
	return nil
}

// Resolve builds or returns the value registered for T using the resolver's context.
func Resolve[T any](r Resolver) (T, error) {
	return ResolveContext[T](r.Context(), r)
}

func ResolveContext[T any](ctx context.Context, r Resolver) (T, error) {
	var zero T
	key := reflect.TypeFor[T]()

	s := r.scope()
	raw, err := (&scope{c: s.c, ctx: ctx, chain: s.chain}).resolve(key)
	if err != nil {
		return zero, err
	}

	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("constructor for %s returned %T", typeName(key), raw)
	}
	return v, nil
}

// MustResolve is Resolve for wiring code where a failure is a programming error.
func MustResolve[T any](r Resolver) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// Capabilities lists registered capability names in sorted order.
func (c *Container) Capabilities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.regs))
	for key, reg := range c.regs {
		names = append(names, typeName(key)+" ("+reg.lifetime.String()+")")
	}
	sort.Strings(names)
	return names
}

func (c *Container) lookup(key reflect.Type) (*registration, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.regs[key]
	if !ok {
		return nil, nil, false
	}
	c.sealed[key] = true
	return reg, c.instances[key], true
}

func (c *Container) cached(key reflect.Type) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.instances[key]
	return v, ok
}

func (c *Container) store(key reflect.Type, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[key] = v
}

type scope struct {
	c     *Container
	ctx   context.Context
	chain []reflect.Type
}

func (s *scope) Context() context.Context { return s.ctx }
func (s *scope) scope() *scope             { return s }

func (s *scope) resolve(key reflect.Type) (any, error) {
	if slices.Contains(s.chain, key) {
		names := make([]string, 0, len(s.chain)+1)
		for _, k := range s.chain {
			names = append(names, typeName(k))
		}
		return nil, &core.CircularDependencyError{Chain: append(names, typeName(key))}
	}

	reg, instance, ok := s.c.lookup(key)
	if !ok {
		return nil, &core.UnregisteredCapabilityError{Capability: typeName(key)}
	}

	child := &scope{c: s.c, ctx: s.ctx, chain: append(slices.Clip(s.chain), key)}

	if reg.lifetime != singleton {
		return safeBuild(reg, child)
	}
	if instance != nil {
		return instance, nil
	}

	// Concurrent callers share one build, so it must not end with the
	// cancellation of whichever caller happened to start it.
	child.ctx = context.WithoutCancel(s.ctx)
	v, err, _ := s.c.group.Do(flightKey(key), func() (any, error) {
		if v, ok := s.c.cached(key); ok {
			return v, nil
		}
		v, err := safeBuild(reg, child)
		if err != nil {
			return nil, err
		}
		s.c.store(key, v)
		return v, nil
	})
	return v, err
}

func safeBuild(reg *registration, s *scope) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	return reg.build(s)
}

func typeName(t reflect.Type) string {
	return t.String()
}

func flightKey(t reflect.Type) string {
	if t.PkgPath() != "" && t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
