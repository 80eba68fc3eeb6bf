// internal/catalog/catalog.go
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateRegistration = errors.New("duplicate replacement registration")
	ErrUnsafeRedirect        = errors.New("behavior-altering replacement outside a redirectable category")
	ErrInvalidEntry          = errors.New("invalid replacement entry")
)

type Category string

const (
	CategoryNet        Category = "net"
	CategoryString     Category = "string"
	CategoryCollection Category = "collection"
)

type Kind string

const (
	KindTracker          Kind = "tracker"
	KindBehaviorAltering Kind = "behavior_altering"
)

// Filter restricts which call sites an entry applies to.
type Filter string

const (
	FilterAny           Filter = "any"
	FilterGeneratedOnly Filter = "generated_only"
)

type Origin int

const (
	OriginSubject Origin = iota
	OriginGenerated
)

func (f Filter) Allows(o Origin) bool {
	switch f {
	case FilterAny, "":
		return true
	case FilterGeneratedOnly:
		return o == OriginGenerated
	default:
		return false
	}
}

// Replacement identifies one of the built-in replacement behaviors.
type Replacement string

const (
	ResolveHost        Replacement = "resolve_host"
	ResolveAllHosts    Replacement = "resolve_all_hosts"
	Dial               Replacement = "dial"
	StringEquals       Replacement = "string_equals"
	CollectionContains Replacement = "collection_contains"
)

func (r Replacement) known() bool {
	switch r {
	case ResolveHost, ResolveAllHosts, Dial, StringEquals, CollectionContains:
		return true
	}
	return false
}

type Key struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
	Static    bool   `json:"static"`
}

func (k Key) String() string {
	if k.Static {
		return fmt.Sprintf("%s.%s (static)", k.Type, k.Signature)
	}
	return fmt.Sprintf("%s.%s", k.Type, k.Signature)
}

type Entry struct {
	ID          string      `json:"id"`
	Key         Key         `json:"key"`
	Replacement Replacement `json:"replacement"`
	Category    Category    `json:"category"`
	Kind        Kind        `json:"kind"`
	Filter      Filter      `json:"filter"`
}

type routine struct {
	typ       string
	signature string
}

// Catalog is immutable once built, so Lookup needs no locking.
type Catalog struct {
	entries map[Key]Entry
}

func (c *Catalog) Lookup(key Key) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[key]
	return e, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type Builder struct {
	entries  map[Key]Entry
	routines map[routine]string
	ids      map[string]struct{}
	err      error
}

func NewBuilder() *Builder {
	return &Builder{
		entries:  map[Key]Entry{},
		routines: map[routine]string{},
		ids:      map[string]struct{}{},
	}
}

func (b *Builder) Register(e Entry) error {
	if err := validateEntry(e); err != nil {
		b.keep(err)
		return err
	}

	r := routine{typ: e.Key.Type, signature: e.Key.Signature}
	if owner, ok := b.routines[r]; ok {
		err := fmt.Errorf("%w: %s already bound to %q", ErrDuplicateRegistration, e.Key, owner)
		b.keep(err)
		return err
	}
	if _, ok := b.ids[e.ID]; ok {
		err := fmt.Errorf("%w: id %q", ErrDuplicateRegistration, e.ID)
		b.keep(err)
		return err
	}

	if e.Filter == "" {
		e.Filter = FilterAny
	}
	b.entries[e.Key] = e
	b.routines[r] = e.ID
	b.ids[e.ID] = struct{}{}
	return nil
}

func (b *Builder) keep(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build returns the first registration error, if any. The builder must not
// be reused afterwards.
func (b *Builder) Build() (*Catalog, error) {
	if b.err != nil {
		return nil, b.err
	}
	entries := make(map[Key]Entry, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Catalog{entries: entries}, nil
}

func (b *Builder) MustBuild() *Catalog {
	c, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return c
}

func validateEntry(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	if e.Key.Type == "" || e.Key.Signature == "" {
		return fmt.Errorf("%w: %q has an incomplete key", ErrInvalidEntry, e.ID)
	}
	if !e.Replacement.known() {
		return fmt.Errorf("%w: %q uses unknown replacement %q", ErrInvalidEntry, e.ID, e.Replacement)
	}
	switch e.Kind {
	case KindTracker:
	case KindBehaviorAltering:
		if e.Category != CategoryNet {
			return fmt.Errorf("%w: %q (category %s)", ErrUnsafeRedirect, e.ID, e.Category)
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %q", ErrInvalidEntry, e.ID, e.Kind)
	}
	switch e.Filter {
	case "", FilterAny, FilterGeneratedOnly:
	default:
		return fmt.Errorf("%w: %q has unknown filter %q", ErrInvalidEntry, e.ID, e.Filter)
	}
	return nil
}
