package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackerEntry(id string, key Key) Entry {
	return Entry{
		ID:          id,
		Key:         key,
		Replacement: StringEquals,
		Category:    CategoryString,
		Kind:        KindTracker,
	}
}

func TestDefault_RegistersBuiltins(t *testing.T) {
	c := Default()
	require.Equal(t, len(DefaultEntries()), c.Len())

	e, ok := c.Lookup(KeyLookupHost)
	require.True(t, ok)
	assert.Equal(t, ResolveHost, e.Replacement)
	assert.Equal(t, CategoryNet, e.Category)
	assert.Equal(t, FilterAny, e.Filter)

	entries := c.Entries()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].ID, entries[i].ID)
	}
}

func TestLookup_MissIsNotAnError(t *testing.T) {
	c := Default()
	_, ok := c.Lookup(Key{Type: "os", Signature: "Getenv(string) string", Static: true})
	assert.False(t, ok)

	// the static flag is part of the identity
	_, ok = c.Lookup(Key{Type: KeyLookupHost.Type, Signature: KeyLookupHost.Signature, Static: true})
	assert.False(t, ok)

	var nilCatalog *Catalog
	_, ok = nilCatalog.Lookup(KeyLookupHost)
	assert.False(t, ok)
}

func TestRegister_DuplicateKeyFails(t *testing.T) {
	b := NewBuilder()
	key := Key{Type: "strings", Signature: "EqualFold(string,string) bool", Static: true}
	require.NoError(t, b.Register(trackerEntry("first", key)))

	err := b.Register(trackerEntry("second", key))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))

	_, err = b.Build()
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))
}

func TestRegister_SameRoutineDifferentStaticFlagFails(t *testing.T) {
	b := NewBuilder()
	key := Key{Type: "strings", Signature: "EqualFold(string,string) bool", Static: true}
	require.NoError(t, b.Register(trackerEntry("first", key)))

	key.Static = false
	err := b.Register(trackerEntry("second", key))
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))
}

func TestRegister_DuplicateIDFails(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(trackerEntry("same", Key{Type: "a", Signature: "f()"})))
	err := b.Register(trackerEntry("same", Key{Type: "b", Signature: "g()"}))
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))
}

func TestRegister_BehaviorAlteringOnlyForNet(t *testing.T) {
	b := NewBuilder()
	e := trackerEntry("alter", Key{Type: "strings", Signature: "EqualFold(string,string) bool"})
	e.Kind = KindBehaviorAltering

	err := b.Register(e)
	assert.True(t, errors.Is(err, ErrUnsafeRedirect))
}

func TestRegister_RejectsMalformedEntries(t *testing.T) {
	cases := map[string]Entry{
		"empty id":            {Key: KeyLookupHost, Replacement: ResolveHost, Kind: KindTracker},
		"incomplete key":      {ID: "x", Key: Key{Type: "net.Resolver"}, Replacement: ResolveHost, Kind: KindTracker},
		"unknown replacement": {ID: "x", Key: KeyLookupHost, Replacement: "teleport", Kind: KindTracker},
		"unknown kind":        {ID: "x", Key: KeyLookupHost, Replacement: ResolveHost, Kind: "other"},
		"unknown filter":      {ID: "x", Key: KeyLookupHost, Replacement: ResolveHost, Kind: KindTracker, Filter: "sometimes"},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			err := NewBuilder().Register(e)
			assert.True(t, errors.Is(err, ErrInvalidEntry), "got %v", err)
		})
	}
}

func TestMustBuild_PanicsOnInvalidCatalog(t *testing.T) {
	b := NewBuilder()
	_ = b.Register(Entry{})
	assert.Panics(t, func() { b.MustBuild() })
}

func TestFilter_Allows(t *testing.T) {
	assert.True(t, FilterAny.Allows(OriginSubject))
	assert.True(t, FilterAny.Allows(OriginGenerated))
	assert.False(t, FilterGeneratedOnly.Allows(OriginSubject))
	assert.True(t, FilterGeneratedOnly.Allows(OriginGenerated))
	assert.False(t, Filter("bogus").Allows(OriginGenerated))
}

func TestLookup_ConcurrentReaders(t *testing.T) {
	c := Default()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if _, ok := c.Lookup(KeyDialContext); !ok {
					t.Errorf("expected dial entry")
					return
				}
			}
		}()
	}
	wg.Wait()
}
