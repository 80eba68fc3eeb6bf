package catalog

// Keys of the routines the interceptor knows how to replace.
var (
	KeyLookupHost   = Key{Type: "net.Resolver", Signature: "LookupHost(context.Context,string) ([]string,error)"}
	KeyLookupIPAddr = Key{Type: "net.Resolver", Signature: "LookupIPAddr(context.Context,string) ([]net.IPAddr,error)"}
	KeyDialContext  = Key{Type: "net.Dialer", Signature: "DialContext(context.Context,string,string) (net.Conn,error)"}
	KeyEqualFold    = Key{Type: "strings", Signature: "EqualFold(string,string) bool", Static: true}
	KeyContains     = Key{Type: "slices", Signature: "Contains([]string,string) bool", Static: true}
)

func DefaultEntries() []Entry {
	return []Entry{
		{
			ID:          "Resolver_LookupHost_Replacement",
			Key:         KeyLookupHost,
			Replacement: ResolveHost,
			Category:    CategoryNet,
			Kind:        KindBehaviorAltering,
			Filter:      FilterAny,
		},
		{
			ID:          "Resolver_LookupIPAddr_Replacement",
			Key:         KeyLookupIPAddr,
			Replacement: ResolveAllHosts,
			Category:    CategoryNet,
			Kind:        KindBehaviorAltering,
			Filter:      FilterAny,
		},
		{
			ID:          "Dialer_DialContext_Replacement",
			Key:         KeyDialContext,
			Replacement: Dial,
			Category:    CategoryNet,
			Kind:        KindBehaviorAltering,
			Filter:      FilterAny,
		},
		{
			ID:          "Strings_EqualFold_Replacement",
			Key:         KeyEqualFold,
			Replacement: StringEquals,
			Category:    CategoryString,
			Kind:        KindTracker,
			Filter:      FilterAny,
		},
		{
			ID:          "Slices_Contains_Replacement",
			Key:         KeyContains,
			Replacement: CollectionContains,
			Category:    CategoryCollection,
			Kind:        KindTracker,
			Filter:      FilterAny,
		},
	}
}

// Default builds the catalog installed before any subject code runs.
func Default() *Catalog {
	b := NewBuilder()
	for _, e := range DefaultEntries() {
		_ = b.Register(e)
	}
	return b.MustBuild()
}
