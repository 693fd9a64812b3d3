// Package hashlookup declares the shape of the hash-algorithm lookup
// shim that sits alongside the locked allocator in the original
// cryptography library. It is out of scope for this repo: lockmem
// never imports this package, and Find never does anything beyond
// consult the registry handed to it. It is declared here only so the
// seam the allocator explicitly does not cross is visible.
package hashlookup

// Request names a hash algorithm a caller is asking for, in whatever
// form the surrounding registry accepts (e.g. "SHA-256").
type Request string

// Factory is the name-keyed registry Find delegates to.
type Factory interface {
	// New constructs an Algorithm matching name, or returns ok == false
	// if the registry has no such algorithm.
	New(name Request) (alg Algorithm, ok bool)
}

// Algorithm is an opaque handle to a constructed hash algorithm
// instance. The allocator in this repo never looks inside one.
type Algorithm interface{}

// Find maps a Request to an Algorithm using factory, returning the
// first match. It does not cache, does not fall back to alternate
// factories, and has no relationship to the locked allocator.
func Find(request Request, factory Factory) (Algorithm, bool) {
	return factory.New(request)
}
