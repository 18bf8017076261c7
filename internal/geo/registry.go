package geo

import (
	"fmt"
	"sort"
	"sync"
)

// Factory opens a database file for a backend.
type Factory func(path string) (Resolver, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register is called by backend packages in their init() to self-register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("geo: backend %q already registered", name))
	}
	factories[name] = f
}

// Registered returns the sorted names of all registered backends.
func Registered() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open opens the database at path with the named backend. The caller owns
// the returned Resolver and must Close it.
func Open(backend, path string) (Resolver, error) {
	mu.Lock()
	f, ok := factories[backend]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported geolocation backend: %q (registered: %v)", backend, Registered())
	}
	return f(path)
}
