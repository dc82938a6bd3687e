package schema

import (
	"fmt"
	"reflect"
	"sync"
)

type entry struct {
	once sync.Once
	cat  *Catalog
	err  error
}

// registry holds every catalog built in the process. Catalogs are built once per type.
var registry = struct {
	sync.RWMutex
	byType map[reflect.Type]*entry
	byName map[string]*Catalog
}{
	byType: make(map[reflect.Type]*entry),
	byName: make(map[string]*Catalog),
}

// For returns the catalog of T, building it on first use.
func For[T any]() (*Catalog, error) {
	return Of(reflect.TypeFor[T]())
}

// Of returns the catalog of the struct type t, building it on first use.
func Of(t reflect.Type) (*Catalog, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	registry.RLock()
	e, ok := registry.byType[t]
	registry.RUnlock()
	if !ok {
		registry.Lock()
		if e, ok = registry.byType[t]; !ok {
			e = &entry{}
			registry.byType[t] = e
		}
		registry.Unlock()
	}

	e.once.Do(func() {
		e.cat, e.err = Reflect(t)
		if e.err == nil {
			e.err = publish(e.cat)
		}
	})
	return e.cat, e.err
}

// Register publishes catalogs built from declarations so references can resolve them.
func Register(cats ...*Catalog) error {
	for _, c := range cats {
		if err := publish(c); err != nil {
			return err
		}
	}
	return nil
}

func publish(c *Catalog) error {
	registry.Lock()
	defer registry.Unlock()

	// declared catalogs may be reloaded; a reflected type owns its name
	if prev, ok := registry.byName[c.model]; ok && prev.goType != nil && prev.goType != c.goType {
		return fmt.Errorf("model %s is already registered", c.model)
	}
	registry.byName[c.model] = c
	if prev, ok := registry.byName[c.table]; !ok || prev.model == c.model {
		registry.byName[c.table] = c
	}
	return nil
}

// Lookup finds a registered catalog by model or table name.
func Lookup(name string) (*Catalog, bool) {
	registry.RLock()
	defer registry.RUnlock()
	c, ok := registry.byName[name]
	return c, ok
}
