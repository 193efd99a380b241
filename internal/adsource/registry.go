package adsource

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]Source)
	mu       sync.RWMutex
)

func Register(name string, src Source) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = src
}

func Get(name string) (Source, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("ad source %q not registered", name)
	}
	return s, nil
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
