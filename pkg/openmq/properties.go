package openmq

import (
	"sort"
	"sync"
)

// Properties is a typed key/value bag. Values keep their exact numeric type:
// reading a key with the wrong type fails with ErrPropertyWrongType instead
// of converting.
type Properties struct {
	mu sync.Mutex
	m  map[string]any

	iterKeys []string
	iterPos  int
	iterOn   bool
}

// NewProperties returns an empty bag.
func NewProperties() *Properties {
	return &Properties{m: make(map[string]any)}
}

func (p *Properties) set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
}

func (p *Properties) SetString(key, value string)   { p.set(key, value) }
func (p *Properties) SetBool(key string, v bool)    { p.set(key, v) }
func (p *Properties) SetInt8(key string, v int8)    { p.set(key, v) }
func (p *Properties) SetInt16(key string, v int16)  { p.set(key, v) }
func (p *Properties) SetInt32(key string, v int32)  { p.set(key, v) }
func (p *Properties) SetInt64(key string, v int64)  { p.set(key, v) }
func (p *Properties) SetFloat32(key string, v float32) { p.set(key, v) }
func (p *Properties) SetFloat64(key string, v float64) { p.set(key, v) }

func getTyped[T any](p *Properties, key string) (T, error) {
	var zero T
	p.mu.Lock()
	raw, ok := p.m[key]
	p.mu.Unlock()
	if !ok {
		return zero, ErrPropertyNotFound
	}
	v, ok := raw.(T)
	if !ok {
		return zero, ErrPropertyWrongType
	}
	return v, nil
}

func (p *Properties) GetString(key string) (string, error)   { return getTyped[string](p, key) }
func (p *Properties) GetBool(key string) (bool, error)       { return getTyped[bool](p, key) }
func (p *Properties) GetInt8(key string) (int8, error)       { return getTyped[int8](p, key) }
func (p *Properties) GetInt16(key string) (int16, error)     { return getTyped[int16](p, key) }
func (p *Properties) GetInt32(key string) (int32, error)     { return getTyped[int32](p, key) }
func (p *Properties) GetInt64(key string) (int64, error)     { return getTyped[int64](p, key) }
func (p *Properties) GetFloat32(key string) (float32, error) { return getTyped[float32](p, key) }
func (p *Properties) GetFloat64(key string) (float64, error) { return getTyped[float64](p, key) }

// Len reports the number of keys.
func (p *Properties) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// KeyIterationStart snapshots the current key set for iteration. Keys are
// visited in sorted order.
func (p *Properties) KeyIterationStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iterKeys = make([]string, 0, len(p.m))
	for k := range p.m {
		p.iterKeys = append(p.iterKeys, k)
	}
	sort.Strings(p.iterKeys)
	p.iterPos = 0
	p.iterOn = true
}

// KeyIterationHasNext reports whether another key remains.
func (p *Properties) KeyIterationHasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iterOn && p.iterPos < len(p.iterKeys)
}

// KeyIterationGetNext returns the next key, or ErrInvalidIterator when the
// iteration was not started or is exhausted.
func (p *Properties) KeyIterationGetNext() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.iterOn || p.iterPos >= len(p.iterKeys) {
		return "", ErrInvalidIterator
	}
	k := p.iterKeys[p.iterPos]
	p.iterPos++
	return k, nil
}

// Clone returns an independent copy of the bag.
func (p *Properties) Clone() *Properties {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := NewProperties()
	for k, v := range p.m {
		c.m[k] = v
	}
	return c
}

// asMap copies the bag into a plain map for packet attachment.
func (p *Properties) asMap() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out
}

// propertiesFromMap builds a bag from packet properties.
func propertiesFromMap(m map[string]any) *Properties {
	p := NewProperties()
	for k, v := range m {
		p.m[k] = v
	}
	return p
}
