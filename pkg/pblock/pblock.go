// pkg/pblock/pblock.go
package pblock

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Param is one name/value pair of a Block.
type Param struct {
	Name  string
	Value string

	freed bool
}

// Free releases a pair that was unlinked with Remove. Freeing twice is a no-op.
func (p *Param) Free() {
	if p == nil {
		return
	}
	p.freed = true
	p.Value = ""
}

// Freed reports whether Free was called.
func (p *Param) Freed() bool { return p != nil && p.freed }

// Block is the host's ordered multiset of name/value string pairs.
// Insertion order is preserved; the same name may appear more than once.
type Block struct {
	mu     sync.RWMutex
	params []*Param
}

// New returns an empty block.
func New() *Block { return &Block{} }

// FromPairs builds a block from alternating name, value arguments.
// A trailing name without a value is dropped.
func FromPairs(kv ...string) *Block {
	b := New()
	for i := 0; i+1 < len(kv); i += 2 {
		b.NVInsert(kv[i], kv[i+1])
	}
	return b
}

// FromHeader copies an http.Header into a block with lower-cased names, one pair per value.
// Names are sorted so the block is deterministic.
func FromHeader(h http.Header) *Block {
	b := New()
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		for _, v := range h[k] {
			b.NVInsert(strings.ToLower(k), v)
		}
	}
	return b
}

// NVInsert appends a pair.
func (b *Block) NVInsert(name, value string) {
	b.mu.Lock()
	b.params = append(b.params, &Param{Name: name, Value: value})
	b.mu.Unlock()
}

// Set replaces the value of the first pair named name, or appends one.
func (b *Block) Set(name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.params {
		if p.Name == name {
			p.Value = value
			return
		}
	}
	b.params = append(b.params, &Param{Name: name, Value: value})
}

// Find returns the first pair named name, or nil.
func (b *Block) Find(name string) *Param {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FindVal returns the value of the first pair named name.
func (b *Block) FindVal(name string) (string, bool) {
	if p := b.Find(name); p != nil {
		return p.Value, true
	}
	return "", false
}

// Remove unlinks the first pair named name and hands it to the caller, who owns it
// from then on. Returns nil when no pair matches.
func (b *Block) Remove(name string) *Param {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.params {
		if p.Name == name {
			b.params = append(b.params[:i], b.params[i+1:]...)
			return p
		}
	}
	return nil
}

// Len is the number of pairs.
func (b *Block) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.params)
}

// Params returns a snapshot of the pairs in order.
func (b *Block) Params() []Param {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Param, 0, len(b.params))
	for _, p := range b.params {
		out = append(out, Param{Name: p.Name, Value: p.Value})
	}
	return out
}

// String serializes the block as `name="value"` pairs separated by single spaces.
func (b *Block) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var sb strings.Builder
	for i, p := range b.params {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Name)
		sb.WriteString(`="`)
		sb.WriteString(strings.ReplaceAll(p.Value, `"`, `\"`))
		sb.WriteByte('"')
	}
	return sb.String()
}
