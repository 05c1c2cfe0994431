package protocol

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"agentsuite/internal/logging"
)

const defaultDescriptionLimit = 200

// detailContentLimit bounds the content excerpt returned by Details.
const detailContentLimit = 500

// Registry discovers protocol documents through a Source, parses them on
// demand and caches the parsed result by canonical name for the lifetime of
// the Registry instance. Each Registry owns its cache; there is no process
// wide state, so independent Registries (e.g. in tests) never share anything.
type Registry struct {
	source    Source
	descLimit int

	mu      sync.RWMutex
	index   map[string]*indexEntry // canonical name -> entry
	hints   map[string]string      // lower-cased hint -> canonical name
	indexed bool
	cache   map[string]*Protocol // canonical name -> parsed protocol

	flight singleflight.Group
}

// indexEntry holds what discovery learned about one document before any
// phase parsing happened.
type indexEntry struct {
	id         string
	content    string
	phaseCount int
	desc       string
	dslSupport bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDescriptionLimit bounds the description length returned by List.
func WithDescriptionLimit(limit int) RegistryOption {
	return func(r *Registry) {
		if limit > 0 {
			r.descLimit = limit
		}
	}
}

// NewRegistry creates a Registry over the given document source.
func NewRegistry(source Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		source:    source,
		descLimit: defaultDescriptionLimit,
		index:     make(map[string]*indexEntry),
		hints:     make(map[string]string),
		cache:     make(map[string]*Protocol),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ensureIndex discovers the available documents and derives their canonical
// names. The canonical name is the document's H1 title; the filename-derived
// hint is only a lookup fallback for documents without a title, and an alias
// for case-insensitive resolution.
func (r *Registry) ensureIndex(ctx context.Context) error {
	r.mu.RLock()
	done := r.indexed
	r.mu.RUnlock()
	if done {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexed {
		return nil
	}

	docs, err := r.source.List(ctx)
	if err != nil {
		return fmt.Errorf("protocol discovery failed: %w", err)
	}

	for _, doc := range docs {
		content, err := r.source.Read(ctx, doc.ID)
		if err != nil {
			logging.RegistryWarn("skipping unreadable document %s: %v", doc.ID, err)
			continue
		}

		name := DocumentTitle(content)
		if name == "" {
			name = doc.Hint
		}
		if name == "" {
			logging.RegistryWarn("skipping unnamed document %s", doc.ID)
			continue
		}
		if _, dup := r.index[name]; dup {
			logging.RegistryWarn("duplicate protocol name %q from %s, keeping first", name, doc.ID)
			continue
		}

		entry := &indexEntry{
			id:         doc.ID,
			content:    content,
			phaseCount: CountPhaseHeaders(content),
			desc:       DocumentDescription(content, r.descLimit),
			dslSupport: dslBlockRe.MatchString(content),
		}
		if entry.phaseCount == 0 {
			// Valid zero-phase protocol, worth a warning at most
			logging.RegistryWarn("document %s has no recognizable phase headers", doc.ID)
		}
		r.index[name] = entry
		if doc.Hint != "" {
			r.hints[strings.ToLower(doc.Hint)] = name
		}
		r.hints[strings.ToLower(name)] = name
	}

	r.indexed = true
	logging.Registry("indexed %d protocol documents", len(r.index))
	return nil
}

// lookup maps a requested name to its canonical form. Exact canonical names
// win; hints and case-insensitive matches are fallbacks.
func (r *Registry) lookup(name string) (string, *indexEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.index[name]; ok {
		return name, entry, true
	}
	if canonical, ok := r.hints[strings.ToLower(name)]; ok {
		return canonical, r.index[canonical], true
	}
	return "", nil, false
}

// Resolve returns the parsed protocol for name, parsing it on first access.
// Concurrent first-time resolutions of the same name share one parse:
// at most one computation per name is in flight and its result is what every
// caller sees. Unknown names fail with ErrNotFound.
func (r *Registry) Resolve(ctx context.Context, name string) (*Protocol, error) {
	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}

	canonical, entry, ok := r.lookup(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	r.mu.RLock()
	if p, hit := r.cache[canonical]; hit {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.flight.Do(canonical, func() (interface{}, error) {
		// Re-check under the flight: a previous winner may have populated
		// the cache between our miss and this call.
		r.mu.RLock()
		if p, hit := r.cache[canonical]; hit {
			r.mu.RUnlock()
			return p, nil
		}
		r.mu.RUnlock()

		timer := logging.StartTimer(logging.CategoryRegistry, "parse "+canonical)
		p := &Protocol{
			Name:       canonical,
			SourceID:   entry.id,
			Phases:     ParsePhases(entry.content),
			RawContent: entry.content,
			Metadata:   ExtractMetadata(entry.content),
			DSLBlocks:  ExtractDSLBlocks(entry.content),
		}
		timer.Stop()

		r.mu.Lock()
		r.cache[canonical] = p
		r.mu.Unlock()

		logging.Registry("parsed protocol %q (%d phases)", canonical, len(p.Phases))
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Protocol), nil
}

// List returns a summary for every known protocol. It never fails: an empty
// or unreachable source yields an empty map, and per-document problems were
// already skipped during indexing.
func (r *Registry) List(ctx context.Context) map[string]Summary {
	if err := r.ensureIndex(ctx); err != nil {
		logging.RegistryWarn("list: discovery failed: %v", err)
		return map[string]Summary{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Summary, len(r.index))
	for name, entry := range r.index {
		out[name] = Summary{
			Name:        name,
			Phases:      entry.phaseCount,
			Description: entry.desc,
			DSLSupport:  entry.dslSupport,
		}
	}
	return out
}

// Details returns the expanded view of a known protocol, or (nil, false) for
// an unknown name. It never fails with an error.
func (r *Registry) Details(ctx context.Context, name string) (*Details, bool) {
	p, err := r.Resolve(ctx, name)
	if err != nil {
		return nil, false
	}

	infos := make([]PhaseInfo, 0, len(p.Phases))
	for _, phase := range p.Phases {
		infos = append(infos, PhaseInfo{Number: phase.Index, Title: phase.Title})
	}

	content := p.RawContent
	if utf8.RuneCountInString(content) > detailContentLimit {
		content = truncateRunes(content, detailContentLimit) + "..."
	}

	return &Details{
		Name:       p.Name,
		Phases:     infos,
		Content:    content,
		Metadata:   p.Metadata,
		DSLSupport: len(p.DSLBlocks) > 0,
	}, true
}

// Reload drops the discovery index and the parse cache. The next access
// re-reads the source. Cached Protocol instances already handed out stay
// valid; they are replaced, not mutated.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = make(map[string]*indexEntry)
	r.hints = make(map[string]string)
	r.cache = make(map[string]*Protocol)
	r.indexed = false

	logging.Registry("registry reloaded")
}
