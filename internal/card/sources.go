package card

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"weatherchart/internal/models"
)

// EntityStore looks up host entities by id.
type EntityStore interface {
	Lookup(ctx context.Context, entityID string) (*models.Entity, bool)
}

// UnitProvider returns the host's display unit for a category such as
// "temperature" or "length".
type UnitProvider interface {
	UnitFor(category string) string
}

// Source is a parsed attribute source. One dot-separated segment names an
// attribute of the card entity, two name another entity's state and three
// name an attribute of another entity.
type Source struct {
	EntityID  string
	Attribute string
}

// ParseSource splits a source string relative to the card entity.
func ParseSource(source, cardEntity string) Source {
	parts := strings.SplitN(source, ".", 3)
	switch len(parts) {
	case 1:
		return Source{EntityID: cardEntity, Attribute: source}
	case 2:
		return Source{EntityID: source}
	default:
		return Source{EntityID: parts[0] + "." + parts[1], Attribute: parts[2]}
	}
}

// resolver reads configured sources from an entity store, caching lookups
// for the duration of one render.
type resolver struct {
	ctx   context.Context
	store EntityStore
	cfg   models.CardConfig
	seen  map[string]*models.Entity
}

func newResolver(ctx context.Context, store EntityStore, cfg models.CardConfig) *resolver {
	return &resolver{ctx: ctx, store: store, cfg: cfg, seen: map[string]*models.Entity{}}
}

func (r *resolver) entity(id string) (*models.Entity, bool) {
	if e, ok := r.seen[id]; ok {
		return e, e != nil
	}
	e, ok := r.store.Lookup(r.ctx, id)
	if !ok {
		e = nil
	}
	r.seen[id] = e
	return e, ok
}

// Value resolves a named source. Numeric text comes back as float64; other
// values are returned as stored. Unresolvable sources are logged and absent.
func (r *resolver) Value(name string) (interface{}, bool) {
	source, ok := r.cfg.Sources[name]
	if !ok || source == "" {
		log.Debug("No source defined for weather attribute", map[string]interface{}{"attribute": name})
		return nil, false
	}

	src := ParseSource(source, r.cfg.Entity)
	entity, ok := r.entity(src.EntityID)
	if !ok {
		log.Debug("Entity not found for weather attribute", map[string]interface{}{
			"attribute": name,
			"entity":    src.EntityID,
			"source":    source,
		})
		return nil, false
	}

	if src.Attribute == "" {
		return numeric(entity.State), true
	}
	v, ok := entity.Attribute(src.Attribute)
	if !ok || v == nil {
		return nil, false
	}
	return numeric(v), true
}

// Number resolves a source that must be numeric.
func (r *resolver) Number(name string) (float64, bool) {
	v, ok := r.Value(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Text resolves a source as display text.
func (r *resolver) Text(name string) (string, bool) {
	v, ok := r.Value(name)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

// numeric turns numbers and numeric strings into float64.
func numeric(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return v
}
