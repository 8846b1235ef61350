// Package templates loads the immutable template catalog and resolves the
// template for an entity by priority tier and type.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// Entry is one catalog record: a template plus the selectors that decide
// which entities it applies to. Tier bounds are inclusive; a zero MaxTier
// means unbounded.
type Entry struct {
	TemplateID        string   `json:"template_id"`
	Version           int      `json:"version"`
	ClusterID         string   `json:"cluster_id"`
	SignalChannels    []string `json:"signal_channels"`
	SignalPatterns    []string `json:"signal_patterns"`
	NegativeFilters   []string `json:"negative_filters"`
	VerificationRules []string `json:"verification_rules"`

	EntityTypes []string `json:"entity_types"`
	MinTier     int      `json:"min_tier"`
	MaxTier     int      `json:"max_tier"`
}

// Catalog resolves templates for entities. Immutable after Load.
type Catalog struct {
	entries []Entry
}

// Load reads the catalog file. A missing or invalid file is a startup
// failure.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read template catalog %s: %v", cerrors.ErrConfigInvalid, path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parse template catalog %s: %v", cerrors.ErrConfigInvalid, path, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: template catalog %s is empty", cerrors.ErrConfigInvalid, path)
	}

	for _, e := range entries {
		if e.TemplateID == "" || len(e.SignalPatterns) == 0 {
			return nil, fmt.Errorf("%w: template catalog entry missing template_id or signal_patterns", cerrors.ErrConfigInvalid)
		}
	}

	return &Catalog{entries: entries}, nil
}

// Resolve returns the template for an entity. Entries matching the entity's
// cluster win over generic ones; among those, the first catalog entry whose
// type and tier selectors match is used.
func (c *Catalog) Resolve(_ context.Context, entity domain.Entity) (domain.Template, error) {
	var fallback *Entry

	for i := range c.entries {
		e := &c.entries[i]
		if !e.matches(entity) {
			continue
		}

		if e.ClusterID == entity.ClusterID {
			return e.template(), nil
		}

		if fallback == nil && e.ClusterID == "" {
			fallback = e
		}
	}

	if fallback != nil {
		return fallback.template(), nil
	}

	return domain.Template{}, fmt.Errorf("%w: no template for entity %s (type %s, tier %d)",
		cerrors.ErrNotFound, entity.EntityID, entity.Type, entity.PriorityTier)
}

func (e *Entry) matches(entity domain.Entity) bool {
	if len(e.EntityTypes) > 0 && !slices.Contains(e.EntityTypes, entity.Type) {
		return false
	}

	if entity.PriorityTier < e.MinTier {
		return false
	}

	if e.MaxTier > 0 && entity.PriorityTier > e.MaxTier {
		return false
	}

	return true
}

func (e *Entry) template() domain.Template {
	return domain.Template{
		TemplateID:        e.TemplateID,
		Version:           e.Version,
		ClusterID:         e.ClusterID,
		SignalChannels:    e.SignalChannels,
		SignalPatterns:    e.SignalPatterns,
		NegativeFilters:   e.NegativeFilters,
		VerificationRules: e.VerificationRules,
	}
}
