package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

const catalogJSON = `[
	{
		"template_id": "tpl-club-tier1",
		"version": 2,
		"cluster_id": "premier-football",
		"signal_channels": ["rfp", "careers"],
		"signal_patterns": ["digital transformation tender", "fan platform RFP"],
		"entity_types": ["SPORT_CLUB"],
		"min_tier": 1,
		"max_tier": 2
	},
	{
		"template_id": "tpl-club-generic",
		"version": 1,
		"signal_channels": ["press"],
		"signal_patterns": ["technology partnership"],
		"entity_types": ["SPORT_CLUB"]
	},
	{
		"template_id": "tpl-federation",
		"version": 1,
		"signal_channels": ["rfp"],
		"signal_patterns": ["governing body procurement"],
		"entity_types": ["SPORT_FEDERATION"]
	}
]`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestResolvePrefersClusterMatch(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogJSON))
	require.NoError(t, err)

	tpl, err := catalog.Resolve(context.Background(), domain.Entity{
		EntityID:     "ent-1",
		Name:         "Example FC",
		Type:         domain.EntityTypeClub,
		ClusterID:    "premier-football",
		PriorityTier: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "tpl-club-tier1", tpl.TemplateID)
	assert.Equal(t, 2, tpl.Version)
}

func TestResolveFallsBackToGenericEntry(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogJSON))
	require.NoError(t, err)

	tpl, err := catalog.Resolve(context.Background(), domain.Entity{
		EntityID:     "ent-2",
		Type:         domain.EntityTypeClub,
		ClusterID:    "lower-league",
		PriorityTier: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, "tpl-club-generic", tpl.TemplateID)
}

func TestResolveTierBoundsExcludeEntity(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogJSON))
	require.NoError(t, err)

	tpl, err := catalog.Resolve(context.Background(), domain.Entity{
		EntityID:     "ent-3",
		Type:         domain.EntityTypeClub,
		ClusterID:    "premier-football",
		PriorityTier: 3,
	})
	require.NoError(t, err)

	// Tier 3 is outside tpl-club-tier1's [1,2] range.
	assert.Equal(t, "tpl-club-generic", tpl.TemplateID)
}

func TestResolveUnknownTypeFails(t *testing.T) {
	catalog, err := Load(writeCatalog(t, catalogJSON))
	require.NoError(t, err)

	_, err = catalog.Resolve(context.Background(), domain.Entity{
		EntityID: "ent-4",
		Type:     domain.EntityTypeLeague,
	})
	assert.ErrorIs(t, err, cerrors.ErrNotFound)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, cerrors.ErrConfigInvalid)
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	_, err := Load(writeCatalog(t, `[]`))
	assert.ErrorIs(t, err, cerrors.ErrConfigInvalid)
}

func TestLoadRejectsEntryWithoutPatterns(t *testing.T) {
	_, err := Load(writeCatalog(t, `[{"template_id": "tpl-x"}]`))
	assert.ErrorIs(t, err, cerrors.ErrConfigInvalid)
}
