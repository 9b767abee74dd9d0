package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func writeCatalog(t *testing.T, units, areas string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UnitsFile), []byte(units), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AreasFile), []byte(areas), 0o644))
	return dir
}

func TestLoad_ShippedCatalog(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "catalog"))
	require.NoError(t, err)
	assert.Len(t, c.Units, 6)
	assert.Equal(t, UnitInfantry, c.Units[0].Type)
	assert.NotEmpty(t, c.Areas)
}

func TestParseUnits_SkipsMalformed(t *testing.T) {
	units := `[
	  {"type":"recon","name":"Scout","description":"d","icon":"i","health":50,"accuracy":0.5,"sight_range":900,"movement_speed":3},
	  {"type":"SUBMARINE","name":"Sub","description":"d","icon":"i","health":50,"accuracy":0.5,"sight_range":1,"movement_speed":1},
	  {"type":"ARMOR","name":"Tank","description":"d","icon":"i","accuracy":0.5,"sight_range":1,"movement_speed":1},
	  {"type":"ARMOR","name":"Tank","description":"d","icon":"i","health":"lots","accuracy":0.5,"sight_range":1,"movement_speed":1},
	  {"type":"ARMOR","name":"Tank","description":"d","icon":"i","health":-5,"accuracy":0.5,"sight_range":1,"movement_speed":1},
	  "junk"
	]`
	got := ParseUnits(gjson.Parse(units))
	require.Len(t, got, 1)
	assert.Equal(t, UnitType{
		Type:          UnitRecon,
		Name:          "Scout",
		Description:   "d",
		Icon:          "i",
		Health:        50,
		Accuracy:      0.5,
		SightRange:    900,
		MovementSpeed: 3,
	}, got[0])
}

func TestParseAreas_Strict(t *testing.T) {
	ok := `[{"name":"Hill","description":"d","color":"#fff","movement_speed_modifier":0.9,"accuracy_modifier":1.1,"enemy_miss_chance":0.1}]`
	areas, err := ParseAreas(gjson.Parse(ok))
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, 1.1, areas[0].AccuracyModifier)

	bad := `[{"name":"Hill","description":"d","color":"#fff","movement_speed_modifier":0.9,"accuracy_modifier":1.1}]`
	_, err = ParseAreas(gjson.Parse(bad))
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)

	dir := writeCatalog(t, `{"not":"an array"}`, `[]`)
	_, err = Load(dir)
	assert.Error(t, err)

	dir = writeCatalog(t, `[`, `[]`)
	_, err = Load(dir)
	assert.Error(t, err)

	dir = writeCatalog(t, `[]`, `[{"name":1}]`)
	_, err = Load(dir)
	assert.Error(t, err)

	dir = writeCatalog(t, `[]`, `[]`)
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, c.Units)
	assert.Empty(t, c.Areas)
}

func TestParseUnitTypeKey(t *testing.T) {
	k, ok := ParseUnitTypeKey(" air ")
	assert.True(t, ok)
	assert.Equal(t, UnitAir, k)
	_, ok = ParseUnitTypeKey("navy")
	assert.False(t, ok)
}
