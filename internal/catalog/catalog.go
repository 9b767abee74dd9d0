// Package catalog serves the static unit and area type definitions the
// scenario editor builds on.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	UnitsFile = "units-config.json"
	AreasFile = "areas-config.json"
)

// UnitTypeKey is the closed set of unit types
type UnitTypeKey string

const (
	UnitInfantry  UnitTypeKey = "INFANTRY"
	UnitArmor     UnitTypeKey = "ARMOR"
	UnitArtillery UnitTypeKey = "ARTILLERY"
	UnitRecon     UnitTypeKey = "RECON"
	UnitSupport   UnitTypeKey = "SUPPORT"
	UnitAir       UnitTypeKey = "AIR"
)

var unitTypeKeys = map[UnitTypeKey]struct{}{
	UnitInfantry:  {},
	UnitArmor:     {},
	UnitArtillery: {},
	UnitRecon:     {},
	UnitSupport:   {},
	UnitAir:       {},
}

// ParseUnitTypeKey upper-cases s and checks it against the known unit types
func ParseUnitTypeKey(s string) (UnitTypeKey, bool) {
	k := UnitTypeKey(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := unitTypeKeys[k]
	return k, ok
}

type UnitType struct {
	Type          UnitTypeKey `json:"type"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Icon          string      `json:"icon"`
	Health        uint32      `json:"health"`
	Accuracy      float64     `json:"accuracy"`
	SightRange    float64     `json:"sight_range"`
	MovementSpeed float64     `json:"movement_speed"`
}

type AreaType struct {
	Name                  string  `json:"name"`
	Description           string  `json:"description"`
	Color                 string  `json:"color"`
	MovementSpeedModifier float64 `json:"movement_speed_modifier"`
	AccuracyModifier      float64 `json:"accuracy_modifier"`
	EnemyMissChance       float64 `json:"enemy_miss_chance"`
}

// Catalog holds the loaded definitions. It is read-only after Load.
type Catalog struct {
	Units []UnitType
	Areas []AreaType
}

// Load reads both definition files from dir
func Load(dir string) (*Catalog, error) {
	units, err := readArray(filepath.Join(dir, UnitsFile))
	if err != nil {
		return nil, err
	}
	areas, err := readArray(filepath.Join(dir, AreasFile))
	if err != nil {
		return nil, err
	}

	parsedAreas, err := ParseAreas(areas)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		Units: ParseUnits(units),
		Areas: parsedAreas,
	}, nil
}

func readArray(path string) (gjson.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("failed to parse %s: invalid JSON", path)
	}
	res := gjson.ParseBytes(data)
	if !res.IsArray() {
		return gjson.Result{}, fmt.Errorf("failed to parse %s: expected a JSON array", path)
	}
	return res, nil
}

// ParseUnits keeps the entries that carry every field with the right type
// and a known unit type; everything else is dropped.
func ParseUnits(arr gjson.Result) []UnitType {
	var out []UnitType
	arr.ForEach(func(_, v gjson.Result) bool {
		if u, ok := parseUnit(v); ok {
			out = append(out, u)
		}
		return true
	})
	return out
}

func parseUnit(v gjson.Result) (UnitType, bool) {
	typ, name, desc, icon := v.Get("type"), v.Get("name"), v.Get("description"), v.Get("icon")
	for _, s := range []gjson.Result{typ, name, desc, icon} {
		if s.Type != gjson.String {
			return UnitType{}, false
		}
	}
	health, acc, sight, speed := v.Get("health"), v.Get("accuracy"), v.Get("sight_range"), v.Get("movement_speed")
	for _, n := range []gjson.Result{health, acc, sight, speed} {
		if n.Type != gjson.Number {
			return UnitType{}, false
		}
	}
	if health.Num < 0 || health.Num != float64(uint32(health.Num)) {
		return UnitType{}, false
	}
	key, ok := ParseUnitTypeKey(typ.Str)
	if !ok {
		return UnitType{}, false
	}
	return UnitType{
		Type:          key,
		Name:          name.Str,
		Description:   desc.Str,
		Icon:          icon.Str,
		Health:        uint32(health.Num),
		Accuracy:      acc.Num,
		SightRange:    sight.Num,
		MovementSpeed: speed.Num,
	}, true
}

// ParseAreas decodes every entry; a single malformed entry fails the whole list
func ParseAreas(arr gjson.Result) ([]AreaType, error) {
	var (
		out []AreaType
		err error
	)
	arr.ForEach(func(idx, v gjson.Result) bool {
		a := AreaType{}
		strs := map[string]*string{"name": &a.Name, "description": &a.Description, "color": &a.Color}
		nums := map[string]*float64{
			"movement_speed_modifier": &a.MovementSpeedModifier,
			"accuracy_modifier":       &a.AccuracyModifier,
			"enemy_miss_chance":       &a.EnemyMissChance,
		}
		for field, dst := range strs {
			f := v.Get(field)
			if f.Type != gjson.String {
				err = fmt.Errorf("area %d: field %s must be a string", idx.Int(), field)
				return false
			}
			*dst = f.Str
		}
		for field, dst := range nums {
			f := v.Get(field)
			if f.Type != gjson.Number {
				err = fmt.Errorf("area %d: field %s must be a number", idx.Int(), field)
				return false
			}
			*dst = f.Num
		}
		out = append(out, a)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
