// Package materials holds the fixed material catalog and the quantity rule.
// A material maps to a unit label, a consumption rate, and a flag telling
// whether the required quantity scales with layer thickness. The rule itself
// is a pure function; the safety margin is the only tunable.
package materials

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownMaterial is returned when the requested material is not in the
// catalog.
var ErrUnknownMaterial = errors.New("unknown material")

// Material describes one catalog entry.
//
//   - Unit: label shown next to computed quantities (e.g. "кг/м²").
//   - ThicknessDependent: quantity scales with applied layer thickness.
//   - Rate: consumption per m² (per mm of thickness when ThicknessDependent).
type Material struct {
	Unit               string
	ThicknessDependent bool
	Rate               float64
}

// catalog is the fixed material table. Rates are kg/m² per mm of thickness
// for thickness-dependent materials, otherwise units per m².
var catalog = map[string]Material{
	"штукатурка":   {Unit: "кг/м²", ThicknessDependent: true, Rate: 1.8},
	"стяжка":       {Unit: "кг/м²", ThicknessDependent: true, Rate: 2.0},
	"краска":       {Unit: "л/м²", ThicknessDependent: false, Rate: 0.15},
	"затирка":      {Unit: "кг/м²", ThicknessDependent: true, Rate: 1.5},
	"наливной пол": {Unit: "кг/м²", ThicknessDependent: true, Rate: 1.7},
	"кирпич":       {Unit: "шт/м²", ThicknessDependent: false, Rate: 50},
	"гипсокартон":  {Unit: "лист", ThicknessDependent: false, Rate: 0.1},
	"плитка":       {Unit: "шт/м²", ThicknessDependent: false, Rate: 10},
	"обои":         {Unit: "рулон", ThicknessDependent: false, Rate: 0.05},
	"лак":          {Unit: "л/м²", ThicknessDependent: false, Rate: 0.1},
}

// names keeps a stable presentation order for menus.
var names = []string{
	"штукатурка", "стяжка", "краска", "затирка", "наливной пол",
	"кирпич", "гипсокартон", "плитка", "обои", "лак",
}

// Names returns the catalog material names in presentation order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Lookup returns the catalog entry for name, if present.
func Lookup(name string) (Material, bool) {
	m, ok := catalog[name]
	return m, ok
}

// Calculator applies the quantity rule with a fixed safety margin.
type Calculator struct {
	// SafetyFactor is the catalog-wide multiplicative margin (e.g. 1.1).
	SafetyFactor float64
}

// NewCalculator constructs a Calculator; a margin below 1 is coerced to 1.
func NewCalculator(safetyFactor float64) Calculator {
	if safetyFactor < 1 {
		safetyFactor = 1
	}
	return Calculator{SafetyFactor: safetyFactor}
}

// Compute returns the required quantity for the material over the given area.
//
// Rule:
//   - unknown material → ErrUnknownMaterial;
//   - thickness-dependent and thickness > 0 → area*rate*thickness*margin;
//   - otherwise → area*rate*margin. Thickness 0 on a thickness-dependent
//     material deliberately falls back to the area-only formula: the
//     thickness step may be skipped, and the result must stay meaningful.
//
// The result is rounded to 2 decimal digits.
func (c Calculator) Compute(materialType string, area, thickness float64) (float64, error) {
	m, ok := catalog[materialType]
	if !ok {
		return 0, ErrUnknownMaterial
	}

	var quantity float64
	if m.ThicknessDependent && thickness > 0 {
		quantity = area * m.Rate * thickness * c.SafetyFactor
	} else {
		quantity = area * m.Rate * c.SafetyFactor
	}
	return math.Round(quantity*100) / 100, nil
}

// titleCaser renders material names for display ("штукатурка" → "Штукатурка").
var titleCaser = cases.Title(language.Russian)

// FormatResult renders the user-facing result card. Thickness is included
// only when it participated in the computation.
func (c Calculator) FormatResult(materialType string, area, thickness, quantity float64) string {
	unit := "ед."
	withThickness := false
	if m, ok := catalog[materialType]; ok {
		unit = m.Unit
		withThickness = m.ThicknessDependent && thickness > 0
	}

	if withThickness {
		return fmt.Sprintf(
			"📊 Результат расчета:\n\n"+
				"🧱 Материал: %s\n"+
				"📏 Площадь: %s м²\n"+
				"📐 Толщина слоя: %s мм\n"+
				"🧮 Необходимое количество: %s %s\n\n"+
				"ℹ️ С учетом коэффициента запаса %s",
			titleCaser.String(materialType),
			formatNumber(area), formatNumber(thickness),
			formatNumber(quantity), unit,
			formatNumber(c.SafetyFactor),
		)
	}
	return fmt.Sprintf(
		"📊 Результат расчета:\n\n"+
			"🧱 Материал: %s\n"+
			"📏 Площадь: %s м²\n"+
			"🧮 Необходимое количество: %s %s\n\n"+
			"ℹ️ С учетом коэффициента запаса %s",
		titleCaser.String(materialType),
		formatNumber(area),
		formatNumber(quantity), unit,
		formatNumber(c.SafetyFactor),
	)
}

// formatNumber prints a float without trailing zeros ("10", "1.65").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
