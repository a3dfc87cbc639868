package materials

import (
	"errors"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestCompute_UnknownMaterial(t *testing.T) {
	c := NewCalculator(1.1)
	_, err := c.Compute("бетон", 10, 0)
	if !errors.Is(err, ErrUnknownMaterial) {
		t.Fatalf("expected ErrUnknownMaterial, got %v", err)
	}
}

func TestCompute_AreaOnlyMaterial(t *testing.T) {
	c := NewCalculator(1.1)

	// краска: 0.15 л/м², area 10 → 10*0.15*1.1 = 1.65
	got, err := c.Compute("краска", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 1.65) {
		t.Fatalf("expected 1.65, got %v", got)
	}
}

func TestCompute_ThicknessDependentMaterial(t *testing.T) {
	c := NewCalculator(1.1)

	// штукатурка: 1.8 kg/m² per mm, area 10, thickness 5 → 10*1.8*5*1.1 = 99
	got, err := c.Compute("штукатурка", 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 99) {
		t.Fatalf("expected 99, got %v", got)
	}
}

func TestCompute_ZeroThicknessFallsBackToAreaFormula(t *testing.T) {
	c := NewCalculator(1.1)

	// A thickness-dependent material with thickness 0 must not produce 0.
	got, err := c.Compute("стяжка", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 22) { // 10*2.0*1.1
		t.Fatalf("expected 22, got %v", got)
	}
}

func TestCompute_LinearInArea(t *testing.T) {
	c := NewCalculator(1.1)

	q1, err := c.Compute("плитка", 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q2, err := c.Compute("плитка", 14, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(q2, 2*q1) {
		t.Fatalf("doubling area should double quantity: %v vs %v", q1, q2)
	}
}

func TestCompute_JointlyLinearInAreaAndThickness(t *testing.T) {
	c := NewCalculator(1.1)

	q1, err := c.Compute("наливной пол", 4, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q2, err := c.Compute("наливной пол", 8, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(q2, 4*q1) {
		t.Fatalf("doubling area and thickness should quadruple quantity: %v vs %v", q1, q2)
	}
}

func TestCompute_RoundsToTwoDecimals(t *testing.T) {
	c := NewCalculator(1.1)

	// обои: 0.05 рулон, area 3 → 3*0.05*1.1 = 0.165 → 0.17 after rounding.
	got, err := c.Compute("обои", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.17 {
		t.Fatalf("expected 0.17, got %v", got)
	}
}

func TestNewCalculator_CoercesMarginBelowOne(t *testing.T) {
	c := NewCalculator(0.5)
	if c.SafetyFactor != 1 {
		t.Fatalf("expected coerced margin 1, got %v", c.SafetyFactor)
	}
}

func TestNames_StableAndComplete(t *testing.T) {
	got := Names()
	if len(got) != len(catalog) {
		t.Fatalf("names and catalog out of sync: %d vs %d", len(got), len(catalog))
	}
	for _, n := range got {
		if _, ok := Lookup(n); !ok {
			t.Fatalf("name %q missing from catalog", n)
		}
	}
	// Mutating the returned slice must not affect the package copy.
	got[0] = "mutated"
	if Names()[0] == "mutated" {
		t.Fatal("Names must return a copy")
	}
}

func TestFormatResult_WithThickness(t *testing.T) {
	c := NewCalculator(1.1)
	out := c.FormatResult("штукатурка", 10, 5, 99)

	for _, want := range []string{
		"Штукатурка",
		"📏 Площадь: 10 м²",
		"📐 Толщина слоя: 5 мм",
		"🧮 Необходимое количество: 99 кг/м²",
		"коэффициента запаса 1.1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("result card missing %q:\n%s", want, out)
		}
	}
}

func TestFormatResult_WithoutThickness(t *testing.T) {
	c := NewCalculator(1.1)
	out := c.FormatResult("краска", 10, 0, 1.65)

	if strings.Contains(out, "Толщина") {
		t.Fatalf("thickness line must be omitted:\n%s", out)
	}
	if !strings.Contains(out, "🧮 Необходимое количество: 1.65 л/м²") {
		t.Fatalf("unexpected quantity line:\n%s", out)
	}
}
