package spectrum

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultNpx matches the grid density ROOT uses for TF1 random sampling.
const DefaultNpx = 100

var paramRef = regexp.MustCompile(`\[(\d+)\]`)

// ROOT-style spellings accepted in formulas.
var rootNames = strings.NewReplacer(
	"TMath::Exp", "exp",
	"TMath::Sqrt", "sqrt",
	"TMath::SinH", "sinh",
	"TMath::CosH", "cosh",
	"TMath::TanH", "tanh",
	"TMath::Log10", "log10",
	"TMath::Log", "log",
	"TMath::Power", "pow",
	"TMath::Pi()", "pi",
	"TMath::Sin", "sin",
	"TMath::Cos", "cos",
)

// Function is a parametric density f(x; p) on [xmin, xmax].
type Function struct {
	name    string
	formula string
	params  []float64
	xmin    float64
	xmax    float64
	program *vm.Program

	// Sampling grid, built once in NewFunction.
	grid []float64
	vals []float64
	cdf  []float64
}

// NewFunction compiles formula and precomputes its inverse-CDF table over npx bins.
// Parameters are referenced as [0], [1], ... and the variable as x.
func NewFunction(name, formula string, params []float64, xmin, xmax float64, npx int) (*Function, error) {
	if !(xmax > xmin) {
		return nil, fmt.Errorf("spectrum: function %q needs xmax > xmin, got [%g, %g]", name, xmin, xmax)
	}
	if npx <= 0 {
		npx = DefaultNpx
	}

	src := paramRef.ReplaceAllString(rootNames.Replace(formula), "p[$1]")
	program, err := expr.Compile(src, expr.Env(formulaEnv(0, params)), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("spectrum: function %q: compile %q: %w", name, formula, err)
	}

	f := &Function{
		name:    name,
		formula: formula,
		params:  append([]float64(nil), params...),
		xmin:    xmin,
		xmax:    xmax,
		program: program,
	}
	if err := f.precompute(npx); err != nil {
		return nil, err
	}
	return f, nil
}

func formulaEnv(x float64, p []float64) map[string]any {
	return map[string]any{
		"x":     x,
		"p":     p,
		"pi":    math.Pi,
		"exp":   math.Exp,
		"sqrt":  math.Sqrt,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"log":   math.Log,
		"log10": math.Log10,
		"pow":   math.Pow,
		"sin":   math.Sin,
		"cos":   math.Cos,
	}
}

// Eval evaluates the density at x.
func (f *Function) Eval(x float64) (float64, error) {
	out, err := expr.Run(f.program, formulaEnv(x, f.params))
	if err != nil {
		return 0, fmt.Errorf("spectrum: function %q at x=%g: %w", f.name, x, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("spectrum: function %q returned %T", f.name, out)
	}
	return v, nil
}

func (f *Function) precompute(npx int) error {
	dx := (f.xmax - f.xmin) / float64(npx)
	f.grid = make([]float64, npx+1)
	f.vals = make([]float64, npx+1)
	for i := range f.grid {
		x := f.xmin + float64(i)*dx
		if i == npx {
			x = f.xmax
		}
		v, err := f.Eval(x)
		if err != nil {
			return err
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: function %q f(%g) = %g", ErrInvalidDensity, f.name, x, v)
		}
		f.grid[i] = x
		f.vals[i] = v
	}

	f.cdf = make([]float64, npx+1)
	for i := 0; i < npx; i++ {
		area := 0.5 * (f.vals[i] + f.vals[i+1]) * (f.grid[i+1] - f.grid[i])
		f.cdf[i+1] = f.cdf[i] + area
	}
	total := f.cdf[npx]
	if total <= 0 {
		return fmt.Errorf("%w: function %q on [%g, %g]", ErrEmptySpectrum, f.name, f.xmin, f.xmax)
	}
	for i := range f.cdf {
		f.cdf[i] /= total
	}
	f.cdf[npx] = 1
	return nil
}

func (f *Function) Name() string { return f.name }

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) Range() (float64, float64) { return f.xmin, f.xmax }

func (f *Function) Formula() string { return f.formula }

func (f *Function) Npx() int { return len(f.grid) - 1 }

// Sample inverts the precomputed CDF. Inside a bin the density is taken as linear
// between grid points, so the in-bin offset solves a*t + b*t^2/2 = u*area.
func (f *Function) Sample(rng *rand.Rand) float64 {
	r := rng.Float64()
	n := len(f.grid) - 1
	k := sort.Search(n, func(i int) bool { return f.cdf[i+1] > r })
	if k >= n {
		k = n - 1
	}

	x0, x1 := f.grid[k], f.grid[k+1]
	w := x1 - x0
	plo, phi := f.cdf[k], f.cdf[k+1]
	if phi <= plo {
		return x0
	}
	u := (r - plo) / (phi - plo)

	a := f.vals[k]
	b := (f.vals[k+1] - a) / w
	area := 0.5 * (a + f.vals[k+1]) * w
	target := u * area

	var t float64
	if math.Abs(b*w) < 1e-12*math.Max(a, 1e-300) || b == 0 {
		t = target / a
	} else {
		disc := a*a + 2*b*target
		if disc < 0 {
			disc = 0
		}
		t = (math.Sqrt(disc) - a) / b
	}
	if t < 0 {
		t = 0
	} else if t > w {
		t = w
	}
	return x0 + t
}
