package config

import (
	"fmt"
	"strings"
)

// Parse splits text at semicolons and newlines, strips whitespace and
// comments (a '#' runs to end of line), and dispatches each remaining
// token group to its directive handler by unambiguous case-insensitive
// prefix. Parse errors are accumulated rather than aborting the run;
// it returns every directive successfully recorded plus the list of
// faults encountered along the way.
func Parse(text string) (*Directives, []error) {
	d := newDirectives()
	var errs []error

	for _, rawLine := range strings.Split(text, "\n") {
		if hash := strings.IndexByte(rawLine, '#'); hash >= 0 {
			rawLine = rawLine[:hash]
		}
		for _, group := range strings.Split(rawLine, ";") {
			tokens := strings.Fields(group)
			if len(tokens) == 0 {
				continue
			}
			name, args := tokens[0], tokens[1:]
			dir, suggestions, err := lookupDirective(name)
			if err != nil {
				if len(suggestions) > 0 {
					err = fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(suggestions, ", "))
				}
				errs = append(errs, err)
				continue
			}
			if len(args) < dir.minArgs || (dir.maxArgs >= 0 && len(args) > dir.maxArgs) {
				errs = append(errs, fmt.Errorf("config: %s takes %s, got %d", dir.name, arityDescription(dir), len(args)))
				continue
			}
			if err := dir.handler(d, args); err != nil {
				errs = append(errs, err)
				continue
			}
			d.seen[dir.name] = true
		}
	}
	return d, errs
}

func arityDescription(d *directive) string {
	switch {
	case d.maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", d.minArgs)
	case d.minArgs == d.maxArgs:
		return fmt.Sprintf("exactly %d argument(s)", d.minArgs)
	default:
		return fmt.Sprintf("between %d and %d arguments", d.minArgs, d.maxArgs)
	}
}

// Validate runs the two-phase compatibility-lattice checks against the
// directives recorded by Parse and, if they all pass, builds a Model.
// Every fault is accumulated; Validate never stops at the first one.
func Validate(d *Directives) (*Model, []error) {
	var errs []error
	fault := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	m := newModel()

	m.FrequencyFile = d.FileNames["FrequencyFile"]
	m.MapFile = d.FileNames["MapFile"]
	m.PedigreeFile = d.FileNames["PedigreeFile"]
	m.LocusFile = d.FileNames["LocusFile"]
	m.BayesRatioFile = d.FileNames["BayesRatioFile"]
	m.PPLFile = d.FileNames["PPLFile"]
	m.CountFile = d.FileNames["CountFile"]
	m.MODFile = d.FileNames["MODFile"]
	m.SurfaceFile = d.FileNames["Surface"]
	m.NIDetailFile = d.FileNames["NIDetailFile"]

	m.Imprinting = d.Flags["Imprinting"]
	m.SexLinked = d.Flags["SexLinked"]
	m.DryRun = d.Flags["DryRun"]
	m.ExtraMODs = d.Flags["ExtraMODs"]
	m.ForceBRFile = d.Flags["ForceBRFile"]
	// NonPolynomial, like the original's integration flag, is stored
	// inverted: its presence disables the default dynamic-integration
	// mode, so m.NonPolynomial directly mirrors the directive's name.
	m.NonPolynomial = d.Flags["NonPolynomial"]

	m.PolynomialScale = d.Integers["PolynomialScale"]
	m.LiabilityClasses = d.Integers["LiabilityClasses"]
	m.DiseaseAlleles = d.Integers["DiseaseAlleles"]
	m.MaxIterations = d.Integers["MaxIterations"]

	if rs, ok := d.Ranges["TraitPositions"]; ok {
		m.TraitPositions = rs
	}
	if rs, ok := d.Ranges["MarkerAlleleFrequency"]; ok {
		m.MarkerAlleleFrequency = rs
	}
	if rs, ok := d.Ranges["DiseaseGeneFrequency"]; ok {
		m.DiseaseGeneFrequency = rs
	}
	if rs, ok := d.Ranges["DPrime"]; ok {
		m.DPrime = rs
	}
	if rs, ok := d.Ranges["Theta"]; ok {
		m.Theta = rs
	}
	if rs, ok := d.Ranges["Alpha"]; ok {
		m.Alpha = rs
	}
	if rs, ok := d.Ranges["Penetrance"]; ok {
		m.Penetrance = rs
	}
	if rs, ok := d.Ranges["Mean"]; ok {
		m.Mean = rs
	}
	if rs, ok := d.Ranges["StandardDev"]; ok {
		m.StandardDev = rs
	}
	if rs, ok := d.Ranges["DegreesOfFreedom"]; ok {
		m.DegreesOfFreedom = rs
	}
	if rs, ok := d.Ranges["Threshold"]; ok {
		m.Threshold = rs
	}
	if rs, ok := d.Ranges["Truncate"]; ok {
		m.Truncate = rs
	}
	if rs, ok := d.Ranges["PhenoCodes"]; ok {
		m.PhenoCodes = rs
	}
	m.Constraints = d.Constraints
	m.SurfacesPath = d.SurfaceOut

	m.SexSpecific = d.SexSpecific
	m.LD = d.LD
	if d.Multipoint != nil {
		m.Multipoint = true
		m.MultipointN = *d.Multipoint
	}
	if d.MTMMode != nil {
		m.MarkerToMarker = true
		m.MarkerToMarkerMode = *d.MTMMode
	}
	switch {
	case d.QTTMode != nil:
		m.Trait = *d.QTTMode
	case d.QTMode != nil:
		m.Trait = *d.QTMode
	default:
		m.Trait = TraitModeDichotomous
	}
	m.DynamicIntegration = !m.NonPolynomial

	// MarkerToMarkerMode forbids all trait directives; forces fixed-grid
	// mode; requires LD<->DPrime consistency; requires theta unless
	// dynamic sampling.
	if m.MarkerToMarker {
		if m.Trait != TraitModeDichotomous || seenAny(d, "Penetrance", "Mean", "StandardDev", "DegreesOfFreedom", "Threshold") {
			fault("MarkerToMarker forbids trait directives")
		}
		m.DynamicIntegration = false
		if m.LD != (m.DPrime.Len() > 0) {
			fault("MarkerToMarker requires LD and DPrime to agree")
		}
		if m.Theta.Len() == 0 && m.NonPolynomial {
			fault("MarkerToMarker requires Theta unless dynamic sampling is enabled")
		}
	}

	// Multipoint forbids LD and MarkerAlleleFrequency; requires
	// TraitPositions; disallows a PPL output file.
	if m.Multipoint {
		if m.LD {
			fault("Multipoint forbids LD")
		}
		if m.MarkerAlleleFrequency.Len() > 0 {
			fault("Multipoint forbids MarkerAlleleFrequency")
		}
		if m.TraitPositions.Len() == 0 {
			fault("Multipoint requires TraitPositions")
		}
		if m.PPLFile != "" {
			fault("Multipoint disallows a PPL output file")
		}
	}

	// LD disallows sex-specific maps.
	if m.LD && m.SexSpecific {
		fault("LD disallows sex-specific maps")
	}

	// Under fixed grid, the scalar model parameters are required; under
	// dynamic integration they are forbidden (they become integration
	// variables instead).
	if !m.MarkerToMarker {
		fixedGridRequired := []struct {
			name string
			rs   *RangeSet
		}{
			{"Penetrance", m.Penetrance}, {"Mean", m.Mean}, {"StandardDev", m.StandardDev},
			{"DegreesOfFreedom", m.DegreesOfFreedom}, {"Threshold", m.Threshold},
			{"Theta", m.Theta}, {"DPrime", m.DPrime}, {"DiseaseGeneFrequency", m.DiseaseGeneFrequency},
			{"MarkerAlleleFrequency", m.MarkerAlleleFrequency}, {"Alpha", m.Alpha},
		}
		if !m.DynamicIntegration {
			for _, p := range fixedGridRequired {
				if requiredUnderFixedGrid(p.name, m) && p.rs.Len() == 0 {
					fault("%s is required under fixed-grid mode", p.name)
				}
			}
		} else {
			for _, p := range fixedGridRequired {
				if requiredUnderFixedGrid(p.name, m) && p.rs.Len() > 0 {
					fault("%s is forbidden under dynamic integration; it becomes an integration variable", p.name)
				}
			}
		}
	}

	switch m.Trait {
	case TraitModeQTNormal:
		if m.Mean.Len() == 0 {
			fault("QT-Normal requires Mean")
		}
		if m.StandardDev.Len() == 0 {
			fault("QT-Normal requires StandardDev")
		}
	case TraitModeQTChiSq:
		if m.DegreesOfFreedom.Len() == 0 {
			fault("QT-ChiSq requires DegreesOfFreedom")
		}
	}
	if d.QTTMode != nil && m.Threshold.Len() == 0 {
		fault("QTT additionally requires Threshold")
	}

	if m.Imprinting {
		if m.Penetrance.Len() == 0 && m.Mean.Len() == 0 && m.DegreesOfFreedom.Len() == 0 {
			fault("Imprinting requires dD genotype forms of Penetrance, Mean, or DegreesOfFreedom")
		}
	}

	for _, c := range m.Constraints {
		if c.LiabilityClass1 > m.LiabilityClasses || c.LiabilityClass2 > m.LiabilityClasses {
			fault("Constraint references a liability class beyond LiabilityClasses=%d", m.LiabilityClasses)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return m, nil
}

func seenAny(d *Directives, names ...string) bool {
	for _, n := range names {
		if _, ok := d.Ranges[n]; ok {
			return true
		}
	}
	return false
}

// requiredUnderFixedGrid reports whether name is one of the scalar
// model parameters governed by the fixed-grid/dynamic-integration
// split. Alpha, DiseaseGeneFrequency and MarkerAlleleFrequency are
// always meaningful (they aren't integration variables under dynamic
// sampling) so they're excluded from the toggle.
func requiredUnderFixedGrid(name string, m *Model) bool {
	switch name {
	case "Alpha", "DiseaseGeneFrequency", "MarkerAlleleFrequency":
		return false
	case "Penetrance":
		// Penetrance belongs to the dichotomous trait; QT uses
		// Mean/StandardDev/DegreesOfFreedom in its place.
		return m.Trait == TraitModeDichotomous
	case "Mean", "StandardDev":
		return m.Trait == TraitModeQTNormal
	case "DegreesOfFreedom":
		return m.Trait == TraitModeQTChiSq
	case "Threshold":
		// Handled by the dedicated QTT check below; Threshold has no
		// meaning outside that combination.
		return false
	case "DPrime":
		// DPrime is only meaningful under LD.
		return m.LD
	default: // Theta
		return true
	}
}

// dprimeGridSize is the 67-point dynamic-integration D' grid inserted
// as a default under LD when no explicit DPrime directive is given.
var dprimeGridSize = 67

// FillDefaults inserts the canonical values a validated Model leaves
// unset: phenotype-code defaults, a PPL file name under two-point
// analysis, the LD D' integration grid, at least one theta=0.5 under
// fixed-grid two-point, a Penetrance(class 1) = Penetrance(class 1)
// constraint for a non-imprinting dichotomous run that has none (no
// default constraint is added for QT runs), and default mean/std/dof
// brackets under dynamic integration.
func FillDefaults(m *Model) {
	if m.PhenoCodes.Len() == 0 {
		m.PhenoCodes.Add(Progression{Start: 0, End: 0})
		m.PhenoCodes.Add(Progression{Start: 1, End: 1})
		m.PhenoCodes.Add(Progression{Start: 2, End: 2})
	}
	if !m.Multipoint && !m.MarkerToMarker && m.PPLFile == "" {
		m.PPLFile = "pplfile.out"
	}
	if m.LD && m.DPrime.Len() == 0 {
		step := 2.0 / float64(dprimeGridSize-1)
		for i := 0; i < dprimeGridSize; i++ {
			v := -1.0 + step*float64(i)
			m.DPrime.Add(Progression{Start: v, End: v})
		}
	}
	if !m.Multipoint && !m.MarkerToMarker && !m.DynamicIntegration && m.Theta.Len() == 0 {
		m.Theta.Add(Progression{Start: 0.5, End: 0.5})
	}
	if m.Trait == TraitModeDichotomous && !m.Imprinting && len(m.Constraints) == 0 {
		m.Constraints = append(m.Constraints, Constraint{Param1: "Penetrance", LiabilityClass1: 1, Op: "=", Param2: "Penetrance", LiabilityClass2: 1})
	}
	if m.DynamicIntegration {
		if m.Trait == TraitModeQTNormal {
			if m.Mean.Len() == 0 {
				m.Mean.Add(Progression{Start: -3, End: 3, Step: 0.1})
			}
			if m.StandardDev.Len() == 0 {
				m.StandardDev.Add(Progression{Start: 0.1, End: 3, Step: 0.1})
			}
		}
		if m.Trait == TraitModeQTChiSq && m.DegreesOfFreedom.Len() == 0 {
			m.DegreesOfFreedom.Add(Progression{Start: 1, End: 30, Step: 1})
		}
	}
}
