package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Directives accumulates every directive observed during Parse,
// unvalidated. Validate consumes it to build a Model.
type Directives struct {
	FileNames   map[string]string
	Flags       map[string]bool
	Integers    map[string]int
	Ranges      map[string]*RangeSet
	Multipoint  *int
	MTMMode     *MarkerToMarkerMode
	SexSpecific bool
	LD          bool
	QTMode      *TraitMode
	QTTMode     *TraitMode
	Constraints []Constraint
	SurfaceOut  string
	seen        map[string]bool
}

func newDirectives() *Directives {
	return &Directives{
		FileNames: make(map[string]string),
		Flags:     make(map[string]bool),
		Integers:  make(map[string]int),
		Ranges:    make(map[string]*RangeSet),
		seen:      make(map[string]bool),
	}
}

type handlerFunc func(d *Directives, args []string) error

type directive struct {
	name    string
	minArgs int
	maxArgs int // -1 means unbounded
	handler handlerFunc
}

func fileHandler(key string) handlerFunc {
	return func(d *Directives, args []string) error {
		d.FileNames[key] = args[0]
		return nil
	}
}

func flagHandler(key string) handlerFunc {
	return func(d *Directives, args []string) error {
		d.Flags[key] = true
		return nil
	}
}

func intHandler(key string) handlerFunc {
	return func(d *Directives, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("config: %s requires an integer argument, got %q", key, args[0])
		}
		d.Integers[key] = v
		return nil
	}
}

func rangeHandler(key string) handlerFunc {
	return func(d *Directives, args []string) error {
		rs, err := ParseRangeTokens(args)
		if err != nil {
			return err
		}
		d.Ranges[key] = rs
		return nil
	}
}

func noOpHandler(d *Directives, args []string) error { return nil }

func multipointHandler(d *Directives, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("config: Multipoint requires an integer argument, got %q", args[0])
	}
	d.Multipoint = &n
	return nil
}

func markerToMarkerHandler(d *Directives, args []string) error {
	var m MarkerToMarkerMode
	switch strings.ToLower(args[0]) {
	case "all":
		m = MarkerToMarkerAll
	case "adjacent":
		m = MarkerToMarkerAdjacent
	default:
		return fmt.Errorf("config: MarkerToMarker requires All or Adjacent, got %q", args[0])
	}
	d.MTMMode = &m
	return nil
}

func sexSpecificHandler(d *Directives, args []string) error {
	d.SexSpecific = true
	return nil
}

func ldHandler(d *Directives, args []string) error {
	d.LD = true
	return nil
}

func qtHandler(d *Directives, args []string) error {
	m, err := parseTraitMode("QT", args[0])
	if err != nil {
		return err
	}
	d.QTMode = &m
	return nil
}

func qttHandler(d *Directives, args []string) error {
	m, err := parseTraitMode("QTT", args[0])
	if err != nil {
		return err
	}
	d.QTTMode = &m
	return nil
}

func parseTraitMode(directiveName, arg string) (TraitMode, error) {
	switch strings.ToLower(arg) {
	case "normal":
		return TraitModeQTNormal, nil
	case "chisq":
		return TraitModeQTChiSq, nil
	default:
		return 0, fmt.Errorf("config: %s requires Normal or ChiSq, got %q", directiveName, arg)
	}
}

func constraintHandler(d *Directives, args []string) error {
	c, err := parseConstraint(args)
	if err != nil {
		return err
	}
	d.Constraints = append(d.Constraints, c)
	return nil
}

func surfacesPathHandler(d *Directives, args []string) error {
	d.SurfaceOut = args[0]
	return nil
}

// parseConstraint parses "Param1 [LCk] op Param2 [LCk]" into a
// Constraint. Liability-class suffixes are written as "Param(k)".
func parseConstraint(args []string) (Constraint, error) {
	if len(args) < 3 {
		return Constraint{}, fmt.Errorf("config: Constraint requires at least 3 arguments")
	}
	p1, lc1, err := splitLiabilityClass(args[0])
	if err != nil {
		return Constraint{}, err
	}
	op := args[1]
	switch op {
	case "<", ">", "<=", ">=", "=", "!=":
	default:
		return Constraint{}, fmt.Errorf("config: Constraint has unrecognized operator %q", op)
	}
	p2, lc2, err := splitLiabilityClass(args[2])
	if err != nil {
		return Constraint{}, err
	}
	c := Constraint{Param1: p1, LiabilityClass1: lc1, Op: op, Param2: p2, LiabilityClass2: lc2}
	if len(args) >= 4 && strings.EqualFold(args[3], "or") {
		c.Disjunction = true
	}
	return c, nil
}

func splitLiabilityClass(tok string) (param string, class int, err error) {
	open := strings.IndexByte(tok, '(')
	if open < 0 {
		return tok, 1, nil
	}
	if !strings.HasSuffix(tok, ")") {
		return "", 0, fmt.Errorf("config: malformed liability-class reference %q", tok)
	}
	class, err = strconv.Atoi(tok[open+1 : len(tok)-1])
	if err != nil {
		return "", 0, fmt.Errorf("config: malformed liability-class reference %q", tok)
	}
	return tok[:open], class, nil
}

// directiveTable is sorted by name so lookupDirective can binary-search
// it and match an unambiguous case-insensitive prefix.
var directiveTable = buildDirectiveTable()

func buildDirectiveTable() []directive {
	t := []directive{
		{"FrequencyFile", 1, 1, fileHandler("FrequencyFile")},
		{"MapFile", 1, 1, fileHandler("MapFile")},
		{"PedigreeFile", 1, 1, fileHandler("PedigreeFile")},
		{"LocusFile", 1, 1, fileHandler("LocusFile")},
		{"BayesRatioFile", 1, 1, fileHandler("BayesRatioFile")},
		{"PPLFile", 1, 1, fileHandler("PPLFile")},
		{"CountFile", 1, 1, fileHandler("CountFile")},
		{"MODFile", 1, 1, fileHandler("MODFile")},
		{"Surface", 1, 1, fileHandler("Surface")},
		{"NIDetailFile", 1, 1, fileHandler("NIDetailFile")},

		{"NonPolynomial", 0, 0, flagHandler("NonPolynomial")},
		{"Imprinting", 0, 0, flagHandler("Imprinting")},
		{"SexLinked", 0, 0, flagHandler("SexLinked")},
		{"DryRun", 0, 0, flagHandler("DryRun")},
		{"ExtraMODs", 0, 0, flagHandler("ExtraMODs")},
		{"ForceBRFile", 0, 0, flagHandler("ForceBRFile")},

		{"PolynomialScale", 1, 1, intHandler("PolynomialScale")},
		{"LiabilityClasses", 1, 1, intHandler("LiabilityClasses")},
		{"DiseaseAlleles", 1, 1, intHandler("DiseaseAlleles")},
		{"MaxIterations", 1, 1, intHandler("MaxIterations")},

		{"TraitPositions", 1, -1, rangeHandler("TraitPositions")},
		{"MarkerAlleleFrequency", 1, -1, rangeHandler("MarkerAlleleFrequency")},
		{"DiseaseGeneFrequency", 1, -1, rangeHandler("DiseaseGeneFrequency")},
		{"DPrime", 1, -1, rangeHandler("DPrime")},
		{"Theta", 1, -1, rangeHandler("Theta")},
		{"Alpha", 1, -1, rangeHandler("Alpha")},
		{"Penetrance", 1, -1, rangeHandler("Penetrance")},
		{"Mean", 1, -1, rangeHandler("Mean")},
		{"StandardDev", 1, -1, rangeHandler("StandardDev")},
		{"DegreesOfFreedom", 1, -1, rangeHandler("DegreesOfFreedom")},
		{"Threshold", 1, -1, rangeHandler("Threshold")},
		{"Truncate", 1, -1, rangeHandler("Truncate")},
		{"PhenoCodes", 1, -1, rangeHandler("PhenoCodes")},

		{"Multipoint", 1, 1, multipointHandler},
		{"MarkerToMarker", 1, 1, markerToMarkerHandler},
		{"SexSpecific", 0, 0, sexSpecificHandler},
		{"LD", 0, 0, ldHandler},
		{"QT", 1, 1, qtHandler},
		{"QTT", 1, 2, qttHandler},
		{"Constraint", 3, -1, constraintHandler},

		{"SurfacesPath", 1, 1, surfacesPathHandler},

		// Silent no-ops, accepted for backward compatibility with
		// directives folded into Theta+SexSpecific (MaleTheta,
		// FemaleTheta) or no longer meaningful (Log).
		{"MaleTheta", 1, -1, noOpHandler},
		{"FemaleTheta", 1, -1, noOpHandler},
		{"Log", 0, -1, noOpHandler},
	}
	sort.Slice(t, func(i, j int) bool { return strings.ToLower(t[i].name) < strings.ToLower(t[j].name) })
	return t
}

// lookupDirective finds the table entry whose name matches name as an
// unambiguous case-insensitive prefix, or as an exact match when name
// is itself a prefix of more than one entry.
func lookupDirective(name string) (*directive, []string, error) {
	lower := strings.ToLower(name)
	i := sort.Search(len(directiveTable), func(i int) bool {
		return strings.ToLower(directiveTable[i].name) >= lower
	})
	var matches []*directive
	for j := i; j < len(directiveTable) && strings.HasPrefix(strings.ToLower(directiveTable[j].name), lower); j++ {
		matches = append(matches, &directiveTable[j])
	}
	switch len(matches) {
	case 0:
		return nil, nearestDirectiveNames(name), fmt.Errorf("config: unrecognized directive %q", name)
	case 1:
		return matches[0], nil, nil
	default:
		for _, m := range matches {
			if strings.EqualFold(m.name, name) {
				return m, nil, nil
			}
		}
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.name
		}
		return nil, names, fmt.Errorf("config: directive %q is an ambiguous prefix of %s", name, strings.Join(names, ", "))
	}
}
