package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/mathmed/kelvin/radsmm"
)

// headerSummary is the JSON-printable view of a store's header dump.
type headerSummary struct {
	Version, Subversion int32
	ElementType         string
	ModelKind           string
	MarkerMode          string
	UseDiseq            string
	Ordering            string
	PedigreeCount       int32
	MarkerCount         int32
	ThetaCount          int32
	PenetranceCount     int32
	LiabilityClasses    int32
	QModelCount         int32
	DiseqCount          int32
	GeneFrequencyCount  int32
	ChunksPerFile       int64
	NumberOfFiles       int32
	Date                string
	Description         string
	MarkerLabels        []string `json:",omitempty"`
	PedigreeLabels      []string `json:",omitempty"`
}

func dump(path string, withLabels bool) error {
	st, err := radsmm.OpenFile(path, true)
	if err != nil {
		return err
	}
	defer st.Close() // nolint: errcheck

	h := st.Header()
	s := headerSummary{
		Version:            h.Version,
		Subversion:         h.Subversion,
		ElementType:        string(rune(h.ElementType)),
		ModelKind:          string(rune(h.ModelKind)),
		MarkerMode:         string(rune(h.MarkerMode)),
		UseDiseq:           string(rune(h.UseDiseq)),
		Ordering:           string(rune(h.Ordering)),
		PedigreeCount:      h.PedigreeCount,
		MarkerCount:        h.MarkerCount,
		ThetaCount:         h.ThetaCount,
		PenetranceCount:    h.PenetranceCount,
		LiabilityClasses:   h.LiabilityClasses,
		QModelCount:        h.QModelCount,
		DiseqCount:         h.DiseqCount,
		GeneFrequencyCount: h.GeneFrequencyCount,
		ChunksPerFile:      h.ChunksPerFile,
		NumberOfFiles:      h.NumberOfFiles,
		Date:               trimNulls(h.Date[:]),
		Description:        trimNulls(h.Description[:]),
	}
	if withLabels {
		s.MarkerLabels = st.MarkerLabels()
		s.PedigreeLabels = st.PedigreeLabels()
	}
	js, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(js))
	return nil
}

func trimNulls(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
