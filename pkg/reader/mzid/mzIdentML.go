package mzid

import "encoding/xml"

// Types for parsing mzIdentML. Only the parts needed to build PSM records
// are decoded.

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	AnalysisSoftware             []analysisSoftware             `xml:"AnalysisSoftwareList>AnalysisSoftware"`
	DBSequence                   []dbSequence                   `xml:"SequenceCollection>DBSequence"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	PeptideEvidence              []peptideEvidence              `xml:"SequenceCollection>PeptideEvidence"`
	SpectraData                  []spectraData                  `xml:"DataCollection>Inputs>SpectraData"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type analysisSoftware struct {
	ID           string    `xml:"id,attr"`
	Name         string    `xml:"name,attr"`
	SoftwareName []cvParam `xml:"SoftwareName>cvParam"`
}

type dbSequence struct {
	ID        string `xml:"id,attr"`
	Accession string `xml:"accession,attr"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// Location 0 is the N-terminus, length+1 the C-terminus
	Location              *int      `xml:"location,attr"`
	MonoisotopicMassDelta string    `xml:"monoisotopicMassDelta,attr"`
	Residues              string    `xml:"residues,attr"`
	CvPar                 []cvParam `xml:"cvParam"`
}

type peptideEvidence struct {
	ID            string `xml:"id,attr"`
	DBSequenceRef string `xml:"dBSequence_ref,attr"`
	Start         string `xml:"start,attr"`
	End           string `xml:"end,attr"`
	Pre           string `xml:"pre,attr"`
	Post          string `xml:"post,attr"`
	IsDecoy       string `xml:"isDecoy,attr"`
}

type spectraData struct {
	ID       string `xml:"id,attr"`
	Location string `xml:"location,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectraDataRef             string `xml:"spectraData_ref,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []cvParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ID                       string        `xml:"id,attr"`
	ChargeState              int           `xml:"chargeState,attr"`
	ExperimentalMassToCharge float64       `xml:"experimentalMassToCharge,attr"`
	CalculatedMassToCharge   string        `xml:"calculatedMassToCharge,attr"`
	PeptideRef               string        `xml:"peptide_ref,attr"`
	Rank                     string        `xml:"rank,attr"`
	PeptideEvidenceRef       []evidenceRef `xml:"PeptideEvidenceRef"`
	CvPar                    []cvParam     `xml:"cvParam"`
	UserPar                  []userParam   `xml:"userParam"`
}

type evidenceRef struct {
	Ref string `xml:"peptideEvidence_ref,attr"`
}

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type userParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
