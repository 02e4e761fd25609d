package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
)

const mzMLNamespace = "http://psi.hupo.org/ms/mzml"

// New returns an empty mzML run that spectra can be appended to
func New(runID string) MzML {
	var f MzML
	f.content.XMLName = xml.Name{Space: mzMLNamespace, Local: "mzML"}
	f.content.CvList.Count = 2
	f.content.CvList.CvListXML = []byte(`
  <cv id="MS" fullName="Proteomics Standards Initiative Mass Spectrometry Ontology" URI="https://raw.githubusercontent.com/HUPO-PSI/psi-ms-CV/master/psi-ms.obo"/>
  <cv id="UO" fullName="Unit Ontology" URI="https://raw.githubusercontent.com/bio-ontology-research-group/unit-ontology/master/unit.obo"/>
 `)
	f.content.FileDescription.FileDescriptionXML = `<fileContent><cvParam cvRef="MS" accession="MS:1000579" name="MS1 spectrum"/></fileContent>`
	f.content.Run.ID = runID
	f.id2Index = make(map[string]int)
	return f
}

func (f *MzML) Write(writer io.Writer) error {
	if _, err := io.WriteString(writer,
		`<?xml version="1.0" encoding="utf-8"?>
`); err != nil {
		return err
	}
	enc := xml.NewEncoder(writer)
	// FIXME: We want readable XML, with XML tags starting on a new line.
	// GO's Encode doesn't always insert newlines, and using
	// Indent only works if the indent string is not empty,
	// resuling in a single space indent.
	enc.Indent(` `, `  `)
	var content mzMLContentWrite

	content.XMLName = f.content.XMLName
	content.Sl1 = "http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0.xsd"
	content.Version = "1.1.0"
	content.Sl2 = "http://www.w3.org/2001/XMLSchema-instance"
	content.CvList = f.content.CvList
	content.FileDescription = f.content.FileDescription
	content.SoftwareList = f.content.SoftwareList
	content.Run = f.content.Run

	return enc.Encode(&content)
}

// AppendSoftwareInfo adds info to the SoftwareList tag of the mzML file
func (f *MzML) AppendSoftwareInfo(id string, version string) {
	if f.content.SoftwareList == nil {
		f.content.SoftwareList = &softwareList{}
	}
	f.content.SoftwareList.Count++
	f.content.SoftwareList.Software = append(f.content.SoftwareList.Software,
		software{ID: id, Version: version})
}

// AppendSpectrum adds a centroided MS1 spectrum recorded at retentionTime
// (seconds). The total ion current is stored as computed from p.
func (f *MzML) AppendSpectrum(retentionTime float64, p []Peak) error {
	index := f.NumSpecs()
	id := fmt.Sprintf("scan=%d", index+1)

	var tic float64
	for _, peak := range p {
		tic += peak.Intens
	}
	spec := spectrum{
		Index:              index,
		ID:                 id,
		DefaultArrayLength: int64(len(p)),
		CvPar: []CVParam{
			{Accession: cvMSLevel, Name: "ms level", Value: "1"},
			{Accession: cvCentroid, Name: "centroid spectrum"},
			{Accession: cvTotalIonCurrent, Name: "total ion current",
				Value: strconv.FormatFloat(tic, 'g', -1, 64)},
		},
	}
	spec.ScanList.Count = 1
	spec.ScanList.Scan = []scan{{CvPar: []CVParam{{
		Accession:     cvScanStartTime,
		Name:          "scan start time",
		Value:         strconv.FormatFloat(retentionTime, 'g', -1, 64),
		UnitCvRef:     "UO",
		UnitAccession: uoSecond,
		UnitName:      "second",
	}}}}
	for _, mzArray := range []bool{true, false} {
		b64, err := encodeBinary(p, true, true, mzArray)
		if err != nil {
			return err
		}
		arrayType := CVParam{Accession: cvIntensityArray, Name: "intensity array"}
		if mzArray {
			arrayType = CVParam{Accession: cvMzArray, Name: "m/z array"}
		}
		spec.BinaryDataArrayList.BinaryDataArray = append(
			spec.BinaryDataArrayList.BinaryDataArray, binaryDataArray{
				EncodedLength: len(b64),
				ArrayLength:   len(p),
				CvPar: []CVParam{
					{Accession: cv64Bit, Name: "64-bit float"},
					{Accession: cvZlib, Name: "zlib compression"},
					arrayType,
				},
				Binary: b64,
			})
	}
	spec.BinaryDataArrayList.Count = len(spec.BinaryDataArrayList.BinaryDataArray)

	f.content.Run.SpectrumList.Spectrum = append(f.content.Run.SpectrumList.Spectrum, spec)
	f.content.Run.SpectrumList.Count = f.NumSpecs()
	f.index2id = append(f.index2id, id)
	if f.id2Index == nil {
		f.id2Index = make(map[string]int)
	}
	f.id2Index[id] = index
	return nil
}

func encodeBinary(p []Peak, zlibCompression bool, bits64 bool, mzArray bool) (
	string, error) {

	var rawUncompressed []byte

	// Some code duplication below in order to optimize loops
	if bits64 {
		rawUncompressed = make([]byte, len(p)*8)
		if mzArray {
			for i, peak := range p {
				binary.LittleEndian.PutUint64(rawUncompressed[(8*i):], math.Float64bits(peak.Mz))
			}
		} else {
			for i, peak := range p {
				binary.LittleEndian.PutUint64(rawUncompressed[(8*i):], math.Float64bits(peak.Intens))
			}
		}
	} else {
		rawUncompressed = make([]byte, len(p)*4)
		if mzArray {
			for i, peak := range p {
				binary.LittleEndian.PutUint32(rawUncompressed[(4*i):], math.Float32bits(float32(peak.Mz)))
			}
		} else {
			for i, peak := range p {
				binary.LittleEndian.PutUint32(rawUncompressed[(4*i):], math.Float32bits(float32(peak.Intens)))
			}
		}
	}
	data := rawUncompressed
	if zlibCompression {
		var b bytes.Buffer
		z := zlib.NewWriter(&b)
		if _, err := z.Write(rawUncompressed); err != nil {
			return "", err
		}
		// zlib writer must explicitly be closed here, otherwise result is invalid
		if err := z.Close(); err != nil {
			return "", err
		}
		data = b.Bytes()
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
