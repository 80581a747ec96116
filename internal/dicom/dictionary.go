package dicom

import "github.com/suyashkumar/dicom/pkg/tag"

// Repeating groups hold up to 16 copies of one module in the even groups
// base..base+0x1E. The parser's dictionary has no entries for them.
const (
	curveGroup         = 0x5000
	overlayGroup       = 0x6000
	variablePixelGroup = 0x7F00
	repeatingGroupMask = 0xFFE1
)

// repeatingElements are the standard elements of the repeating groups, keyed
// by element number within the base group.
var repeatingElements = map[uint16]map[uint16]string{
	curveGroup: {
		0x0005: "CurveDimensions",
		0x0010: "NumberOfPoints",
		0x0020: "TypeOfData",
		0x0022: "CurveDescription",
		0x0030: "AxisUnits",
		0x0040: "AxisLabels",
		0x0103: "DataValueRepresentation",
		0x0104: "MinimumCoordinateValue",
		0x0105: "MaximumCoordinateValue",
		0x0106: "CurveRange",
		0x0110: "CurveDataDescriptor",
		0x0112: "CoordinateStartValue",
		0x0114: "CoordinateStepValue",
		0x1001: "CurveActivationLayer",
		0x2000: "AudioType",
		0x2002: "AudioSampleFormat",
		0x2004: "NumberOfChannels",
		0x2006: "NumberOfSamples",
		0x2008: "SampleRate",
		0x200A: "TotalTime",
		0x200C: "AudioSampleData",
		0x200E: "AudioComments",
		0x2500: "CurveLabel",
		0x2600: "CurveReferencedOverlaySequence",
		0x2610: "CurveReferencedOverlayGroup",
		0x3000: "CurveData",
	},
	overlayGroup: {
		0x0010: "OverlayRows",
		0x0011: "OverlayColumns",
		0x0012: "OverlayPlanes",
		0x0015: "NumberOfFramesInOverlay",
		0x0022: "OverlayDescription",
		0x0040: "OverlayType",
		0x0045: "OverlaySubtype",
		0x0050: "OverlayOrigin",
		0x0051: "ImageFrameOrigin",
		0x0052: "OverlayPlaneOrigin",
		0x0060: "OverlayCompressionCode",
		0x0061: "OverlayCompressionOriginator",
		0x0062: "OverlayCompressionLabel",
		0x0063: "OverlayCompressionDescription",
		0x0066: "OverlayCompressionStepPointers",
		0x0068: "OverlayRepeatInterval",
		0x0069: "OverlayBitsGrouped",
		0x0100: "OverlayBitsAllocated",
		0x0102: "OverlayBitPosition",
		0x0110: "OverlayFormat",
		0x0200: "OverlayLocation",
		0x0800: "OverlayCodeLabel",
		0x0802: "OverlayNumberOfTables",
		0x0803: "OverlayCodeTableLocation",
		0x0804: "OverlayBitsForCodeWord",
		0x1001: "OverlayActivationLayer",
		0x1100: "OverlayDescriptorGray",
		0x1101: "OverlayDescriptorRed",
		0x1102: "OverlayDescriptorGreen",
		0x1103: "OverlayDescriptorBlue",
		0x1200: "OverlaysGray",
		0x1201: "OverlaysRed",
		0x1202: "OverlaysGreen",
		0x1203: "OverlaysBlue",
		0x1301: "ROIArea",
		0x1302: "ROIMean",
		0x1303: "ROIStandardDeviation",
		0x1500: "OverlayLabel",
		0x3000: "OverlayData",
		0x4000: "OverlayComments",
	},
	variablePixelGroup: {
		0x0010: "VariablePixelData",
		0x0011: "VariableNextDataGroup",
		0x0020: "VariableCoefficientsSDVN",
		0x0030: "VariableCoefficientsSDHN",
		0x0040: "VariableCoefficientsSDDN",
	},
}

// repeatingName returns the dictionary name of a repeating-group element.
func repeatingName(t tag.Tag) (string, bool) {
	elements, ok := repeatingElements[t.Group&repeatingGroupMask]
	if !ok {
		return "", false
	}
	name, ok := elements[t.Element]
	return name, ok
}

// TagName returns the dictionary keyword for t, or "" when it is unknown.
func TagName(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil {
		return info.Name
	}
	name, _ := repeatingName(t)
	return name
}
