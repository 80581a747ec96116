package anonymizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Option is an optional de-identification method that retains a category of
// attributes the basic profile would otherwise clear.
// See PS3.16 CID 7050 for the method codes.
type Option string

const (
	RetainPatientCharacteristics Option = "retain-patient-characteristics" // DCM 113108
	RetainDeviceIdentity         Option = "retain-device-identity"         // DCM 113109
	RetainInstitutionIdentity    Option = "retain-institution-identity"    // DCM 113112
)

// MethodInfo describes a de-identification method for display.
type MethodInfo struct {
	Option      Option // empty for the basic profile
	Code        string
	Name        string
	Description string
}

// Methods is the catalogue of supported methods, basic profile first.
var Methods = []MethodInfo{
	{"", "DCM_113100", "Basic Application Confidentiality Profile",
		"PatientName, PatientID, PatientAddress, AdditionalPatientHistory, ..."},
	{RetainPatientCharacteristics, "DCM_113108", "Retain Patient Characteristics Option",
		"PatientAge, PatientSex, PatientWeight, SmokingStatus, ..."},
	{RetainDeviceIdentity, "DCM_113109", "Retain Device Identity Option",
		"StationName, DeviceSerialNumber, DeviceUID, ..."},
	{RetainInstitutionIdentity, "DCM_113112", "Retain Institution Identity Option",
		"InstitutionName, InstitutionAddress, OperatorsName, ..."},
}

// ParseOption accepts an option name ("retain-device-identity"), a method code
// ("DCM_113109") or its bare number ("113109").
func ParseOption(s string) (Option, error) {
	s = strings.TrimSpace(s)
	for _, m := range Methods {
		if m.Option == "" {
			continue
		}
		if strings.EqualFold(s, string(m.Option)) ||
			strings.EqualFold(s, m.Code) ||
			s == strings.TrimPrefix(m.Code, "DCM_") {
			return m.Option, nil
		}
	}
	return "", fmt.Errorf("unknown de-identification option %q", s)
}

// ActionKind is what happens to a field.
type ActionKind int

const (
	ActionRetain    ActionKind = iota // leave untouched
	ActionClear                       // set to empty when present
	ActionReplace                     // set to Value, inserting when absent
	ActionPseudonym                   // set to the study pseudonym, inserting when absent
	ActionRemove                      // delete the field
)

func (k ActionKind) String() string {
	switch k {
	case ActionRetain:
		return "retain"
	case ActionClear:
		return "clear"
	case ActionReplace:
		return "replace"
	case ActionPseudonym:
		return "pseudonym"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Action is a field action with its replacement value, if any.
type Action struct {
	Kind  ActionKind
	Value string
}

// Rule applies Action to Tags unless the profile retains the Unless option.
// Rules with an empty Unless belong to the basic profile and always apply.
type Rule struct {
	Category string
	Tags     []tag.Tag
	Action   Action
	Unless   Option
}

// Tags not given a name below are not exported by every dictionary version.
var (
	additionalPatientHistory    = tag.Tag{Group: 0x0010, Element: 0x21B0}
	smokingStatus               = tag.Tag{Group: 0x0010, Element: 0x21A0}
	patientInstitutionResidence = tag.Tag{Group: 0x0038, Element: 0x0400}
	deviceUID                   = tag.Tag{Group: 0x0018, Element: 0x1002}
	plateID                     = tag.Tag{Group: 0x0018, Element: 0x1004}
	gantryID                    = tag.Tag{Group: 0x0018, Element: 0x1008}
	detectorID                  = tag.Tag{Group: 0x0018, Element: 0x700A}
)

// Sentinel values for patient characteristics.
const (
	UnknownAge = "000Y"
	OtherSex   = "O"
)

// Rules is the profile policy table. New options only need new rows here.
var Rules = []Rule{
	// Basic Application Confidentiality Profile
	{
		Category: "patient identity",
		Tags:     []tag.Tag{tag.PatientName, tag.PatientID},
		Action:   Action{Kind: ActionPseudonym},
	},
	{
		Category: "patient address and history",
		Tags:     []tag.Tag{tag.PatientAddress, additionalPatientHistory},
		Action:   Action{Kind: ActionClear},
	},
	{
		Category: "patient residence",
		Tags:     []tag.Tag{patientInstitutionResidence},
		Action:   Action{Kind: ActionRemove},
	},

	// Retain Patient Characteristics Option
	{
		Category: "patient age",
		Tags:     []tag.Tag{tag.PatientAge},
		Action:   Action{Kind: ActionReplace, Value: UnknownAge},
		Unless:   RetainPatientCharacteristics,
	},
	{
		Category: "patient sex",
		Tags:     []tag.Tag{tag.PatientSex},
		Action:   Action{Kind: ActionReplace, Value: OtherSex},
		Unless:   RetainPatientCharacteristics,
	},
	{
		Category: "patient body characteristics",
		Tags:     []tag.Tag{tag.PatientSize, tag.PatientWeight, smokingStatus},
		Action:   Action{Kind: ActionClear},
		Unless:   RetainPatientCharacteristics,
	},

	// Retain Device Identity Option
	{
		Category: "device identity",
		Tags:     []tag.Tag{tag.StationName, tag.DeviceSerialNumber, deviceUID, plateID, gantryID, detectorID},
		Action:   Action{Kind: ActionClear},
		Unless:   RetainDeviceIdentity,
	},

	// Retain Institution Identity Option
	{
		Category: "institution",
		Tags:     []tag.Tag{tag.InstitutionName, tag.InstitutionAddress, tag.InstitutionalDepartmentName},
		Action:   Action{Kind: ActionClear},
		Unless:   RetainInstitutionIdentity,
	},
	{
		Category: "personnel",
		Tags: []tag.Tag{
			tag.OperatorsName,
			tag.ReferringPhysicianName,
			tag.PerformingPhysicianName,
			tag.PhysiciansOfRecord,
			tag.NameOfPhysiciansReadingStudy,
		},
		Action: Action{Kind: ActionClear},
		Unless: RetainInstitutionIdentity,
	},
}

// Profile is an immutable selection of optional methods on top of the basic
// profile.
type Profile struct {
	retained map[Option]bool
}

// NewProfile returns a profile retaining the given options.
func NewProfile(opts ...Option) (Profile, error) {
	p := Profile{retained: make(map[Option]bool, len(opts))}
	for _, o := range opts {
		opt, err := ParseOption(string(o))
		if err != nil {
			return Profile{}, err
		}
		p.retained[opt] = true
	}
	return p, nil
}

// Retains reports whether the option is selected.
func (p Profile) Retains(o Option) bool {
	return p.retained[o]
}

// Options returns the selected options in sorted order.
func (p Profile) Options() []Option {
	opts := make([]Option, 0, len(p.retained))
	for o := range p.retained {
		opts = append(opts, o)
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
	return opts
}

// FieldAction is the resolved action for one tag.
type FieldAction struct {
	Tag      tag.Tag
	Category string
	Action   Action
}

// Actions resolves Rules against the profile, in table order. Retained
// categories are listed with ActionRetain.
func (p Profile) Actions() []FieldAction {
	var actions []FieldAction
	for _, r := range Rules {
		act := r.Action
		if r.Unless != "" && p.retained[r.Unless] {
			act = Action{Kind: ActionRetain}
		}
		for _, t := range r.Tags {
			actions = append(actions, FieldAction{Tag: t, Category: r.Category, Action: act})
		}
	}
	return actions
}
