package loader

// Kind is the classification of an update row, read from its VMAJ code.
type Kind int

const (
	// KindUnsupported rows are skipped.
	KindUnsupported Kind = iota

	// KindCreation (C) is a new establishment.
	KindCreation

	// KindPriorUpdate (I) carries the state before a modification.
	KindPriorUpdate

	// KindNewUpdate (F) carries the state after a modification.
	KindNewUpdate

	// KindDeletion (E) is a closed establishment.
	KindDeletion

	// KindCommercial (D) became commercially diffusible.
	KindCommercial

	// KindNonCommercial (O) stopped being commercially diffusible.
	KindNonCommercial
)

var kindNames = map[Kind]string{
	KindUnsupported:   "unsupported",
	KindCreation:      "creation",
	KindPriorUpdate:   "prior_update",
	KindNewUpdate:     "modification",
	KindDeletion:      "deletion",
	KindCommercial:    "commercial",
	KindNonCommercial: "not_commercial",
}

// String returns the kind name used in logs.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Classify maps a VMAJ code to its Kind. Codes are matched exactly.
func Classify(code string) Kind {
	switch code {
	case "C":
		return KindCreation
	case "I":
		return KindPriorUpdate
	case "F":
		return KindNewUpdate
	case "E":
		return KindDeletion
	case "D":
		return KindCommercial
	case "O":
		return KindNonCommercial
	default:
		return KindUnsupported
	}
}
