package paramset

// Qualifier records the provenance/state of a ParameterSet.
type Qualifier uint8

const (
	QualifierUnqualified Qualifier = 0
	QualifierQualified   Qualifier = 1
	QualifierDefault     Qualifier = 2
	QualifierModified    Qualifier = 3
)

func (q Qualifier) String() string {
	switch q {
	case QualifierUnqualified:
		return "Unqualified"
	case QualifierQualified:
		return "Qualified"
	case QualifierDefault:
		return "Default"
	case QualifierModified:
		return "Modified"
	default:
		return "Unknown"
	}
}

// InitialQualifierState is the daemon-wide lifecycle of the overall
// qualification process, distinct from a single set's Qualifier.
type InitialQualifierState uint8

const (
	InitialQualifierUndefined InitialQualifierState = 0
	InitialQualifierInProgress InitialQualifierState = 1
	InitialQualifierDefault    InitialQualifierState = 2
	InitialQualifierQualifying InitialQualifierState = 3
	InitialQualifierUnqualified InitialQualifierState = 4
	InitialQualifierQualified   InitialQualifierState = 5
)

func (s InitialQualifierState) String() string {
	switch s {
	case InitialQualifierUndefined:
		return "Undefined"
	case InitialQualifierInProgress:
		return "InProgress"
	case InitialQualifierDefault:
		return "Default"
	case InitialQualifierQualifying:
		return "Qualifying"
	case InitialQualifierUnqualified:
		return "Unqualified"
	case InitialQualifierQualified:
		return "Qualified"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of the three states the
// provider is permitted to cache: Default, Unqualified, Qualified.
func (s InitialQualifierState) IsTerminal() bool {
	switch s {
	case InitialQualifierDefault, InitialQualifierUnqualified, InitialQualifierQualified:
		return true
	default:
		return false
	}
}
