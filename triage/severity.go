package triage

// Severity is the incident level assigned to a ticket.
type Severity string

const (
	SeverityCritical  Severity = "S1"
	SeverityImportant Severity = "S2"
	SeverityRegular   Severity = "S3"
)

type Type string

const (
	TypeBug         Type = "BUG"
	TypeEnhancement Type = "ENHANCEMENT"
	TypeQuestion    Type = "QUESTION"
	TypeRequest     Type = "REQUEST"
)

type severityConfig struct {
	Name          string
	SLAResponse   string
	SLAResolution string
	Priority      string
}

var severityConfigs = map[Severity]severityConfig{
	SeverityCritical: {
		Name:          "Critical Incident",
		SLAResponse:   "Immediate",
		SLAResolution: "4 hours",
		Priority:      "Critical",
	},
	SeverityImportant: {
		Name:          "Important Incident",
		SLAResponse:   "Within 30 minutes",
		SLAResolution: "8 hours",
		Priority:      "High",
	},
	SeverityRegular: {
		Name:          "Regular Problem",
		SLAResponse:   "Within 2 hours",
		SLAResolution: "2 business days",
		Priority:      "Normal",
	},
}

var typeDescriptions = map[Type]string{
	TypeBug:         "A defect or error in the system causing unexpected behavior",
	TypeEnhancement: "Request for new features or improvements to existing functionality",
	TypeQuestion:    "Inquiry about how to use features or clarification needed",
	TypeRequest:     "Configuration changes, access requests, or general service requests",
}

// TicketPriority maps a severity onto the Freshservice priority scale.
func TicketPriority(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityImportant:
		return 3
	default:
		return 2
	}
}

// wantsSolution reports whether a knowledge-base solution is drafted for t.
func wantsSolution(t Type) bool {
	return t == TypeBug || t == TypeQuestion || t == TypeRequest
}
