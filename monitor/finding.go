package monitor

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Category string

const (
	CategoryCenter   Category = "center"
	CategoryProducer Category = "producer"
	CategoryAdmin    Category = "admin"
	CategorySystem   Category = "system"
)

// Kind tags a finding. It is also the key the rate limiter looks up.
type Kind string

const (
	KindCenterInactive        Kind = "center_inactive"
	KindCenterInactiveAdmin   Kind = "center_inactive_admin"
	KindQuotaPressure         Kind = "quota_pressure"
	KindOrdersCompleted       Kind = "orders_completed"
	KindStaleRevisions        Kind = "stale_revisions"
	KindPerformanceSuggestion Kind = "performance_suggestion"

	KindPendingBacklog   Kind = "pending_backlog"
	KindCapacityPressure Kind = "capacity_pressure"
	KindOnTimeRate       Kind = "on_time_rate"
	KindNetworkExpansion Kind = "network_expansion"

	KindWeeklyReport     Kind = "weekly_report"
	KindSecurityRisk     Kind = "security_risk"
	KindOverdueWorkflow  Kind = "overdue_workflow"
	KindUnassignedOrders Kind = "unassigned_orders"

	KindOverdueOrders       Kind = "overdue_orders"
	KindLargeMoldTable      Kind = "large_mold_table"
	KindOrphanUsers         Kind = "orphan_users"
	KindWeakPasswords       Kind = "weak_passwords"
	KindDiskSpace           Kind = "disk_space"
	KindSuspendedNetworks   Kind = "suspended_networks"
	KindNetworkTerminations Kind = "network_terminations"

	KindDataAccess  Kind = "data_access"
	KindSystemAlert Kind = "system_alert"
)

// Recipient is a user account a notification can be addressed to.
type Recipient struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Actor is the subject a finding is about. It is one of CenterActor,
// ProducerActor, AdminActor or SystemActor.
type Actor interface {
	isActor()
}

type CenterActor struct {
	CenterID uint
	Name     string
	Owner    Recipient
}

type ProducerActor struct {
	ProducerID  uint
	CompanyName string
	Owner       Recipient
}

type AdminActor struct {
	Admin Recipient
}

// SystemActor is used for system-wide findings that have no owning account.
type SystemActor struct{}

func (CenterActor) isActor()   {}
func (ProducerActor) isActor() {}
func (AdminActor) isActor()    {}
func (SystemActor) isActor()   {}

// OwnerOf returns the account that owns the subject, if any.
func OwnerOf(a Actor) (Recipient, bool) {
	switch v := a.(type) {
	case CenterActor:
		return v.Owner, v.Owner.UserID != 0
	case ProducerActor:
		return v.Owner, v.Owner.UserID != 0
	case AdminActor:
		return v.Admin, v.Admin.UserID != 0
	default:
		return Recipient{}, false
	}
}

// Label is a short human name for the subject.
func Label(a Actor) string {
	switch v := a.(type) {
	case CenterActor:
		return v.Name
	case ProducerActor:
		return v.CompanyName
	case AdminActor:
		return v.Admin.Username
	default:
		return "system"
	}
}

type Audience int

const (
	// AudienceOwner addresses the subject's owner. Critical findings also reach every administrator.
	AudienceOwner Audience = iota
	// AudienceAdmins addresses every administrator and not the owner.
	AudienceAdmins
)

// Finding is the transient result of one rule check. It is never stored as is.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Subject  Actor    `json:"subject"`
	Audience Audience `json:"-"`
	Message  string   `json:"message"`
	Count    int64    `json:"count"`
	Percent  float64  `json:"percent,omitempty"`
	Link     string   `json:"link,omitempty"`
}

func countBySeverity(findings []Finding) (critical, warning, info int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		default:
			info++
		}
	}
	return critical, warning, info
}
