package monitor

import "strings"

var verbs = map[Kind]string{
	KindCenterInactive:        "inactive for a long time",
	KindCenterInactiveAdmin:   "center inactive for a long time",
	KindQuotaPressure:         "mold limit almost reached",
	KindOrdersCompleted:       "your orders are completed",
	KindStaleRevisions:        "revision requests waiting",
	KindPerformanceSuggestion: "performance suggestion",
	KindPendingBacklog:        "pending orders",
	KindCapacityPressure:      "capacity almost full",
	KindOnTimeRate:            "delivery performance warning",
	KindNetworkExpansion:      "network expansion suggestion",
	KindWeeklyReport:          "weekly performance report",
	KindSecurityRisk:          "security warning",
	KindOverdueWorkflow:       "workflow suggestion",
	KindUnassignedOrders:      "orders without producer",
	KindOverdueOrders:         "overdue orders",
	KindLargeMoldTable:        "large mold table",
	KindOrphanUsers:           "orphan user accounts",
	KindWeakPasswords:         "weak passwords",
	KindDiskSpace:             "disk space low",
	KindSuspendedNetworks:     "suspended networks",
	KindNetworkTerminations:   "network terminations",
	KindDataAccess:            "data access failure",
	KindSystemAlert:           "system alert",
}

// Verb is the short notification headline for kind.
func Verb(kind Kind) string {
	if v, ok := verbs[kind]; ok {
		return v
	}
	return strings.ReplaceAll(string(kind), "_", " ")
}
