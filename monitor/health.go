package monitor

type CacheState int

const (
	CacheUnknown CacheState = iota
	CacheHealthy
	CacheMismatch
	CacheError
)

func (c CacheState) String() string {
	switch c {
	case CacheHealthy:
		return "healthy"
	case CacheMismatch, CacheError:
		return "warning"
	default:
		return "unknown"
	}
}

// HealthInputs are the measurements the health score is derived from.
type HealthInputs struct {
	DatabaseUp          bool
	Producers           int64
	VerifiedProducers   int64
	Networks            int64
	ActiveNetworks      int64
	ActiveOrders        int64
	CompletedLast30Days int64
	DiskUsagePercent    float64
	DiskKnown           bool
	Cache               CacheState
	OverdueOrders       int64
	OverdueLimit        int64
	PrivilegedProducers int64
}

type Penalty struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthWarning   HealthStatus = "warning"
	HealthCritical  HealthStatus = "critical"
)

type HealthReport struct {
	Score     int          `json:"score"`
	Status    HealthStatus `json:"status"`
	Penalties []Penalty    `json:"penalties"`
}

// ScoreHealth starts from 100, subtracts every triggered penalty and clamps to [0, 100].
func ScoreHealth(in HealthInputs) HealthReport {
	overdueLimit := in.OverdueLimit
	if overdueLimit <= 0 {
		overdueLimit = DefaultThresholds().OverdueCritical
	}

	var penalties []Penalty
	deduct := func(points int, reason string) {
		penalties = append(penalties, Penalty{Reason: reason, Points: points})
	}

	if in.Producers > 0 && float64(in.VerifiedProducers)/float64(in.Producers) < 0.5 {
		deduct(20, "fewer than half of the producers are verified")
	}
	if in.Networks > 0 {
		ratio := float64(in.ActiveNetworks) / float64(in.Networks)
		if ratio < 0.7 {
			deduct(15, "fewer than 70% of networks are active")
		}
		switch {
		case ratio < 0.5:
			deduct(15, "network health below 50%")
		case ratio < 0.7:
			deduct(5, "network health below 70%")
		}
	}
	if in.ActiveOrders > 2*in.CompletedLast30Days {
		deduct(10, "active orders exceed twice the orders completed in 30 days")
	}
	if !in.DatabaseUp {
		deduct(30, "database unreachable")
	}
	if in.DiskKnown {
		switch {
		case in.DiskUsagePercent > 90:
			deduct(20, "disk usage above 90%")
		case in.DiskUsagePercent > 80:
			deduct(10, "disk usage above 80%")
		}
	}
	switch in.Cache {
	case CacheMismatch:
		deduct(10, "cache round trip returned a different value")
	case CacheError:
		deduct(5, "cache unavailable")
	}
	if in.OverdueOrders > overdueLimit {
		deduct(10, "too many overdue orders")
	}
	if in.PrivilegedProducers > 0 {
		deduct(25, "producer accounts with admin privileges")
	}

	score := 100
	for _, p := range penalties {
		score -= p.Points
	}
	score = max(0, min(100, score))
	return HealthReport{Score: score, Status: HealthBucket(score), Penalties: penalties}
}

func HealthBucket(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthExcellent
	case score >= 70:
		return HealthGood
	case score >= 50:
		return HealthWarning
	default:
		return HealthCritical
	}
}
