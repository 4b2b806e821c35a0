package entity

// IngestAlias maps a dedicated inbound email address to exactly one owner.
// Consumed read-only by the email-ingest path.
type IngestAlias struct {
	Address string
	OwnerID string
	Active  bool
}

// OwnerSettings are per-owner facts maintained outside the pipeline (profile
// and billing screens). The pipeline reads them, it never writes them.
type OwnerSettings struct {
	OwnerID       string
	DisplayName   string
	GestoriaEmail string
	AutoForward   bool   // email path: dispatch immediately after ingest
	BucketingMode string // "month" or "week"
	RootFolder    string
	PlanCode      string
	IsAdmin       bool
}

// EffectiveRootFolder returns the configured root folder or the default.
func (s *OwnerSettings) EffectiveRootFolder() string {
	if s.RootFolder == "" {
		return DefaultRootFolder
	}
	return s.RootFolder
}

// EffectiveBucketingMode returns the configured bucketing mode or monthly.
func (s *OwnerSettings) EffectiveBucketingMode() string {
	if s.BucketingMode == PeriodWeek {
		return PeriodWeek
	}
	return PeriodMonth
}

// Plan holds the read-only subscription facts the pipeline consumes.
type Plan struct {
	Code            string
	MonthlyQuota    int // -1 means unlimited
	GestoriaEnabled bool
}

// Unlimited reports whether the plan places no monthly cap on invoices.
func (p *Plan) Unlimited() bool {
	return p.MonthlyQuota < 0
}
