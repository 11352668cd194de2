package memory

// Tier is a pressure band. Higher is worse.
type Tier int

const (
	TierNominal Tier = iota
	TierPreventive
	TierWarning
	TierEmergency
	TierAggressive
)

func (t Tier) String() string {
	switch t {
	case TierNominal:
		return "nominal"
	case TierPreventive:
		return "preventive"
	case TierWarning:
		return "warning"
	case TierEmergency:
		return "emergency"
	case TierAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Lower bounds (exclusive) of each tier's ratio, checked high to low.
const (
	AggressiveRatio = 0.95
	EmergencyRatio  = 0.90
	WarningRatio    = 0.80
	PreventiveRatio = 0.60
)

// Classify maps a pressure ratio to its tier.
func Classify(ratio float64) Tier {
	switch {
	case ratio > AggressiveRatio:
		return TierAggressive
	case ratio > EmergencyRatio:
		return TierEmergency
	case ratio > WarningRatio:
		return TierWarning
	case ratio > PreventiveRatio:
		return TierPreventive
	default:
		return TierNominal
	}
}

// Plan lists the actions an Evictor should take.
type Plan struct {
	PurgeExpired     bool `json:"purge_expired,omitempty"`
	CapRenderCache   bool `json:"cap_render_cache,omitempty"`
	CompressActive   bool `json:"compress_active,omitempty"`
	ShrinkPageSize   bool `json:"shrink_page_size,omitempty"`
	Virtualize       bool `json:"virtualize,omitempty"`
	ClearCaches      bool `json:"clear_caches,omitempty"`
	ReleaseInactive  bool `json:"release_inactive,omitempty"`
	ShrinkView       bool `json:"shrink_view,omitempty"`
	Reclaim          bool `json:"reclaim,omitempty"`
	MinimalWindowing bool `json:"minimal_windowing,omitempty"`
	DisableExtras    bool `json:"disable_extras,omitempty"`
}

// Empty reports whether the plan takes no action.
func (p Plan) Empty() bool { return p == Plan{} }

// PlanFor returns the actions for a tier.
func PlanFor(t Tier) Plan {
	switch t {
	case TierAggressive:
		return Plan{
			ClearCaches:      true,
			ReleaseInactive:  true,
			MinimalWindowing: true,
			DisableExtras:    true,
			Reclaim:          true,
		}
	case TierEmergency:
		return Plan{
			ClearCaches:     true,
			ReleaseInactive: true,
			ShrinkView:      true,
			Reclaim:         true,
		}
	case TierWarning:
		return Plan{
			PurgeExpired:   true,
			CompressActive: true,
			ShrinkPageSize: true,
			Virtualize:     true,
		}
	case TierPreventive:
		return Plan{
			PurgeExpired:   true,
			CapRenderCache: true,
		}
	default:
		return Plan{}
	}
}
