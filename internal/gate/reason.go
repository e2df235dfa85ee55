package gate

// BlockReason identifies why the admission gate refused a candidate.
// Callers branch on the constant, never on the detail string.
type BlockReason string

const (
	ReasonNone          BlockReason = ""
	ReasonStaleIdea     BlockReason = "STALE_IDEA"
	ReasonCooldownTime  BlockReason = "COOLDOWN_TIME"
	ReasonCooldownPrice BlockReason = "COOLDOWN_PRICE"
	ReasonTrendFilter   BlockReason = "TREND_FILTER"
	ReasonWeakADX       BlockReason = "WEAK_ADX"
	ReasonATROutOfBand  BlockReason = "ATR_OUT_OF_BAND"
	ReasonLowVolatility BlockReason = "LOW_VOLATILITY"
	ReasonRiskReward    BlockReason = "RR_TOO_LOW"
	ReasonNeutralRSI    BlockReason = "RSI_NEUTRAL"
	ReasonNoConfirm     BlockReason = "NO_CONFIRMATION"
	ReasonInvalidLevels BlockReason = "INVALID_LEVELS"
	ReasonNoData        BlockReason = "NO_DATA"
)

// Structure tags attached to allowed candidates. Soft context only, they
// never block.
const (
	TagHTFTrend     = "HTF_TREND"
	TagSwingBreak   = "SWING_BREAK"
	TagBreakRetest  = "BREAK_RETEST"
	TagTrendRelaxed = "TREND_RELAXED"
	TagNoStructure  = "IDEA_STRUCTURE_NOT_CONFIRMED"
)

// Decision is the gate's verdict for one candidate.
type Decision struct {
	Allowed bool        `json:"allowed"`
	Reason  BlockReason `json:"reason,omitempty"`
	Detail  string      `json:"detail,omitempty"`
	Tags    []string    `json:"tags,omitempty"`
}

func blocked(reason BlockReason, detail string) Decision {
	return Decision{Allowed: false, Reason: reason, Detail: detail}
}
