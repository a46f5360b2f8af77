package metrics

// ============================================================================
// Metric Names
// ============================================================================

// RPC metric names
const (
	MetricNameMulticallBatches  = "twab_multicall_batches_total"
	MetricNameMulticallCalls    = "twab_multicall_calls_total"
	MetricNameMulticallFailures = "twab_multicall_call_failures_total"
	MetricNameRPCThrottleWait   = "twab_rpc_throttle_wait_seconds"
)

// Computation metric names
const (
	MetricNameTwabWindowFetches = "twab_window_fetches_total"
	MetricNameDroppedUsers      = "twab_dropped_users_total"
	MetricNameWinsFound         = "twab_wins_found_total"
	MetricNameComputeDuration   = "twab_compute_winners_duration_seconds"
	MetricNameComputeRuns       = "twab_compute_winners_runs_total"
)

// ============================================================================
// Help Text
// ============================================================================

const (
	HelpTextMulticallBatches  = "Number of aggregate3 calls sent to the node"
	HelpTextMulticallCalls    = "Number of contract reads packed into aggregate3 calls"
	HelpTextMulticallFailures = "Number of contract reads that reverted inside aggregate3"
	HelpTextRPCThrottleWait   = "Time spent waiting on the RPC rate limiter"
	HelpTextTwabWindowFetches = "Number of TWAB windows fetched from the TWAB controller"
	HelpTextDroppedUsers      = "Number of users dropped because their TWAB could not be read"
	HelpTextWinsFound         = "Number of winning prize slots found, by tier"
	HelpTextComputeDuration   = "Duration of winner computations"
	HelpTextComputeRuns       = "Number of winner computations, by outcome"
)

// ============================================================================
// Labels
// ============================================================================

const (
	LabelTier    = "tier"
	LabelOutcome = "outcome"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
