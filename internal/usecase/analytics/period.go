package analytics

// Period is the requested history window
type Period string

const (
	Period7D  Period = "7d"
	Period30D Period = "30d"
	Period90D Period = "90d"
	Period6M  Period = "6m"
	Period1Y  Period = "1y"
)

// Aggregation is the requested sampling interval policy
type Aggregation string

const (
	AggregationAuto    Aggregation = "auto"
	AggregationDaily   Aggregation = "daily"
	AggregationWeekly  Aggregation = "weekly"
	AggregationMonthly Aggregation = "monthly"
)

// ParsePeriod converts a query-parameter string into a Period, defaulting to
// 30 days for unknown values
func ParsePeriod(s string) Period {
	switch Period(s) {
	case Period7D, Period30D, Period90D, Period6M, Period1Y:
		return Period(s)
	}
	return Period30D
}

// ParseAggregation converts a query-parameter string into an Aggregation,
// defaulting to auto
func ParseAggregation(s string) Aggregation {
	switch Aggregation(s) {
	case AggregationAuto, AggregationDaily, AggregationWeekly, AggregationMonthly:
		return Aggregation(s)
	}
	return AggregationAuto
}

// Resolve turns the (period, aggregation) pair into concrete day counts once,
// at the request boundary. The core only ever sees integers.
//
// Auto aggregation coarsens the interval with the window so the number of
// snapshots stays roughly constant: daily up to 30d, every 2 days at 90d,
// every 4 days at 6m, weekly at 1y.
func Resolve(period Period, aggregation Aggregation) (days, intervalDays int) {
	switch period {
	case Period7D:
		days, intervalDays = 7, 1
	case Period90D:
		days, intervalDays = 90, 2
	case Period6M:
		days, intervalDays = 180, 4
	case Period1Y:
		days, intervalDays = 365, 7
	default:
		days, intervalDays = 30, 1
	}

	switch aggregation {
	case AggregationDaily:
		intervalDays = 1
	case AggregationWeekly:
		intervalDays = 7
	case AggregationMonthly:
		intervalDays = 30
	}

	return days, intervalDays
}
