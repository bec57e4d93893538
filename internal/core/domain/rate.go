package domain

// Rate keys understood by the configuration store. Values are cents.
const (
	RateLateFeePerDay = "late_fee_per_day"
	RateLostItemFee   = "lost_item_fee"
)

// Defaults applied when a rate has never been set.
const (
	DefaultLateFeePerDayCents int64 = 50
	DefaultLostItemFeeCents   int64 = 2000
)
