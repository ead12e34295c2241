package query

// AirlineRow is an airline as projected from the event log.
type AirlineRow struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Registered   bool   `json:"registered"`
	Funded       bool   `json:"funded"`
	Votes        int    `json:"votes"`
	FundedAmount int64  `json:"funded_amount"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// FlightRow is a registered flight and its latest finalized status.
type FlightRow struct {
	Airline      string `json:"airline"`
	Code         string `json:"code"`
	Departure    int64  `json:"departure"`
	StatusCode   uint8  `json:"status_code"`
	RegisteredAt int64  `json:"registered_at"`
	Insured      int    `json:"insured"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// FlightFilter narrows ListFlights. Zero values match everything.
type FlightFilter struct {
	Airline    string
	StatusCode *uint8
	// Keyset cursor: only flights departing after this time
	AfterDeparture int64
	Limit          int
}

// PolicyRow is one passenger's insurance on one flight.
type PolicyRow struct {
	Airline      string `json:"airline"`
	Code         string `json:"code"`
	Departure    int64  `json:"departure"`
	Passenger    string `json:"passenger"`
	Premium      int64  `json:"premium"`
	Credited     int64  `json:"credited"`
	StatusCode   uint8  `json:"status_code"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// PayoutRow is one completed withdrawal.
type PayoutRow struct {
	Sequence  int64  `json:"sequence"`
	Passenger string `json:"passenger"`
	Amount    int64  `json:"amount"`
	PaidAt    int64  `json:"paid_at"`
}

// StatusChange is one finalized oracle outcome.
type StatusChange struct {
	Sequence   int64  `json:"sequence"`
	RequestID  string `json:"request_id"`
	StatusCode uint8  `json:"status_code"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
