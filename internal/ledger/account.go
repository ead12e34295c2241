package ledger

import (
	"FlightSurety/internal/event"
	"fmt"
	"strings"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopePassenger AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Passenger sub-types
	SubTypeCredit AccountSubType = iota

	// System sub-types
	SubTypeSystemAirlinePool
	SubTypeSystemOracleFees

	// External sub-types
	SubTypeExternalFunding
	SubTypeExternalPremiums
	SubTypeExternalOracleFees
	SubTypeExternalPayouts
)

var subTypeNames = map[AccountSubType]string{
	SubTypeCredit:             "credit",
	SubTypeSystemAirlinePool:  "airline_pool",
	SubTypeSystemOracleFees:   "oracle_fees",
	SubTypeExternalFunding:    "funding",
	SubTypeExternalPremiums:   "premiums",
	SubTypeExternalOracleFees: "oracle_fees",
	SubTypeExternalPayouts:    "payouts",
}

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

// AssetETH is the only asset the registry settles in.
const AssetETH AssetID = 1

var (
	assetToID = map[string]AssetID{
		"ETH": AssetETH,
	}
	idToAsset = map[AssetID]string{
		AssetETH: "ETH",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking
type AccountKey struct {
	Scope    AccountScope
	EntityID event.Address // passenger address; zero for system and external accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewPassengerAccountKey creates a key for passenger accounts
func NewPassengerAccountKey(passenger event.Address, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopePassenger,
		EntityID: passenger,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// PoolAccount holds airline funding and premiums; its balance is totalFunds.
func PoolAccount() AccountKey {
	return NewSystemAccountKey(SubTypeSystemAirlinePool, AssetETH)
}

// OracleFeeAccount collects oracle registration fees, outside totalFunds.
func OracleFeeAccount() AccountKey {
	return NewSystemAccountKey(SubTypeSystemOracleFees, AssetETH)
}

// CreditAccount holds what the registry owes a passenger.
func CreditAccount(passenger event.Address) AccountKey {
	return NewPassengerAccountKey(passenger, SubTypeCredit, AssetETH)
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopePassenger:
		return fmt.Sprintf("passenger:%s:%s:%s", k.EntityID, k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	if name, ok := subTypeNames[k.SubType]; ok {
		return name
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")

	var (
		key       AccountKey
		subName   string
		assetName string
	)

	switch {
	case len(parts) == 4 && parts[0] == "passenger":
		addr, err := event.ParseAddress(parts[1])
		if err != nil {
			return key, fmt.Errorf("account path %q: %w", path, err)
		}
		key.Scope = AccountScopePassenger
		key.EntityID = addr
		subName, assetName = parts[2], parts[3]
	case len(parts) == 3 && parts[0] == "system":
		key.Scope = AccountScopeSystem
		subName, assetName = parts[1], parts[2]
	case len(parts) == 3 && parts[0] == "external":
		key.Scope = AccountScopeExternal
		subName, assetName = parts[1], parts[2]
	default:
		return key, fmt.Errorf("account path %q: unrecognized layout", path)
	}

	assetID, ok := GetAssetID(assetName)
	if !ok {
		return key, fmt.Errorf("account path %q: unknown asset %q", path, assetName)
	}
	key.AssetID = assetID

	subType, ok := lookupSubType(key.Scope, subName)
	if !ok {
		return key, fmt.Errorf("account path %q: unknown sub-type %q", path, subName)
	}
	key.SubType = subType

	return key, nil
}

// lookupSubType resolves a sub-type name within a scope; "oracle_fees"
// exists both as a system and an external account.
func lookupSubType(scope AccountScope, name string) (AccountSubType, bool) {
	var candidates []AccountSubType
	switch scope {
	case AccountScopePassenger:
		candidates = []AccountSubType{SubTypeCredit}
	case AccountScopeSystem:
		candidates = []AccountSubType{SubTypeSystemAirlinePool, SubTypeSystemOracleFees}
	case AccountScopeExternal:
		candidates = []AccountSubType{
			SubTypeExternalFunding, SubTypeExternalPremiums,
			SubTypeExternalOracleFees, SubTypeExternalPayouts,
		}
	}
	for _, st := range candidates {
		if subTypeNames[st] == name {
			return st, true
		}
	}
	return 0, false
}
