package models

// OfferingCategory partitions offerings for display and catalog grouping.
type OfferingCategory string

const (
	OfferingCategoryAnimal   OfferingCategory = "animal"
	OfferingCategoryVegetal  OfferingCategory = "vegetal"
	OfferingCategoryBeverage OfferingCategory = "beverage"
)

// RequiredOffering is one line of a choice's required-offering set.
type RequiredOffering struct {
	OfferingID string `json:"offeringId"`
	Quantity   int    `json:"quantity"`
}

// WalletOffering is the user's available balance for one offering type.
// Balances are authoritative server-side: after a consumption the wallet is
// re-fetched, never decremented locally.
type WalletOffering struct {
	OfferingID string           `json:"offeringId"`
	Quantity   int              `json:"quantity"`
	Name       string           `json:"name"`
	Icon       string           `json:"icon"`
	Category   OfferingCategory `json:"category"`
	Price      float64          `json:"price"`
}

// OfferingDeficit records one under-provisioned required offering.
type OfferingDeficit struct {
	OfferingID string `json:"offeringId"`
	Needed     int    `json:"needed"`
	Available  int    `json:"available"`
}

// Reconciliation is the result of checking a wallet against a required set.
type Reconciliation struct {
	HasAll  bool              `json:"hasAll"`
	Missing []OfferingDeficit `json:"missing"`
}

// OfferingAlternative is one payable combination of offerings attached to a
// consultation.
type OfferingAlternative struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Offerings []RequiredOffering `json:"offerings"`
}
