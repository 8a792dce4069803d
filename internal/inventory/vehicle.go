// Package inventory defines the vehicle record model and the validation,
// merge, and snapshot stages that turn raw parse output into the persisted
// catalog.
package inventory

// StockType classifies a vehicle as new or used inventory.
type StockType string

// Stock type values used in the snapshot contract.
const (
	StockTypeNew  StockType = "New"
	StockTypeUsed StockType = "Used"
)

// Vehicle is the unit record of the catalog. Field names form the external
// snapshot contract consumed by the message-generation pipeline; the struct
// field order fixes the serialized key order.
type Vehicle struct {
	VIN       string    `json:"vin"`
	Year      int       `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Trim      string    `json:"trim"`
	Price     float64   `json:"price"`
	StockType StockType `json:"stockType"`
	Photo     string    `json:"photo"`
	VDP       string    `json:"vdp"`
}
