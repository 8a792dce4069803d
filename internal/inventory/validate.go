package inventory

import (
	"fmt"
	"math"
	"regexp"
)

// ViolationKind identifies a single validation rule.
type ViolationKind string

// Violation kinds reported by Validate.
const (
	ViolationBadVIN       ViolationKind = "bad_vin"
	ViolationBadYear      ViolationKind = "bad_year"
	ViolationMissingMake  ViolationKind = "missing_make"
	ViolationMissingModel ViolationKind = "missing_model"
	ViolationBadStockType ViolationKind = "bad_stock_type"
	ViolationBadPrice     ViolationKind = "bad_price"
)

// Violation describes one failed validation rule for a record.
type Violation struct {
	Kind   ViolationKind
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// VIN characters exclude I, O and Q; accepted lengths run 11-17.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{11,17}$`)

// Validate applies the per-record rules and returns every violation found.
// An empty result means the record is fit for the merge stage.
func Validate(v Vehicle) []Violation {
	var out []Violation
	if !vinPattern.MatchString(v.VIN) {
		out = append(out, Violation{
			Kind:   ViolationBadVIN,
			Detail: fmt.Sprintf("VIN %q does not match the expected pattern", v.VIN),
		})
	}
	if v.Year < 1000 || v.Year > 9999 {
		out = append(out, Violation{
			Kind:   ViolationBadYear,
			Detail: fmt.Sprintf("year %d is not a 4-digit value", v.Year),
		})
	}
	if v.Make == "" {
		out = append(out, Violation{Kind: ViolationMissingMake, Detail: "make is empty"})
	}
	if v.Model == "" {
		out = append(out, Violation{Kind: ViolationMissingModel, Detail: "model is empty"})
	}
	if v.StockType != StockTypeNew && v.StockType != StockTypeUsed {
		out = append(out, Violation{
			Kind:   ViolationBadStockType,
			Detail: fmt.Sprintf("stock type %q is neither New nor Used", v.StockType),
		})
	}
	switch {
	case math.IsNaN(v.Price):
		out = append(out, Violation{Kind: ViolationBadPrice, Detail: "price is NaN"})
	case v.Price < 0:
		out = append(out, Violation{
			Kind:   ViolationBadPrice,
			Detail: fmt.Sprintf("price %v is negative", v.Price),
		})
	case v.Price == 0 && v.StockType == StockTypeUsed:
		// New inventory may legitimately lack a posted price; used may not.
		out = append(out, Violation{Kind: ViolationBadPrice, Detail: "used vehicle has no price"})
	}
	return out
}
