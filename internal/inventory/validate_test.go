package inventory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func validVehicle() Vehicle {
	return Vehicle{
		VIN:       "1GCS1AF11PA000001",
		Year:      2024,
		Make:      "Chevrolet",
		Model:     "Silverado",
		Trim:      "LT",
		Price:     45999,
		StockType: StockTypeNew,
		Photo:     "https://cdn.example.com/photo.jpg",
		VDP:       "https://dealer.example.com/vehicle/1GCS1AF11PA000001",
	}
}

func TestValidate(t *testing.T) {
	t.Run("clean record has no violations", func(t *testing.T) {
		require.Empty(t, Validate(validVehicle()))
	})

	t.Run("short VIN is rejected", func(t *testing.T) {
		v := validVehicle()
		v.VIN = "BADVIN"
		require.Equal(t, []ViolationKind{ViolationBadVIN}, kinds(Validate(v)))
	})

	t.Run("VIN with excluded letters is rejected", func(t *testing.T) {
		v := validVehicle()
		v.VIN = "1GCS1AFI1OAQ00001" // contains I, O, Q
		require.Contains(t, kinds(Validate(v)), ViolationBadVIN)
	})

	t.Run("missing year is rejected", func(t *testing.T) {
		v := validVehicle()
		v.Year = 0
		require.Equal(t, []ViolationKind{ViolationBadYear}, kinds(Validate(v)))
	})

	t.Run("five digit year is rejected", func(t *testing.T) {
		v := validVehicle()
		v.Year = 20240
		require.Contains(t, kinds(Validate(v)), ViolationBadYear)
	})

	t.Run("missing make and model each report", func(t *testing.T) {
		v := validVehicle()
		v.Make = ""
		v.Model = ""
		got := kinds(Validate(v))
		require.Contains(t, got, ViolationMissingMake)
		require.Contains(t, got, ViolationMissingModel)
	})

	t.Run("unknown stock type is rejected", func(t *testing.T) {
		v := validVehicle()
		v.StockType = "Certified"
		require.Contains(t, kinds(Validate(v)), ViolationBadStockType)
	})

	t.Run("NaN price is rejected", func(t *testing.T) {
		v := validVehicle()
		v.Price = math.NaN()
		require.Contains(t, kinds(Validate(v)), ViolationBadPrice)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		v := validVehicle()
		v.Price = -1
		require.Contains(t, kinds(Validate(v)), ViolationBadPrice)
	})

	t.Run("zero price allowed only for new stock", func(t *testing.T) {
		v := validVehicle()
		v.Price = 0
		require.Empty(t, Validate(v))

		v.StockType = StockTypeUsed
		require.Contains(t, kinds(Validate(v)), ViolationBadPrice)
	})
}

func kinds(violations []Violation) []ViolationKind {
	out := make([]ViolationKind, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Kind)
	}
	return out
}
