package mess

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core"
)

// DefaultMealPrice is the price of a single meal when none is configured.
const DefaultMealPrice int64 = 75

// Tariff holds the price of each meal, in the smallest currency unit.
type Tariff struct {
	Breakfast int64 `toml:"breakfast" json:"breakfast"`
	Lunch     int64 `toml:"lunch" json:"lunch"`
	Dinner    int64 `toml:"dinner" json:"dinner"`
}

type tariffFile struct {
	Prices Tariff `toml:"prices"`
}

// FlatTariff charges `price` for every meal.
func FlatTariff(price int64) Tariff {
	if price <= 0 {
		price = DefaultMealPrice
	}
	return Tariff{Breakfast: price, Lunch: price, Dinner: price}
}

// LoadTariff reads the `[prices]` table of the TOML file at `path`.
// Missing or non-positive prices fall back to `defaultPrice`; an empty path yields FlatTariff(defaultPrice).
func LoadTariff(path string, defaultPrice int64) (Tariff, error) {
	t := FlatTariff(defaultPrice)
	if path == "" {
		return t, nil
	}

	var file tariffFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Tariff{}, errors.Wrapf(err, "decoding tariff file %s", path)
	}
	if file.Prices.Breakfast > 0 {
		t.Breakfast = file.Prices.Breakfast
	}
	if file.Prices.Lunch > 0 {
		t.Lunch = file.Prices.Lunch
	}
	if file.Prices.Dinner > 0 {
		t.Dinner = file.Prices.Dinner
	}
	return t, nil
}

// ConfiguredTariff returns the Tariff described by the mess settings.
func ConfiguredTariff(conf core.MessConfig) (Tariff, error) {
	return LoadTariff(conf.TariffFile, conf.MealPrice)
}

// Price returns the price of meal `mt`, 0 for an unknown meal.
func (t Tariff) Price(mt MealType) int64 {
	switch mt {
	case Breakfast:
		return t.Breakfast
	case Lunch:
		return t.Lunch
	case Dinner:
		return t.Dinner
	}
	return 0
}

// DayCharge is the price of all the meals of a day.
func (t Tariff) DayCharge() int64 {
	return t.Breakfast + t.Lunch + t.Dinner
}
