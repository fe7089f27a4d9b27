// Package category guesses an expense category from its free-text
// description when the person recording it did not pick one.
package category

import (
	"strings"

	"github.com/dukerupert/messledger/internal/model"
)

// Infer returns the expense category for description. Matching is
// case-insensitive: exact match first, then substring match. Anything
// unrecognised is model.CategoryOther.
func Infer(description string) model.ExpenseCategory {
	text := strings.ToLower(strings.TrimSpace(description))
	if text == "" {
		return model.CategoryOther
	}

	if c, ok := exactMatch[text]; ok {
		return c
	}

	for _, entry := range substringMatches {
		if strings.Contains(text, entry.keyword) {
			return entry.category
		}
	}

	return model.CategoryOther
}

var exactMatch = map[string]model.ExpenseCategory{
	"bazar":       model.CategoryGrocery,
	"bazaar":      model.CategoryGrocery,
	"groceries":   model.CategoryGrocery,
	"rice":        model.CategoryGrocery,
	"chal":        model.CategoryGrocery,
	"dal":         model.CategoryGrocery,
	"lentils":     model.CategoryGrocery,
	"fish":        model.CategoryGrocery,
	"chicken":     model.CategoryGrocery,
	"beef":        model.CategoryGrocery,
	"mutton":      model.CategoryGrocery,
	"eggs":        model.CategoryGrocery,
	"egg":         model.CategoryGrocery,
	"vegetables":  model.CategoryGrocery,
	"potato":      model.CategoryGrocery,
	"potatoes":    model.CategoryGrocery,
	"onion":       model.CategoryGrocery,
	"onions":      model.CategoryGrocery,
	"oil":         model.CategoryGrocery,
	"salt":        model.CategoryGrocery,
	"sugar":       model.CategoryGrocery,
	"spices":      model.CategoryGrocery,
	"milk":        model.CategoryGrocery,
	"bread":       model.CategoryGrocery,
	"tea":         model.CategoryGrocery,
	"electricity": model.CategoryElectricity,
	"current":     model.CategoryElectricity,
	"bijli":       model.CategoryElectricity,
	"meter":       model.CategoryElectricity,
	"gas":         model.CategoryGas,
	"lpg":         model.CategoryGas,
	"cylinder":    model.CategoryGas,
	"water":       model.CategoryWater,
	"wasa":        model.CategoryWater,
	"cleaning":    model.CategoryCleaning,
	"detergent":   model.CategoryCleaning,
	"soap":        model.CategoryCleaning,
	"broom":       model.CategoryCleaning,
	"bleach":      model.CategoryCleaning,
	"maid":        model.CategoryCleaning,
}

type substringEntry struct {
	keyword  string
	category model.ExpenseCategory
}

// Ordered so that more specific phrases win: "water bill" before "bill",
// "gas bill" before "gas".
var substringMatches = []substringEntry{
	{"electric bill", model.CategoryElectricity},
	{"electricity", model.CategoryElectricity},
	{"electric", model.CategoryElectricity},
	{"prepaid meter", model.CategoryElectricity},
	{"meter recharge", model.CategoryElectricity},
	{"load shedding", model.CategoryElectricity},
	{"gas bill", model.CategoryGas},
	{"gas cylinder", model.CategoryGas},
	{"lpg", model.CategoryGas},
	{"cylinder", model.CategoryGas},
	{"water bill", model.CategoryWater},
	{"drinking water", model.CategoryWater},
	{"water jar", model.CategoryWater},
	{"wasa", model.CategoryWater},
	{"filter", model.CategoryWater},
	{"dish soap", model.CategoryCleaning},
	{"detergent", model.CategoryCleaning},
	{"cleaning", model.CategoryCleaning},
	{"cleaner", model.CategoryCleaning},
	{"toilet", model.CategoryCleaning},
	{"phenyl", model.CategoryCleaning},
	{"bleach", model.CategoryCleaning},
	{"broom", model.CategoryCleaning},
	{"garbage", model.CategoryCleaning},
	{"bazar", model.CategoryGrocery},
	{"bazaar", model.CategoryGrocery},
	{"market", model.CategoryGrocery},
	{"grocery", model.CategoryGrocery},
	{"groceries", model.CategoryGrocery},
	{"rice", model.CategoryGrocery},
	{"lentil", model.CategoryGrocery},
	{"fish", model.CategoryGrocery},
	{"chicken", model.CategoryGrocery},
	{"beef", model.CategoryGrocery},
	{"mutton", model.CategoryGrocery},
	{"egg", model.CategoryGrocery},
	{"vegetable", model.CategoryGrocery},
	{"potato", model.CategoryGrocery},
	{"onion", model.CategoryGrocery},
	{"cooking oil", model.CategoryGrocery},
	{"soybean oil", model.CategoryGrocery},
	{"spice", model.CategoryGrocery},
	{"milk", model.CategoryGrocery},
	{"flour", model.CategoryGrocery},
	{"atta", model.CategoryGrocery},
	{"sugar", model.CategoryGrocery},
	{"fruit", model.CategoryGrocery},
	{"water", model.CategoryWater},
	{"gas", model.CategoryGas},
}
