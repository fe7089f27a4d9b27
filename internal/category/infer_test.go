package category

import (
	"testing"

	"github.com/dukerupert/messledger/internal/model"
)

func TestInferExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  model.ExpenseCategory
	}{
		{"rice", model.CategoryGrocery},
		{"fish", model.CategoryGrocery},
		{"electricity", model.CategoryElectricity},
		{"gas", model.CategoryGas},
		{"water", model.CategoryWater},
		{"detergent", model.CategoryCleaning},
	}
	for _, tt := range tests {
		if got := Infer(tt.input); got != tt.want {
			t.Errorf("Infer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferSubstringMatch(t *testing.T) {
	tests := []struct {
		input string
		want  model.ExpenseCategory
	}{
		{"Weekly bazar at Karwan Bazar", model.CategoryGrocery},
		{"Rice 25kg and lentils", model.CategoryGrocery},
		{"Electric bill for March", model.CategoryElectricity},
		{"Prepaid meter recharge", model.CategoryElectricity},
		{"Gas bill", model.CategoryGas},
		{"LPG cylinder refill", model.CategoryGas},
		{"WASA water bill", model.CategoryWater},
		{"Drinking water jars", model.CategoryWater},
		{"Toilet cleaner and phenyl", model.CategoryCleaning},
		{"Soybean oil 5L", model.CategoryGrocery},
	}
	for _, tt := range tests {
		if got := Infer(tt.input); got != tt.want {
			t.Errorf("Infer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferCaseAndWhitespace(t *testing.T) {
	tests := []struct {
		input string
		want  model.ExpenseCategory
	}{
		{"  RICE  ", model.CategoryGrocery},
		{"Gas", model.CategoryGas},
		{"WATER BILL", model.CategoryWater},
	}
	for _, tt := range tests {
		if got := Infer(tt.input); got != tt.want {
			t.Errorf("Infer(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferFallback(t *testing.T) {
	for _, input := range []string{"", "   ", "internet", "newspaper subscription"} {
		if got := Infer(input); got != model.CategoryOther {
			t.Errorf("Infer(%q) = %q, want other", input, got)
		}
	}
}
