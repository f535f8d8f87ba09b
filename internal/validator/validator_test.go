package validator

import (
	"strings"
	"testing"
)

type dealInput struct {
	Description  string `json:"description" validate:"required,max=2000"`
	Start        string `json:"start" validate:"required,day"`
	End          string `json:"end" validate:"required,day"`
	RestaurantID string `json:"restaurantId" validate:"required,docid"`
}

type profileInput struct {
	Username string `json:"username" validate:"omitempty,username,max=64"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	valid := dealInput{Description: "1-for-1 burgers", Start: "2021-03-01", End: "2021-03-31", RestaurantID: "r1"}

	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
	}{
		{name: "Valid Deal", input: valid},
		{
			name:    "Missing Description",
			input:   dealInput{Start: "2021-03-01", End: "2021-03-31", RestaurantID: "r1"},
			wantErr: true,
		},
		{
			name:    "Bad Date",
			input:   dealInput{Description: "x", Start: "01/03/2021", End: "2021-03-31", RestaurantID: "r1"},
			wantErr: true,
		},
		{
			name:    "Restaurant Path",
			input:   dealInput{Description: "x", Start: "2021-03-01", End: "2021-03-31", RestaurantID: "r1/deals"},
			wantErr: true,
		},
		{name: "Valid Username", input: profileInput{Username: "jane.doe@home_1"}},
		{name: "Empty Username", input: profileInput{}},
		{name: "Username With Space", input: profileInput{Username: "jane doe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_ValidateVar(t *testing.T) {
	v := New()
	for _, id := range []string{"abc", "8fJ2kQ", "a.b"} {
		if err := v.ValidateVar(id, "docid"); err != nil {
			t.Errorf("ValidateVar(%q) = %v, want nil", id, err)
		}
	}
	for _, id := range []string{"", ".", "..", "a/b", "__name__"} {
		if err := v.ValidateVar(id, "docid"); err == nil {
			t.Errorf("ValidateVar(%q) = nil, want error", id)
		}
	}
}

func TestDescribe(t *testing.T) {
	v := New()
	err := v.ValidateStruct(dealInput{Start: "bad", End: "2021-03-31", RestaurantID: "r1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := Describe(err)
	for _, want := range []string{"description is required", "start must be a yyyy-MM-dd date"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Describe() = %q, want it to contain %q", msg, want)
		}
	}
}
