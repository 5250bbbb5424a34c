package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"weekly", Weekly, true},
		{"Mensuel", Monthly, true},
		{"trimestriel", Quarterly, true},
		{" semestriel ", Semiannual, true},
		{"annuel", Annual, true},
		{"yearly", Annual, true},
		{"daily", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFrequency(tc.in)
			if tc.ok {
				if err != nil || got != tc.want {
					t.Errorf("ParseFrequency(%q) = %q, %v, want %q", tc.in, got, err, tc.want)
				}
				return
			}
			if !errors.Is(err, ErrInvalidFrequency) {
				t.Errorf("ParseFrequency(%q) error = %v, want ErrInvalidFrequency", tc.in, err)
			}
		})
	}
}

func TestTemplateValidate(t *testing.T) {
	due := ptrTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	good := Template{Label: "Rent", Amount: MustMoney("800"), Frequency: Monthly, NextDueAt: due, Active: true}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]Template{
		"empty label":   {Label: " ", Amount: MustMoney("1"), Frequency: Monthly, NextDueAt: due},
		"zero amount":   {Label: "a", Frequency: Monthly, NextDueAt: due},
		"bad frequency": {Label: "a", Amount: MustMoney("1"), Frequency: "daily", NextDueAt: due},
		"no next due":   {Label: "a", Amount: MustMoney("1"), Frequency: Monthly},
	}
	for name, tpl := range bads {
		t.Run(name, func(t *testing.T) {
			err := tpl.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() = %v, want validation error", err)
			}
		})
	}
}

func TestExpenseValidate(t *testing.T) {
	when := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	good := Expense{Label: "Hosting", Amount: MustMoney("12.50"), Status: StatusUpcoming, OccursAt: when}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	legacy := good
	legacy.Recurring = true
	if err := legacy.Validate(); err == nil {
		t.Fatal("expected error for recurring expense without frequency")
	}
	legacy.Frequency = Monthly
	legacy.NextDueAt = ptrTime(when)
	if err := legacy.Validate(); err != nil {
		t.Fatalf("expected ok for legacy recurring expense, got %v", err)
	}

	bads := []Expense{
		{Label: "", Amount: MustMoney("1"), Status: StatusPast, OccursAt: when},
		{Label: "a", Status: StatusPast, OccursAt: when},
		{Label: "a", Amount: MustMoney("1"), Status: "paid", OccursAt: when},
		{Label: "a", Amount: MustMoney("1"), Status: StatusPast},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestAgentNormalize(t *testing.T) {
	a := Agent{Pseudo: "nova", Active: true, InTeam: false}
	a.Normalize()
	if a.Active {
		t.Error("agent outside the team must not be active")
	}
	if a.Roles == nil {
		t.Error("roles should be initialised")
	}
}

func TestParseCommissionStatus(t *testing.T) {
	cases := map[string]CommissionStatus{
		"in_progress": InProgress,
		"en_cours":    InProgress,
		"termine":     Completed,
		"planifie":    Planned,
		"EN_RETARD":   Overdue,
	}
	for in, want := range cases {
		got, err := ParseCommissionStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseCommissionStatus(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseCommissionStatus("done"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestCommissionValidate(t *testing.T) {
	good := Commission{Client: "Acme", Project: "Logo", Price: MustMoney("1000")}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Participants = []Participant{{AgentID: 1, Percentage: 120}}
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Validate() = %v, want validation error", err)
	}
	bad = good
	bad.Price = Money{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Validate() = %v, want ErrInvalidAmount", err)
	}
}

func TestExpensesDocTouchAndIDs(t *testing.T) {
	doc := ExpensesDoc{
		Expenses: []Expense{
			{ID: 3, Amount: MustMoney("10.10")},
			{ID: 7, Amount: MustMoney("4.90")},
		},
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc.Touch(now)

	if doc.Metadata.TotalExpenses != 2 {
		t.Errorf("TotalExpenses = %d, want 2", doc.Metadata.TotalExpenses)
	}
	if doc.Metadata.TotalAmount.Cmp(MustMoney("15")) != 0 {
		t.Errorf("TotalAmount = %s, want 15.00", doc.Metadata.TotalAmount)
	}
	if !doc.Metadata.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", doc.Metadata.LastUpdated, now)
	}
	if doc.Templates == nil {
		t.Error("Touch should initialise templates")
	}
	if got := doc.NextExpenseID(); got != 8 {
		t.Errorf("NextExpenseID() = %d, want 8", got)
	}
	if got := doc.NextTemplateID(); got != 1 {
		t.Errorf("NextTemplateID() = %d, want 1", got)
	}

	_, err := doc.Expense(42)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 42 || !errors.Is(err, ErrNotFound) {
		t.Errorf("Expense(42) error = %v, want NotFoundError", err)
	}
}

func TestExpenseJSONKeepsNullTemplateReference(t *testing.T) {
	e := Expense{ID: 1, Label: "x", Amount: MustMoney("2.5"), Status: StatusUpcoming}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	v, ok := raw["sourceTemplateId"]
	if !ok || v != nil {
		t.Errorf("sourceTemplateId = %v (present=%v), want explicit null", v, ok)
	}
	if raw["amount"] != 2.5 {
		t.Errorf("amount = %v, want 2.5 as a number", raw["amount"])
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr error
	}{
		{"2025-01-31", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), nil},
		{" 2025-03-01 ", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), nil},
		{"2025-01-15T10:30:00+01:00", time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC), nil},
		{"", time.Time{}, ErrMissingDate},
		{"31/01/2025", time.Time{}, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseDate(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got, err := ParseOptionalDate("  "); got != nil || err != nil {
		t.Errorf("ParseOptionalDate(blank) = %v, %v, want nil, nil", got, err)
	}
}
