package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCompanyDetails_MissingFields(t *testing.T) {
	d := &CompanyDetails{
		CompanyName: Ptr("ООО \"Ромашка\""),
		Revenue2024: Ptr(int64(1000000)),
	}
	got := d.MissingFields()
	want := []string{
		"ogrn", "okved", "reg_date", "company_status", "director_name", "director_inn",
		"employees_count", "income_2024", "expenses_2024", "authorized_capital", "address", "founders",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingFields() = %v, want %v", got, want)
	}

	d.Founders = []Founder{}
	for _, name := range d.MissingFields() {
		if name == "founders" {
			t.Error("empty non-nil founders should count as present")
		}
	}
}

func TestFounder_Structured(t *testing.T) {
	if (Founder{RawLine: "кто-то"}).Structured() {
		t.Error("raw-only founder should not be structured")
	}
	f := Founder{Name: Ptr("Иванов И.И."), INN: Ptr("7801234567"), RawLine: "Иванов И.И., ИНН 7801234567"}
	if !f.Structured() {
		t.Error("founder with name and INN should be structured")
	}
}

func TestFields_JSONKeepsAbsentAsNull(t *testing.T) {
	f := Fields{INN: Ptr("7801234567"), RawText: "x"}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if v, ok := m["revenue_2024"]; !ok || v != nil {
		t.Errorf("revenue_2024 should be present as null, got %v (present=%v)", v, ok)
	}
	if m["inn"] != "7801234567" {
		t.Errorf("inn = %v", m["inn"])
	}
}
