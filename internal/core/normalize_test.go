package core

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

func mustDefinition(t *testing.T, kind store.Collection) Definition {
	t.Helper()
	def, err := DefinitionFor(kind)
	if err != nil {
		t.Fatalf("DefinitionFor(%q) error = %v", kind, err)
	}
	return def
}

func TestCanonical(t *testing.T) {
	venues := NewNormalizer(mustDefinition(t, store.Venues))
	products := NewNormalizer(mustDefinition(t, store.Products))

	tests := []struct {
		name   string
		n      *Normalizer
		header string
		want   string
		wantOK bool
	}{
		{"english key", venues, "name", "name", true},
		{"korean name", venues, "이름", "name", true},
		{"korean store name", venues, "매장명", "name", true},
		{"korean type", venues, "유형", "type", true},
		{"category alias", venues, "category", "type", true},
		{"mixed case", venues, "Website", "website", true},
		{"korean instagram", venues, "인스타", "instagram", true},
		{"spaced key", products, "roast level", "roast_level", true},
		{"hyphenated key", products, "cupping-score", "cupping_score", true},
		{"korean roast", products, "배전도", "roast_level", true},
		{"korean venue", products, "판매처", "venue", true},
		{"unknown", venues, "colour", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.n.Canonical(tt.header)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEnumResolve(t *testing.T) {
	tests := []struct {
		name   string
		table  *EnumTable
		input  string
		want   string
		wantOK bool
	}{
		{"canonical", venueTypes, "roastery", "roastery", true},
		{"upper case", venueTypes, "CAFE", "cafe", true},
		{"korean", venueTypes, "카페", "cafe", true},
		{"korean compound", venueTypes, "로스터리카페", "roastery", true},
		{"english alias", venueTypes, "Coffee Shop", "cafe", true},
		{"unknown", venueTypes, "library", "", false},
		{"roast spaced", roastLevels, "Medium Light", "medium_light", true},
		{"roast hyphen", roastLevels, "medium-dark", "medium_dark", true},
		{"roast korean", roastLevels, "강배전", "dark", true},
		{"process korean", processMethods, "내추럴", "natural", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.table.Resolve(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValue bool
		wantOK    bool
	}{
		{"true", true, true},
		{"YES", true, true},
		{"1", true, true},
		{"y", true, true},
		{"O", true, true},
		{"예", true, true},
		{"있음", true, true},
		{"false", false, true},
		{"No", false, true},
		{"0", false, true},
		{"X", false, true},
		{"없음", false, true},
		{"아니요", false, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, ok := ParseBool(tt.input)
			if v != tt.wantValue || ok != tt.wantOK {
				t.Errorf("ParseBool(%q) = (%v, %v), want (%v, %v)", tt.input, v, ok, tt.wantValue, tt.wantOK)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"123", 123, true},
		{"-4.5", -4.5, true},
		{".99", 0.99, true},
		{"$1,234.56", 1234.56, true},
		{"₩18,000", 18000, true},
		{"18,000원", 18000, true},
		{"(12.5)", -12.5, true},
		{"1e3", 1000, true},
		{"  7  ", 7, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseNumber(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a;b;c", []string{"a", "b", "c"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{"wifi|outdoor seating", []string{"wifi", "outdoor seating"}},
		{"a;;b| |c,", []string{"a", "b", "c"}},
		{"Jasmine;jasmine;peach", []string{"Jasmine", "peach"}},
		{";|,", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SplitList(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContactNormalizers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"phone hyphens kept", NormalizePhone, "02-123-4567", "02-123-4567"},
		{"phone parens and spaces", NormalizePhone, "(02) 123 4567", "02-123-4567"},
		{"phone international", NormalizePhone, "+82 10.1234.5678", "82-10-1234-5678"},
		{"phone letters dropped", NormalizePhone, "tel: 010-1234-5678", "010-1234-5678"},
		{"phone nothing left", NormalizePhone, "n/a", ""},
		{"url scheme added", NormalizeURL, "alpha.example", "https://alpha.example"},
		{"url scheme kept", NormalizeURL, "http://alpha.example/menu", "http://alpha.example/menu"},
		{"url protocol relative", NormalizeURL, "//alpha.example", "https://alpha.example"},
		{"handle sigil added", NormalizeHandle, "alpharoasters", "@alpharoasters"},
		{"handle sigil kept", NormalizeHandle, "@alpharoasters", "@alpharoasters"},
		{"handle doubled sigil", NormalizeHandle, "@@alpha", "@alpha"},
		{"handle from url", NormalizeHandle, "https://instagram.com/alpha.roasters/?hl=ko", "@alpha.roasters"},
		{"handle empty", NormalizeHandle, "@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizerRow(t *testing.T) {
	n := NewNormalizer(mustDefinition(t, store.Venues))
	raw := RawRow{Line: 2, Values: map[string]*string{}}
	set := func(k, v string) { raw.Values[k] = &v }
	set("name", "  Alpha   Roasters ")
	set("type", "로스터리")
	set("address", "12 Main St")
	set("phone", "(02) 123 4567")
	set("website", "alpha.example")
	set("instagram", "alpha")
	set("features", "wifi;parking;")
	set("wifi", "예")
	set("parking", "maybe")
	set("description", "<b>Great</b> beans &amp; cake")
	set("city", "   ")
	raw.Values["email"] = nil

	row := n.Row(raw)

	wantValues := map[string]any{
		"name":        "Alpha Roasters",
		"type":        "roastery",
		"address":     "12 Main St",
		"phone":       "02-123-4567",
		"website":     "https://alpha.example",
		"instagram":   "@alpha",
		"features":    []string{"wifi", "parking"},
		"wifi":        true,
		"description": "Great beans & cake",
	}
	if !reflect.DeepEqual(row.Values, wantValues) {
		t.Errorf("Values = %#v, want %#v", row.Values, wantValues)
	}
	if !row.Has("parking") {
		t.Error("Has(parking) = false, want true for uncoercible cell")
	}
	if row.Has("city") || row.Has("email") {
		t.Error("blank and missing cells should not be present")
	}
	if row.Line != 2 {
		t.Errorf("Line = %d, want 2", row.Line)
	}
}

func TestRecordDefaults(t *testing.T) {
	def := mustDefinition(t, store.Products)
	row := NormalizedRow{
		Line: 2,
		Raw:  map[string]string{"name": "Guji", "venue": "Alpha"},
		Values: map[string]any{
			"name":         "Guji",
			"venue":        "Alpha",
			"flavor_notes": []string{"peach"},
			"acidity":      4.0,
		},
	}

	rec := def.Record(row)
	if rec.Name != "Guji" || rec.Parent != "Alpha" {
		t.Errorf("Record() name/parent = %q/%q, want Guji/Alpha", rec.Name, rec.Parent)
	}
	if rec.Category != "medium" {
		t.Errorf("Record() category = %q, want default %q", rec.Category, "medium")
	}
	if rec.Attributes["process"] != "other" {
		t.Errorf("Record() process = %v, want default %q", rec.Attributes["process"], "other")
	}
	if rec.Attributes["acidity"] != 4.0 {
		t.Errorf("Record() acidity = %v, want 4", rec.Attributes["acidity"])
	}
	if _, ok := rec.Attributes["name"]; ok {
		t.Error("Record() should not copy column fields into attributes")
	}
}

func TestRecordParentFromVenueID(t *testing.T) {
	def := mustDefinition(t, store.Products)
	tests := []struct {
		name       string
		values     map[string]any
		wantParent string
	}{
		{"venue name", map[string]any{"name": "Guji", "venue": "Alpha"}, "Alpha"},
		{"venue id only", map[string]any{"name": "Guji", "venue_id": "v-1"}, "v-1"},
		{"both given", map[string]any{"name": "Guji", "venue": "Alpha", "venue_id": "v-1"}, "Alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NormalizedRow{Line: 2, Values: tt.values}
			if got := def.Record(row).Parent; got != tt.wantParent {
				t.Errorf("Record().Parent = %q, want %q", got, tt.wantParent)
			}
		})
	}

	a := NormalizedRow{Values: map[string]any{"name": "House Blend", "venue_id": "v-1"}}
	b := NormalizedRow{Values: map[string]any{"name": "House Blend", "venue_id": "v-2"}}
	if def.rowKey(a) == def.rowKey(b) {
		t.Errorf("rowKey() equal for different venue ids: %q", def.rowKey(a))
	}
}

func TestTemplateParses(t *testing.T) {
	for _, kind := range []store.Collection{store.Venues, store.Products} {
		t.Run(string(kind), func(t *testing.T) {
			def := mustDefinition(t, kind)
			text, err := def.Template()
			if err != nil {
				t.Fatalf("Template() error = %v", err)
			}
			n := NewNormalizer(def)
			res := Parser{Resolve: n.Canonical}.Parse(text)
			if res.Critical() || len(res.Issues) != 0 {
				t.Fatalf("template issues: %v", res.Issues)
			}
			if !reflect.DeepEqual(res.Headers, def.Keys()) {
				t.Errorf("Headers = %q, want %q", res.Headers, def.Keys())
			}
			v := NewValidator(def).Validate(n.Rows(res.Rows), Snapshot{KnownParents: []string{"Alpha Roasters"}})
			if !v.IsValid || len(v.Warnings) != 0 {
				t.Errorf("template example row: errors %v warnings %v", v.Errors, v.Warnings)
			}
		})
	}
}
