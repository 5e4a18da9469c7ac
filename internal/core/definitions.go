package core

// definitions.go declares the importable entity shapes.
//
// A Definition lists the fields of one collection. Each FieldSpec names its
// canonical key, the header aliases that resolve to it (English and Korean
// spellings), how the cell is coerced, and where the value lands in a
// store.Record. All tables here are built once at package initialisation and
// never modified.

import (
	"fmt"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// FieldType selects how a cell is coerced and checked.
type FieldType int

const (
	FieldText FieldType = iota
	FieldRichText
	FieldEnum
	FieldList
	FieldBool
	FieldNumber
	FieldPhone
	FieldEmail
	FieldURL
	FieldHandle
)

// Record columns a field can map to. Fields with no column are stored in
// Record.Attributes under their key.
const (
	ColumnName     = "name"
	ColumnCategory = "category"
	ColumnAddress  = "address"
	ColumnParent   = "parent"
)

// FieldSpec describes one importable field.
type FieldSpec struct {
	Key      string
	Aliases  []string
	Type     FieldType
	Column   string
	Required bool

	// RequiredUnless names another field whose presence satisfies Required.
	RequiredUnless string

	Enum *EnumTable

	// Bounded numeric fields are range checked against [Min, Max].
	Bounded  bool
	Min, Max float64

	Example string
}

// Definition is the field layout of one collection.
type Definition struct {
	Kind   store.Collection
	Fields []FieldSpec
}

// Field returns the field with the given key.
func (d Definition) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Keys returns the canonical keys in declaration order.
func (d Definition) Keys() []string {
	keys := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		keys[i] = f.Key
	}
	return keys
}

// columnField returns the field stored in a record column.
func (d Definition) columnField(column string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Template renders a header row and one example row for the collection.
func (d Definition) Template() (string, error) {
	examples := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		examples[i] = f.Example
	}
	return EncodeCSV(d.Keys(), [][]string{examples})
}

// DefinitionFor returns the definition of kind.
func DefinitionFor(kind store.Collection) (Definition, error) {
	switch kind {
	case store.Venues:
		return venueDefinition, nil
	case store.Products:
		return productDefinition, nil
	default:
		return Definition{}, fmt.Errorf("definition for %q: %w", kind, store.ErrUnknownCollection)
	}
}

var (
	venueTypes = newEnumTable("other", map[string][]string{
		"cafe":     {"카페", "coffee shop", "coffeeshop", "coffee"},
		"roastery": {"로스터리", "로스터리카페", "로스터리 카페", "roaster", "roasters"},
		"bakery":   {"베이커리", "빵집"},
		"dessert":  {"디저트", "dessert cafe", "디저트카페"},
		"bar":      {"바", "coffee bar", "커피바"},
		"other":    {"기타", "etc"},
	})

	roastLevels = newEnumTable("medium", map[string][]string{
		"light":        {"라이트", "약배전", "약", "light roast"},
		"medium_light": {"미디엄라이트", "미디엄 라이트", "약중배전", "medium-light", "medium light"},
		"medium":       {"미디엄", "중배전", "중", "medium roast"},
		"medium_dark":  {"미디엄다크", "미디엄 다크", "중강배전", "medium-dark", "medium dark"},
		"dark":         {"다크", "강배전", "강", "dark roast"},
	})

	processMethods = newEnumTable("other", map[string][]string{
		"washed":    {"워시드", "수세식", "습식", "wet"},
		"natural":   {"내추럴", "네추럴", "건식", "dry"},
		"honey":     {"허니", "펄프드 내추럴", "pulped natural"},
		"anaerobic": {"무산소", "무산소 발효", "애너로빅"},
		"other":     {"기타", "etc"},
	})
)

var venueDefinition = Definition{
	Kind: store.Venues,
	Fields: []FieldSpec{
		{Key: "name", Aliases: []string{"이름", "매장명", "상호", "venue name"}, Type: FieldText, Column: ColumnName, Required: true, Example: "Alpha Roasters"},
		{Key: "type", Aliases: []string{"유형", "타입", "종류", "category"}, Type: FieldEnum, Column: ColumnCategory, Required: true, Enum: venueTypes, Example: "roastery"},
		{Key: "address", Aliases: []string{"주소"}, Type: FieldText, Column: ColumnAddress, Required: true, Example: "12 Main St"},
		{Key: "city", Aliases: []string{"도시", "지역"}, Type: FieldText, Example: "Seoul"},
		{Key: "phone", Aliases: []string{"전화", "전화번호", "phone number"}, Type: FieldPhone, Example: "02-123-4567"},
		{Key: "email", Aliases: []string{"이메일", "e-mail"}, Type: FieldEmail, Example: "hello@alpha.example"},
		{Key: "website", Aliases: []string{"웹사이트", "홈페이지", "url"}, Type: FieldURL, Example: "alpha.example"},
		{Key: "instagram", Aliases: []string{"인스타그램", "인스타", "ig"}, Type: FieldHandle, Example: "@alpharoasters"},
		{Key: "features", Aliases: []string{"특징", "태그", "tags"}, Type: FieldList, Example: "wifi|outdoor seating"},
		{Key: "wifi", Aliases: []string{"와이파이"}, Type: FieldBool, Example: "yes"},
		{Key: "parking", Aliases: []string{"주차"}, Type: FieldBool, Example: "no"},
		{Key: "description", Aliases: []string{"설명", "소개"}, Type: FieldRichText, Example: "Small-batch roaster by the station"},
	},
}

var productDefinition = Definition{
	Kind: store.Products,
	Fields: []FieldSpec{
		{Key: "name", Aliases: []string{"이름", "상품명", "원두명", "product name"}, Type: FieldText, Column: ColumnName, Required: true, Example: "Ethiopia Guji"},
		{Key: "roast_level", Aliases: []string{"로스팅", "배전도", "roast", "roast level"}, Type: FieldEnum, Column: ColumnCategory, Required: true, Enum: roastLevels, Example: "light"},
		{Key: "venue", Aliases: []string{"매장", "판매처", "카페", "venue name"}, Type: FieldText, Column: ColumnParent, Required: true, RequiredUnless: "venue_id", Example: "Alpha Roasters"},
		{Key: "venue_id", Aliases: []string{"매장id", "매장 id", "venueid"}, Type: FieldText},
		{Key: "origin", Aliases: []string{"원산지", "산지"}, Type: FieldText, Example: "Ethiopia"},
		{Key: "variety", Aliases: []string{"품종"}, Type: FieldText, Example: "Heirloom"},
		{Key: "process", Aliases: []string{"가공", "가공방식", "processing"}, Type: FieldEnum, Enum: processMethods, Example: "washed"},
		{Key: "flavor_notes", Aliases: []string{"향미", "노트", "flavor", "flavors", "notes"}, Type: FieldList, Example: "jasmine;bergamot;peach"},
		{Key: "acidity", Aliases: []string{"산미"}, Type: FieldNumber, Bounded: true, Min: 1, Max: 5, Example: "4"},
		{Key: "sweetness", Aliases: []string{"단맛"}, Type: FieldNumber, Bounded: true, Min: 1, Max: 5, Example: "3"},
		{Key: "body", Aliases: []string{"바디"}, Type: FieldNumber, Bounded: true, Min: 1, Max: 5, Example: "2"},
		{Key: "bitterness", Aliases: []string{"쓴맛"}, Type: FieldNumber, Bounded: true, Min: 1, Max: 5, Example: "1"},
		{Key: "cupping_score", Aliases: []string{"커핑점수", "커핑 점수", "score"}, Type: FieldNumber, Bounded: true, Min: 0, Max: 100, Example: "87.5"},
		{Key: "price", Aliases: []string{"가격"}, Type: FieldNumber, Bounded: true, Min: 0, Max: 1e9, Example: "18000"},
		{Key: "weight_grams", Aliases: []string{"중량", "용량", "weight"}, Type: FieldNumber, Bounded: true, Min: 0, Max: 1e6, Example: "200"},
		{Key: "decaf", Aliases: []string{"디카페인"}, Type: FieldBool, Example: "no"},
		{Key: "description", Aliases: []string{"설명", "소개"}, Type: FieldRichText, Example: "Floral and bright"},
	},
}

// columnValue returns the text a row stores in a record column. A field
// whose RequiredUnless alternative is given in its place stores that value,
// so a product identified only by venue_id keys on the id.
func (d Definition) columnValue(row NormalizedRow, column string) string {
	f, ok := d.columnField(column)
	if !ok {
		return ""
	}
	if v := row.Text(f.Key); v != "" || f.RequiredUnless == "" {
		return v
	}
	return row.Text(f.RequiredUnless)
}

// Record builds the persisted shape of a row. Empty enumerations take their
// default; other empty or uncoercible cells are omitted.
func (d Definition) Record(row NormalizedRow) store.Record {
	rec := store.Record{Attributes: make(map[string]any)}
	for _, f := range d.Fields {
		v, ok := row.Values[f.Key]
		if !ok && f.Type == FieldEnum {
			v, ok = f.Enum.Default(), true
		}
		if !ok {
			continue
		}
		s, _ := v.(string)
		switch f.Column {
		case ColumnName:
			rec.Name = s
		case ColumnCategory:
			rec.Category = s
		case ColumnAddress:
			rec.Address = s
		case ColumnParent:
			rec.Parent = s
		default:
			rec.Attributes[f.Key] = v
		}
	}
	if rec.Parent == "" {
		rec.Parent = d.columnValue(row, ColumnParent)
	}
	if len(rec.Attributes) == 0 {
		rec.Attributes = nil
	}
	return rec
}
