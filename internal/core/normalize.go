package core

// normalize.go coerces raw cells into typed, canonical values.
//
// Normalization never fails. A cell that cannot be coerced is kept in
// NormalizedRow.Raw and left out of NormalizedRow.Values, and the validator
// decides whether that is an error, a warning or nothing at all.

import (
	"html"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldKey is the comparison form of free text: NFC, single-spaced,
// case-folded. Used for header aliases, enum aliases and name matching.
func foldKey(s string) string {
	s = norm.NFC.String(strings.Join(strings.Fields(s), " "))
	return cases.Fold().String(s)
}

// EnumTable resolves localized spellings of a closed enumeration.
type EnumTable struct {
	def    string
	values []string
	lookup map[string]string
}

func newEnumTable(def string, aliases map[string][]string) *EnumTable {
	t := &EnumTable{def: def, lookup: make(map[string]string)}
	for canonical, spellings := range aliases {
		t.values = append(t.values, canonical)
		t.lookup[foldKey(canonical)] = canonical
		for _, s := range spellings {
			t.lookup[foldKey(s)] = canonical
		}
	}
	sort.Strings(t.values)
	return t
}

// Resolve returns the canonical value for s.
func (t *EnumTable) Resolve(s string) (string, bool) {
	k := foldKey(s)
	if v, ok := t.lookup[k]; ok {
		return v, true
	}
	v, ok := t.lookup[strings.NewReplacer(" ", "_", "-", "_").Replace(k)]
	return v, ok
}

// Default is the value used by the write path when a cell is empty.
func (t *EnumTable) Default() string { return t.def }

// Values returns the canonical values in sorted order.
func (t *EnumTable) Values() []string {
	return append([]string(nil), t.values...)
}

var (
	truthyTokens = map[string]bool{
		"true": true, "yes": true, "1": true, "y": true, "t": true, "o": true,
		"예": true, "네": true, "있음": true, "가능": true, "유": true,
	}
	falsyTokens = map[string]bool{
		"false": true, "no": true, "0": true, "n": true, "f": true, "x": true,
		"아니오": true, "아니요": true, "없음": true, "불가": true, "무": true,
	}
)

// ParseBool resolves a yes/no token. ok is false for anything else.
func ParseBool(s string) (value, ok bool) {
	k := foldKey(s)
	switch {
	case truthyTokens[k]:
		return true, true
	case falsyTokens[k]:
		return false, true
	default:
		return false, false
	}
}

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber reads a decimal number, tolerating currency symbols, thousands
// separators and accounting-style negatives "(123.45)".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"$", "",
		"€", "", // Euro
		"£", "", // Pound
		"₩", "", // Won
		"원", "",
		",", "",
		" ", "",
	).Replace(s)

	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SplitList splits on ';', ',' or '|', trims items, and drops empty and
// repeated (case-insensitive) items.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '|'
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[foldKey(p)] {
			continue
		}
		seen[foldKey(p)] = true
		out = append(out, p)
	}
	return out
}

// NormalizePhone keeps digits and single hyphens.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '.':
			out := b.String()
			if out != "" && !strings.HasSuffix(out, "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NormalizeURL adds an https scheme when none is given.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + strings.TrimPrefix(s, "//")
}

// NormalizeHandle returns a social handle in "@name" form. Profile URLs are
// reduced to their last path segment.
func NormalizeHandle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, "@")
	if s == "" {
		return ""
	}
	return "@" + s
}

var handleRegex = regexp.MustCompile(`^@[A-Za-z0-9._]{1,30}$`)

func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || strings.ContainsAny(s, " \t") {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.Contains(u.Host, ".")
}

func validHandle(s string) bool {
	return handleRegex.MatchString(s)
}

// NormalizedRow is a parsed row after coercion. Raw holds the trimmed,
// non-empty cells; Values holds the coerced value of each cell that could be
// coerced (string, []string, bool or float64 depending on the field type).
type NormalizedRow struct {
	Line   int
	Raw    map[string]string
	Values map[string]any
}

// Has reports whether the row carried a non-empty cell for key.
func (r NormalizedRow) Has(key string) bool {
	_, ok := r.Raw[key]
	return ok
}

// Text returns the coerced string value of key, or "".
func (r NormalizedRow) Text(key string) string {
	s, _ := r.Values[key].(string)
	return s
}

// Normalizer maps headers and cells of one Definition onto canonical form.
type Normalizer struct {
	headers  map[string]string
	specs    map[string]FieldSpec
	richText *bluemonday.Policy
}

// NewNormalizer builds the alias lookup for def.
func NewNormalizer(def Definition) *Normalizer {
	n := &Normalizer{
		headers:  make(map[string]string),
		specs:    make(map[string]FieldSpec, len(def.Fields)),
		richText: bluemonday.StrictPolicy(),
	}
	for _, f := range def.Fields {
		n.specs[f.Key] = f
		n.headers[foldKey(f.Key)] = f.Key
		n.headers[foldKey(strings.ReplaceAll(f.Key, "_", " "))] = f.Key
		for _, a := range f.Aliases {
			n.headers[foldKey(a)] = f.Key
		}
	}
	return n
}

// Canonical resolves a header cell to its canonical key.
func (n *Normalizer) Canonical(header string) (string, bool) {
	k := foldKey(header)
	if key, ok := n.headers[k]; ok {
		return key, true
	}
	key, ok := n.headers[strings.NewReplacer("-", " ", "_", " ").Replace(k)]
	return key, ok
}

// Row coerces one parsed row.
func (n *Normalizer) Row(raw RawRow) NormalizedRow {
	row := NormalizedRow{
		Line:   raw.Line,
		Raw:    make(map[string]string, len(raw.Values)),
		Values: make(map[string]any, len(raw.Values)),
	}
	for key := range raw.Values {
		cell, _ := raw.Get(key)
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		spec, ok := n.specs[key]
		if !ok {
			continue
		}
		row.Raw[key] = cell
		if v, ok := n.coerce(spec, cell); ok {
			row.Values[key] = v
		}
	}
	return row
}

// Rows coerces every parsed row, preserving order.
func (n *Normalizer) Rows(raws []RawRow) []NormalizedRow {
	out := make([]NormalizedRow, len(raws))
	for i, r := range raws {
		out[i] = n.Row(r)
	}
	return out
}

func (n *Normalizer) coerce(spec FieldSpec, cell string) (any, bool) {
	switch spec.Type {
	case FieldText:
		return strings.Join(strings.Fields(cell), " "), true
	case FieldRichText:
		s := strings.TrimSpace(html.UnescapeString(n.richText.Sanitize(cell)))
		return s, s != ""
	case FieldEnum:
		return spec.Enum.Resolve(cell)
	case FieldList:
		items := SplitList(cell)
		return items, len(items) > 0
	case FieldBool:
		return ParseBool(cell)
	case FieldNumber:
		return ParseNumber(cell)
	case FieldPhone:
		s := NormalizePhone(cell)
		return s, s != ""
	case FieldEmail:
		return strings.ToLower(cell), true
	case FieldURL:
		return NormalizeURL(cell), true
	case FieldHandle:
		s := NormalizeHandle(cell)
		return s, s != ""
	default:
		return cell, true
	}
}
