package core

// parser.go turns delimited text into a header row and ordered data rows.
//
// The tokenizer is a two-state machine (unquoted, quoted) over the input
// bytes. A double quote toggles the state; inside quotes the delimiter and
// newlines are literal and a doubled quote decodes to one quote character.
// A record ends only at a newline seen in the unquoted state, so one logical
// row may span several physical lines.

import (
	"fmt"
	"strings"
)

const (
	utf8BOM   = "\uFEFF"
	delimiter = ','
	quoteChar = '"'
)

type scanState int

const (
	stateUnquoted scanState = iota
	stateQuoted
)

// scannedRecord is one logical record before header mapping.
type scannedRecord struct {
	line   int // physical line the record starts on
	fields []string
	quoted bool // any quote character was seen
}

// blank reports whether the record carries no content at all.
func (r scannedRecord) blank() bool {
	if r.quoted {
		return false
	}
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// scan tokenizes text into records. unterminated is the start line of a
// record whose quoted field was still open at end of input, 0 otherwise.
func scan(text string) (records []scannedRecord, unterminated int) {
	var (
		field strings.Builder
		state = stateUnquoted
		line  = 1
		cur   = scannedRecord{line: line}
	)

	endField := func() {
		cur.fields = append(cur.fields, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		records = append(records, cur)
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch state {
		case stateUnquoted:
			switch c {
			case quoteChar:
				state = stateQuoted
				cur.quoted = true
			case delimiter:
				endField()
			case '\r':
				if i+1 < len(text) && text[i+1] == '\n' {
					continue // CRLF: the \n ends the record
				}
				field.WriteByte(c)
			case '\n':
				endRecord()
				line++
				cur = scannedRecord{line: line}
			default:
				field.WriteByte(c)
			}

		case stateQuoted:
			switch c {
			case quoteChar:
				if i+1 < len(text) && text[i+1] == quoteChar {
					field.WriteByte(quoteChar)
					i++
					continue
				}
				state = stateUnquoted
			case '\n':
				line++
				field.WriteByte(c)
			default:
				field.WriteByte(c)
			}
		}
	}

	if state == stateQuoted {
		unterminated = cur.line
	}
	if field.Len() > 0 || len(cur.fields) > 0 || cur.quoted {
		endRecord()
	}
	return records, unterminated
}

// HeaderResolver maps a lower-cased header cell to a canonical column key.
// ok is false for headers the caller does not recognise.
type HeaderResolver func(header string) (key string, ok bool)

// ParseResult is the parser output. Issues holds parse warnings and, when no
// data row could be decoded, a single critical issue.
type ParseResult struct {
	Headers []string
	Rows    []RawRow
	Issues  []ValidationIssue
}

// Critical reports whether parsing produced a critical issue.
func (p ParseResult) Critical() bool {
	for _, issue := range p.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Parser decodes delimited text. The zero Parser keys rows by the
// lower-cased header cells.
type Parser struct {
	Resolve HeaderResolver
}

// Parse decodes text with the zero Parser.
func Parse(text string) ParseResult {
	return Parser{}.Parse(text)
}

// Parse decodes text into headers and rows. It never fails: an empty or
// header-only input yields a critical issue and no rows.
func (p Parser) Parse(text string) ParseResult {
	var result ParseResult

	text = strings.TrimPrefix(text, utf8BOM)
	records, unterminated := scan(text)

	nonBlank := records[:0]
	for _, rec := range records {
		if !rec.blank() {
			nonBlank = append(nonBlank, rec)
		}
	}
	records = nonBlank

	if len(records) == 0 {
		result.Issues = append(result.Issues, ValidationIssue{
			Message:  "file is empty",
			Severity: SeverityCritical,
		})
		return result
	}

	header := records[0]
	keys := make([]string, len(header.fields))
	seen := make(map[string]bool, len(header.fields))
	for i, cell := range header.fields {
		h := cleanHeader(cell)
		if h == "" {
			continue
		}
		key, ok := h, true
		if p.Resolve != nil {
			key, ok = p.Resolve(h)
		}
		if !ok {
			result.Issues = append(result.Issues, ValidationIssue{
				Row:      header.line,
				Field:    h,
				Message:  "unknown column ignored",
				Severity: SeverityWarning,
			})
			continue
		}
		if seen[key] {
			result.Issues = append(result.Issues, ValidationIssue{
				Row:      header.line,
				Field:    h,
				Message:  fmt.Sprintf("duplicate column for %q ignored", key),
				Severity: SeverityWarning,
			})
			continue
		}
		seen[key] = true
		keys[i] = key
		result.Headers = append(result.Headers, key)
	}

	for _, rec := range records[1:] {
		if len(rec.fields) > len(keys) {
			result.Issues = append(result.Issues, ValidationIssue{
				Row:      rec.line,
				Message:  fmt.Sprintf("row has %d cells but the header has %d; extra cells ignored", len(rec.fields), len(keys)),
				Severity: SeverityWarning,
			})
		}

		values := make(map[string]*string, len(result.Headers))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if i >= len(rec.fields) {
				values[key] = nil
				continue
			}
			v := rec.fields[i]
			values[key] = &v
		}
		result.Rows = append(result.Rows, RawRow{Line: rec.line, Values: values})
	}

	if unterminated > 0 {
		result.Issues = append(result.Issues, ValidationIssue{
			Row:      unterminated,
			Message:  "quoted field is not terminated before end of file",
			Severity: SeverityWarning,
		})
	}

	if len(result.Rows) == 0 {
		result.Issues = append(result.Issues, ValidationIssue{
			Row:      header.line,
			Message:  "file contains a header but no data rows",
			Severity: SeverityCritical,
		})
	}

	return result
}

// cleanHeader lower-cases a header cell and strips the leading '=' left by
// spreadsheet ="..." formula exports.
func cleanHeader(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, utf8BOM))
	s = strings.TrimPrefix(s, "=")
	return strings.ToLower(strings.TrimSpace(s))
}
