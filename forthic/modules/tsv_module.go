package modules

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/forthic-lang/forthic-go/forthic"
)

// TSVModule provides tab-separated-value serialization. Rows are CRLF
// terminated; a field containing a tab, CR, LF, or double quote is wrapped
// in double quotes with internal quotes doubled.
type TSVModule struct {
	*forthic.Module
}

// NewTSVModule creates a new TSV module
func NewTSVModule() *TSVModule {
	m := &TSVModule{
		Module: forthic.NewModule("tsv"),
	}
	m.registerWords()
	return m
}

func (m *TSVModule) registerWords() {
	// Encoding
	m.AddModuleWord(">TSV", m.toTSV)
	m.AddModuleWord("RECS>TSV", m.recsToTSV)

	// Decoding
	m.AddModuleWord("TSV>", m.fromTSV)
	m.AddModuleWord("TSV>RECS", m.fromTSVToRecs)
}

// ========================================
// Encoding
// ========================================

func tsvField(val interface{}) string {
	field := toString(val)
	if strings.ContainsAny(field, "\t\r\n\"") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

func writeTSVRow(sb *strings.Builder, row []interface{}) {
	for i, val := range row {
		if i > 0 {
			sb.WriteByte('\t')
		}
		sb.WriteString(tsvField(val))
	}
	sb.WriteString("\r\n")
}

// toTSV serializes an array of rows: ( rows -- tsv )
func (m *TSVModule) toTSV(interp *forthic.Interpreter) error {
	rows := interp.StackPop()

	slice, ok := asArray(rows)
	if !ok {
		interp.StackPush("")
		return nil
	}

	var sb strings.Builder
	for _, row := range slice {
		rowArr, ok := asArray(row)
		if !ok {
			return forthic.NewGlobalModuleError(fmt.Sprintf("Expected TSV row to be an array: %v", row))
		}
		writeTSVRow(&sb, rowArr)
	}

	interp.StackPush(sb.String())
	return nil
}

// recsToTSV projects records onto a field list: ( recs fields -- tsv )
// The field list becomes the header row.
func (m *TSVModule) recsToTSV(interp *forthic.Interpreter) error {
	fields := interp.StackPop()
	recs := interp.StackPop()

	fieldArr, ok1 := asArray(fields)
	recArr, ok2 := asArray(recs)

	if !ok1 || !ok2 {
		interp.StackPush("")
		return nil
	}

	var sb strings.Builder
	writeTSVRow(&sb, fieldArr)

	for _, item := range recArr {
		rec, ok := asRecord(item)
		if !ok {
			return forthic.NewGlobalModuleError(fmt.Sprintf("Expected record: %v", item))
		}
		row := make([]interface{}, len(fieldArr))
		for i, field := range fieldArr {
			row[i] = rec.GetOr(toString(field), "")
		}
		writeTSVRow(&sb, row)
	}

	interp.StackPush(sb.String())
	return nil
}

// ========================================
// Decoding
// ========================================

func parseTSV(content string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, forthic.NewGlobalModuleError("Malformed TSV").WithCause(err)
	}
	return rows, nil
}

// fromTSV parses TSV into an array of string rows: ( tsv -- rows )
func (m *TSVModule) fromTSV(interp *forthic.Interpreter) error {
	content := interp.StackPop()

	str, ok := content.(string)
	if !ok {
		interp.StackPush([]interface{}{})
		return nil
	}

	rows, err := parseTSV(str)
	if err != nil {
		return err
	}

	result := make([]interface{}, len(rows))
	for i, row := range rows {
		fields := make([]interface{}, len(row))
		for j, field := range row {
			fields[j] = field
		}
		result[i] = fields
	}

	interp.StackPush(result)
	return nil
}

// fromTSVToRecs parses TSV whose first row names the fields: ( tsv -- recs )
func (m *TSVModule) fromTSVToRecs(interp *forthic.Interpreter) error {
	content := interp.StackPop()

	str, ok := content.(string)
	if !ok {
		interp.StackPush([]interface{}{})
		return nil
	}

	rows, err := parseTSV(str)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		interp.StackPush([]interface{}{})
		return nil
	}

	header := rows[0]
	result := make([]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := forthic.NewRecord()
		for i, field := range header {
			if i < len(row) {
				rec.Set(field, row[i])
			} else {
				rec.Set(field, "")
			}
		}
		result = append(result, rec)
	}

	interp.StackPush(result)
	return nil
}
