package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/doclens-ai/doclens/internal/extract"
	"github.com/doclens-ai/doclens/internal/llm"
)

// TableAgent cleans extracted tables and renders them as CSV and JSON.
// With a completer it additionally asks the model to improve column names
// for larger tables.
type TableAgent struct {
	completer llm.Completer
}

// NewTableAgent creates the table agent. completer may be nil.
func NewTableAgent(completer llm.Completer) *TableAgent {
	return &TableAgent{completer: completer}
}

func (a *TableAgent) Name() string           { return "table" }
func (a *TableAgent) Dependencies() []string { return []string{"extract"} }
func (a *TableAgent) Required() []string     { return []string{"extract"} }

// Process normalizes every extracted table.
func (a *TableAgent) Process(ctx context.Context, ic *Context) error {
	if len(ic.Tables) == 0 {
		return nil
	}

	var (
		processed []extract.TableData
		summaries []map[string]interface{}
	)

	for idx, table := range ic.Tables {
		cleaned := CleanTable(table)

		if a.completer != nil && len(cleaned.Rows) > 2 {
			if err := a.llmEnhanceHeaders(ctx, &cleaned, ic); err != nil {
				ic.AddError(fmt.Sprintf("table %d enhancement: %v", idx, err))
			}
		}

		processed = append(processed, cleaned)
		summaries = append(summaries, map[string]interface{}{
			"headers":   cleaned.Headers,
			"row_count": len(cleaned.Rows),
			"col_count": len(cleaned.Headers),
			"csv":       tableToCSV(cleaned),
			"json":      tableToJSON(cleaned),
		})
	}

	ic.Tables = processed
	ic.SetMetadata("tables_count", len(processed))
	ic.SetMetadata("tables_data", summaries)
	ic.SetMetric("tables_processed", len(processed))
	return nil
}

// CleanTable drops empty rows and columns. It is idempotent.
func CleanTable(table extract.TableData) extract.TableData {
	var rows [][]string
	for _, row := range table.Rows {
		empty := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	if len(table.Headers) == 0 || len(rows) == 0 {
		return extract.TableData{Headers: table.Headers, Rows: rows, Page: table.Page}
	}

	var keep []int
	for col := 0; col < len(table.Headers); col++ {
		hasData := strings.TrimSpace(table.Headers[col]) != ""
		if !hasData {
			for _, row := range rows {
				if col < len(row) && strings.TrimSpace(row[col]) != "" {
					hasData = true
					break
				}
			}
		}
		if hasData {
			keep = append(keep, col)
		}
	}

	headers := make([]string, 0, len(keep))
	for _, col := range keep {
		headers = append(headers, table.Headers[col])
	}

	newRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		newRow := make([]string, 0, len(keep))
		for _, col := range keep {
			if col < len(row) {
				newRow = append(newRow, row[col])
			} else {
				newRow = append(newRow, "")
			}
		}
		newRows = append(newRows, newRow)
	}

	return extract.TableData{Headers: headers, Rows: newRows, Page: table.Page}
}

type llmTableInfo struct {
	Headers     []string `json:"headers"`
	ColumnTypes []string `json:"column_types"`
	Description string   `json:"description"`
}

func (a *TableAgent) llmEnhanceHeaders(ctx context.Context, table *extract.TableData, ic *Context) error {
	preview := table.Rows
	if len(preview) > 5 {
		preview = preview[:5]
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(table.Headers, " | "))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 50))
	sb.WriteString("\n")
	for _, row := range preview {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Analyze the following table and improve its column names:

%s

Respond with JSON:
{
  "headers": ["Improved Name 1", "Improved Name 2", ...],
  "column_types": ["text|number|date|currency|boolean", ...],
  "description": "what this table represents"
}

Rules:
- Use clear, descriptive names
- Detect data types
- Keep the same number of columns`, sb.String())

	outs, err := a.completer.Complete(ctx, prompt, 1)
	if err != nil {
		return err
	}

	var parsed llmTableInfo
	if err := json.Unmarshal([]byte(llm.StripJSONFence(outs[0])), &parsed); err != nil {
		return fmt.Errorf("parse table response: %w", err)
	}

	if len(parsed.Headers) == len(table.Headers) {
		table.Headers = parsed.Headers
	}
	return nil
}

func tableToCSV(table extract.TableData) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(table.Headers)
	for _, row := range table.Rows {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.String()
}

func tableToJSON(table extract.TableData) string {
	records := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		record := make(map[string]string, len(table.Headers))
		for idx, header := range table.Headers {
			if idx < len(row) {
				record[header] = row[idx]
			} else {
				record[header] = ""
			}
		}
		records = append(records, record)
	}
	data, _ := json.Marshal(records)
	return string(data)
}
