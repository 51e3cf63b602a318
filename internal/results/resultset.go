package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resultsSchema = `{
  "type": "object",
  "required": ["columns", "data"],
  "properties": {
    "columns": {
      "type": "array",
      "items": {"type": "string"}
    },
    "data": {
      "type": "array",
      "items": {"type": "object"}
    }
  }
}`

var schema = jsonschema.MustCompileString("results.json", resultsSchema)

// ResultSet is the annotated variant table returned for a completed job.
type ResultSet struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"data"`
}

// Decode checks body against the results schema and decodes it.
// Non-string cell values are kept as their JSON text; null becomes empty.
func Decode(body []byte) (*ResultSet, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("results do not match schema: %w", err)
	}

	obj := doc.(map[string]any)
	rawColumns := obj["columns"].([]any)
	rawRows := obj["data"].([]any)

	rs := &ResultSet{
		Columns: make([]string, 0, len(rawColumns)),
		Rows:    make([]map[string]string, 0, len(rawRows)),
	}
	for _, c := range rawColumns {
		rs.Columns = append(rs.Columns, c.(string))
	}
	for _, r := range rawRows {
		raw := r.(map[string]any)
		row := make(map[string]string, len(raw))
		for k, v := range raw {
			row[k] = stringify(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(b)
	}
}
