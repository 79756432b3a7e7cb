package numbers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
)

// ExportFileName is the artifact name used for exports.
const ExportFileName = "numbers.json"

// EncodeExport renders values as a JSON array sorted ascending.
// values itself is left untouched.
func EncodeExport(values []int64) []byte {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []int64{}
	}
	b, _ := json.Marshal(sorted)
	return b
}

// DecodeImport parses an import payload. The payload must be a single JSON
// array; anything else fails the whole import with ErrMalformedImport.
// Array elements that are not integral JSON numbers (2.5, "x", null, nested
// values) are dropped and counted in dropped.
func DecodeImport(data []byte) (values []int64, dropped int, err error) {
	elems, err := decodeArray(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	values = make([]int64, 0, len(elems))
	for _, e := range elems {
		n, ok := integral(e)
		if !ok {
			dropped++
			continue
		}
		values = append(values, n)
	}
	return values, dropped, nil
}

// EncodeRecord renders the durable record. The layout matches the export.
func EncodeRecord(values []int64) []byte {
	return EncodeExport(values)
}

func decodeArray(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %s", jsonKind(v))
	}
	return arr, nil
}

// integral accepts JSON numbers whose value is a whole number that fits in
// int64, so 3, 3.0 and 3e0 are all 3.
func integral(v any) (int64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(num.String(), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
