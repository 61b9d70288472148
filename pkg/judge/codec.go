package judge

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// EncodeResults serializes test results for JSON column storage.
func EncodeResults(results []TestResult) (datatypes.JSON, error) {
	if results == nil {
		results = []TestResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeResults parses test results from a JSON column.
func DecodeResults(raw datatypes.JSON) ([]TestResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var results []TestResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, err
	}
	return results, nil
}
