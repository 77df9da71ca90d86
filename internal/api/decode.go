package api

import (
	"encoding/json"
	"errors"
)

var errParams = errors.New("invalid params")

func decodeSingleStringParam(raw json.RawMessage) (string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errParams
}

func decodeTwoStringParams(raw json.RawMessage) (string, string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 2 && arr[0] != "" && arr[1] != "" {
		return arr[0], arr[1], nil
	}
	return "", "", errParams
}

func decodeThreeStringParams(raw json.RawMessage) (string, string, string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 3 && arr[0] != "" && arr[1] != "" && arr[2] != "" {
		return arr[0], arr[1], arr[2], nil
	}
	return "", "", "", errParams
}

// decodeOptionalBoolParam accepts absent params, [], or [bool].
func decodeOptionalBoolParam(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	var arr []bool
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) > 1 {
		return false, errParams
	}
	if len(arr) == 0 {
		return false, nil
	}
	return arr[0], nil
}
