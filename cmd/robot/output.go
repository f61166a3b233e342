package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/robot/object"
	"github.com/hokaccha/go-prettyjson"
)

var outputFormatsCompletion = []string{"json", "text"}

// getOutput renders the value a robot returned. Without a format, null
// prints nothing and everything else prints as JSON.
func getOutput(result object.Object, format string, colored bool) (string, error) {
	switch strings.ToLower(format) {
	case "":
		if result == nil || object.IsNull(result) {
			return "", nil
		}
		output, err := getOutputJSON(result, colored)
		if err != nil {
			return result.String(), nil
		}
		return string(output), nil
	case "json":
		output, err := getOutputJSON(result, colored)
		if err != nil {
			return "", err
		}
		return string(output), nil
	case "text":
		if result == nil {
			return "", nil
		}
		return object.ToString(result), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func getOutputJSON(result object.Object, colored bool) ([]byte, error) {
	if result == nil {
		result = object.Null
	}
	if !colored {
		return json.MarshalIndent(result, "", "  ")
	}
	return prettyjson.Marshal(result)
}
