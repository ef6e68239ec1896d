package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeStrict unmarshals a Rules value, rejecting unknown fields. pkg/config
// uses it for inline rules in the account-set file, so a typo in a rule name
// fails loudly instead of silently producing a zero-valued field. The review
// API's custom_rules field is decoded by gin's JSON binding, which does not
// reject unknown fields.
func DecodeStrict(data []byte) (Rules, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Rules
	if err := dec.Decode(&r); err != nil {
		return Rules{}, fmt.Errorf("rules: decode: %w", err)
	}
	return r, nil
}
