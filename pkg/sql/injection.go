package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding reports a parameter value that matched a SQL injection
// pattern before the query was handed to the execution pipeline.
type InjectionFinding struct {
	ParamName   string // parameter that failed the check
	ParamValue  any    // the offending value
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckParameter runs libinjection against a single parameter value.
// Only strings are checked; numbers, booleans and other scalar types cannot
// carry injection payloads and always pass. Returns nil when the value is
// clean.
func CheckParameter(name string, value any) *InjectionFinding {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}

	return &InjectionFinding{
		ParamName:   name,
		ParamValue:  value,
		Fingerprint: string(fingerprint),
	}
}

// CheckParameters validates every parameter value and returns one finding
// per dirty parameter. An empty slice means all values passed.
func CheckParameters(params map[string]any) []*InjectionFinding {
	var findings []*InjectionFinding
	for name, value := range params {
		if f := CheckParameter(name, value); f != nil {
			findings = append(findings, f)
		}
	}
	return findings
}
