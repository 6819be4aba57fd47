package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
)

var jsonNull = []byte("null")

// isNull reports whether a raw JSON value is absent or null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

// getYear extracts the date field, accepting "2015" as well as 2015.
func getYear(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", fmt.Errorf("missing date")
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid date %s: %w", raw, err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid date %s: %w", raw, err)
	}
	return n.String(), nil
}

// getDecimal coerces the value field; null and "" yield nil.
func getDecimal(raw json.RawMessage) (*decimal.Decimal, error) {
	if isNull(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("invalid value %s: %w", raw, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid value %s: %w", raw, err)
	}
	return &d, nil
}

// ParseResponse decodes one indicator response. The body is a two-element
// array: metadata, then the observations. A shorter array or an empty/null
// data element yields no observations and no error.
func ParseResponse(ind Indicator, body []byte) ([]Observation, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &FormatError{Indicator: ind.Code, Err: fmt.Errorf("parsing response: %w", err)}
	}

	if len(envelope) < 2 {
		if len(envelope) == 1 {
			logAPIMessage(ind, envelope[0])
		}
		return nil, nil
	}
	if isNull(envelope[1]) {
		return nil, nil
	}

	var raw []apiObservation
	if err := json.Unmarshal(envelope[1], &raw); err != nil {
		return nil, &FormatError{Indicator: ind.Code, Err: fmt.Errorf("parsing observations: %w", err)}
	}

	obs := make([]Observation, 0, len(raw))
	for i, point := range raw {
		if point.Country == nil || point.Country.Value == nil {
			return nil, &FormatError{Indicator: ind.Code, Err: fmt.Errorf("observation %d: missing country.value", i)}
		}
		year, err := getYear(point.Date)
		if err != nil {
			return nil, &FormatError{Indicator: ind.Code, Err: fmt.Errorf("observation %d: %w", i, err)}
		}
		value, err := getDecimal(point.Value)
		if err != nil {
			return nil, &FormatError{Indicator: ind.Code, Err: fmt.Errorf("observation %d: %w", i, err)}
		}

		obs = append(obs, Observation{
			Country: *point.Country.Value,
			Year:    year,
			Feature: ind.Feature,
			Value:   value,
		})
	}

	return obs, nil
}

// logAPIMessage surfaces the API's rejection message, if the lone element is one.
func logAPIMessage(ind Indicator, raw json.RawMessage) {
	var msg apiMessage
	if json.Unmarshal(raw, &msg) != nil || len(msg.Message) == 0 {
		return
	}
	for _, m := range msg.Message {
		log.Printf("API message for %s: %s (%s)", ind.Code, m.Value, m.Key)
	}
}
