package instance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Manufacturer identifies the SMS carrier behind an Sms instance.
type Manufacturer int

const (
	ManufacturerAlibaba Manufacturer = 1
	ManufacturerTencent Manufacturer = 2
	ManufacturerTwilio  Manufacturer = 3
)

var manufacturerLabels = map[Manufacturer]string{
	ManufacturerAlibaba: "Alibaba",
	ManufacturerTencent: "Tencent",
	ManufacturerTwilio:  "Twilio",
}

func (m Manufacturer) Known() bool {
	_, ok := manufacturerLabels[m]
	return ok
}

// Label returns the display name of the carrier.
func (m Manufacturer) Label() string {
	if l, ok := manufacturerLabels[m]; ok {
		return l
	}
	return fmt.Sprintf("Unknown(%d)", int(m))
}

func (m Manufacturer) String() string { return m.Label() }

// UnmarshalJSON accepts the carrier code as a number or a numeric string.
func (m *Manufacturer) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*m = Manufacturer(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("manufacturers: expected number or string, got %s", string(data))
	}
	code, err := parseManufacturer(s)
	if err != nil {
		return err
	}
	*m = code
	return nil
}

// parseManufacturer accepts a numeric code or a carrier label.
func parseManufacturer(s string) (Manufacturer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Manufacturer(n), nil
	}
	for code, label := range manufacturerLabels {
		if strings.EqualFold(label, s) {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown sms manufacturer %q", s)
}

// SubType returns the carrier label of an instance whose params carry a
// truthy manufacturers field, meaning any non-zero number, non-empty string
// or true. Params that cannot be parsed have no sub-type.
func SubType(i Instance) (string, bool) {
	value, dataType, _, err := jsonparser.Get([]byte(i.Params), "manufacturers")
	if err != nil {
		return "", false
	}
	switch dataType {
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		if err != nil || f == 0 {
			return "", false
		}
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return Manufacturer(int(f)).Label(), true
		}
		return fmt.Sprintf("Unknown(%s)", value), true
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil || !b {
			return "", false
		}
		return "Unknown(true)", true
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil || s == "" {
			return "", false
		}
		code, err := parseManufacturer(s)
		if err != nil {
			return s, true
		}
		return code.Label(), true
	default:
		return "", false
	}
}
