package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Numeric is a numeric value carried as a string. Registry backends store it
// verbatim; JSON rendering emits an integer when the value has no fractional
// component and a floating-point number otherwise. A value that does not parse
// as a number is rendered as a plain JSON string.
type Numeric string

// NumericSeconds returns t as seconds since the epoch with microsecond
// precision, trailing zeros trimmed.
func NumericSeconds(t time.Time) Numeric {
	return Numeric(strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64))
}

func (n Numeric) String() string { return string(n) }

// Float64 parses the value. The second return reports whether it is numeric.
func (n Numeric) Float64() (float64, bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	return f, err == nil
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	f, ok := n.Float64()
	if !ok {
		return strconv.AppendQuote(nil, string(n)), nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(nil, int64(f), 10), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func (n *Numeric) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		*n = Numeric(unquoted)
		return nil
	}
	*n = Numeric(s)
	return nil
}
