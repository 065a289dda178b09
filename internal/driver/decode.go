package driver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Display values produced by the cascade when no typed decode applies
const (
	NullText        = "NULL"
	BinaryText      = "<binary>"
	UnsupportedText = "<unsupported>"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"

	// MySQL zero dates arrive as time.Time{} when the driver parses times
	zeroDateTime = "0000-00-00 00:00:00"
	zeroDate     = "0000-00-00"
)

// Cell is one scanned value together with the backend's column type name
type Cell struct {
	TypeName string
	Value    any
}

// Probe is one typed decode attempt. Decode reports false when the cell is
// not representable as the probe's type.
type Probe struct {
	Name        string
	Decode      func(Cell) (string, bool)
	RejectEmpty bool
}

// Cascade is an ordered list of probes; the first successful probe wins
type Cascade []Probe

// Format runs the probes in order and returns the first accepted rendering.
// Probes flagged RejectEmpty treat an empty result as a miss.
func (c Cascade) Format(cell Cell) string {
	for _, p := range c {
		s, ok := p.Decode(cell)
		if !ok {
			continue
		}
		if p.RejectEmpty && s == "" {
			continue
		}
		return s
	}
	return UnsupportedText
}

// DefaultCascade is the display decoding order shared by every backend.
// Date/time probes precede numeric ones and numeric probes precede the
// string probe, whose empty results are ambiguous for binary-safe columns.
var DefaultCascade = Cascade{
	{Name: "null", Decode: decodeNull},
	{Name: "datetime", Decode: decodeDateTime},
	{Name: "date", Decode: decodeDate},
	{Name: "time", Decode: decodeTime},
	{Name: "int64", Decode: decodeInt64},
	{Name: "int32", Decode: decodeInt32},
	{Name: "uint64", Decode: decodeUint64},
	{Name: "uint32", Decode: decodeUint32},
	{Name: "float64", Decode: decodeFloat64},
	{Name: "float32", Decode: decodeFloat32},
	{Name: "bool", Decode: decodeBool},
	{Name: "json", Decode: decodeJSON},
	{Name: "string", Decode: decodeString, RejectEmpty: true},
	{Name: "bytes", Decode: decodeBytes},
}

// FormatValue renders a cell with the default cascade
func FormatValue(typeName string, v any) string {
	return DefaultCascade.Format(Cell{TypeName: typeName, Value: v})
}

type family int

const (
	familyUnknown family = iota
	familyDateTime
	familyDate
	familyTime
	familyInt
	familyFloat64
	familyFloat32
	familyBool
	familyJSON
	familyText
	familyBinary
)

var families = map[string]family{
	"DATETIME": familyDateTime, "TIMESTAMP": familyDateTime, "TIMESTAMPTZ": familyDateTime,
	"DATE": familyDate,
	"TIME": familyTime, "TIMETZ": familyTime,
	"TINYINT": familyInt, "SMALLINT": familyInt, "MEDIUMINT": familyInt, "INT": familyInt,
	"INTEGER": familyInt, "BIGINT": familyInt, "YEAR": familyInt,
	"INT2": familyInt, "INT4": familyInt, "INT8": familyInt,
	"DOUBLE": familyFloat64, "FLOAT8": familyFloat64, "DOUBLE PRECISION": familyFloat64,
	"REAL": familyFloat64,
	"FLOAT": familyFloat32, "FLOAT4": familyFloat32,
	"BOOL": familyBool, "BOOLEAN": familyBool,
	"JSON": familyJSON, "JSONB": familyJSON,
	"CHAR": familyText, "VARCHAR": familyText, "TEXT": familyText, "TINYTEXT": familyText,
	"MEDIUMTEXT": familyText, "LONGTEXT": familyText, "ENUM": familyText, "SET": familyText,
	"DECIMAL": familyText, "NUMERIC": familyText, "NCHAR": familyText, "NVARCHAR": familyText,
	"BPCHAR": familyText, "NAME": familyText, "UUID": familyText, "CLOB": familyText,
	"BINARY": familyBinary, "VARBINARY": familyBinary, "BLOB": familyBinary, "TINYBLOB": familyBinary,
	"MEDIUMBLOB": familyBinary, "LONGBLOB": familyBinary, "BYTEA": familyBinary, "BIT": familyBinary,
	"GEOMETRY": familyBinary,
}

// familyOf normalizes a backend type name such as "UNSIGNED INT" or
// "varchar(255)" and looks up its decode family.
func familyOf(typeName string) family {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSpace(strings.TrimPrefix(t, "UNSIGNED "))
	t = strings.TrimSpace(strings.TrimSuffix(t, " UNSIGNED"))
	if f, ok := families[t]; ok {
		return f
	}
	return familyUnknown
}

// textOf returns the textual form of byte-ish values
func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case []byte:
		return string(x), true
	case string:
		return x, true
	}
	return "", false
}

func decodeNull(c Cell) (string, bool) {
	if c.Value == nil {
		return NullText, true
	}
	return "", false
}

func decodeDateTime(c Cell) (string, bool) {
	f := familyOf(c.TypeName)
	if t, ok := c.Value.(time.Time); ok {
		if f == familyDateTime || f == familyUnknown {
			if t.IsZero() {
				return zeroDateTime, true
			}
			return t.Format(dateTimeLayout), true
		}
		return "", false
	}
	if f != familyDateTime {
		return "", false
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateTimeLayout), true
		}
	}
	return "", false
}

func decodeDate(c Cell) (string, bool) {
	if familyOf(c.TypeName) != familyDate {
		return "", false
	}
	if t, ok := c.Value.(time.Time); ok {
		if t.IsZero() {
			return zeroDate, true
		}
		return t.Format(dateLayout), true
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

func decodeTime(c Cell) (string, bool) {
	if familyOf(c.TypeName) != familyTime {
		return "", false
	}
	if t, ok := c.Value.(time.Time); ok {
		return t.Format(timeLayout), true
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	t, err := time.Parse("15:04:05.999999999", s)
	if err != nil {
		return "", false
	}
	return t.Format(timeLayout), true
}

// intText parses byte-ish values of integer columns
func intText(c Cell) (string, bool) {
	if familyOf(c.TypeName) != familyInt {
		return "", false
	}
	return textOf(c.Value)
}

func decodeInt64(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		if x <= math.MaxInt64 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return "", false
	}
	s, ok := intText(c)
	if !ok {
		return "", false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

func decodeInt32(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	}
	s, ok := intText(c)
	if !ok {
		return "", false
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

func decodeUint64(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case uint64:
		return strconv.FormatUint(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	}
	s, ok := intText(c)
	if !ok {
		return "", false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

func decodeUint32(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	}
	s, ok := intText(c)
	if !ok {
		return "", false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(n, 10), true
}

func decodeFloat64(c Cell) (string, bool) {
	f := familyOf(c.TypeName)
	if x, ok := c.Value.(float64); ok {
		if f == familyFloat32 {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	if f != familyFloat64 {
		return "", false
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(x, 'f', -1, 64), true
}

func decodeFloat32(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 32), true
	}
	if familyOf(c.TypeName) != familyFloat32 {
		return "", false
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	x, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(x, 'f', -1, 32), true
}

func decodeBool(c Cell) (string, bool) {
	if b, ok := c.Value.(bool); ok {
		return strconv.FormatBool(b), true
	}
	if familyOf(c.TypeName) != familyBool {
		return "", false
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	switch strings.ToLower(s) {
	case "t", "true", "1":
		return "true", true
	case "f", "false", "0":
		return "false", true
	}
	return "", false
}

func decodeJSON(c Cell) (string, bool) {
	switch c.Value.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(c.Value)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
	if familyOf(c.TypeName) != familyJSON {
		return "", false
	}
	s, ok := textOf(c.Value)
	if !ok {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return "", false
	}
	return buf.String(), true
}

func decodeString(c Cell) (string, bool) {
	switch x := c.Value.(type) {
	case string:
		return x, true
	case []byte:
		if familyOf(c.TypeName) != familyText || !utf8.Valid(x) {
			return "", false
		}
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

func decodeBytes(c Cell) (string, bool) {
	var b []byte
	switch x := c.Value.(type) {
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return "", false
	}
	if len(b) > 0 && utf8.Valid(b) {
		return string(b), true
	}
	return BinaryText, true
}

// DecodeName converts an identifier column to text, replacing invalid UTF-8
// instead of failing. Some servers report names as binary-safe types.
func DecodeName(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.ToValidUTF8(string(x), "�")
	case string:
		return strings.ToValidUTF8(x, "�")
	default:
		return fmt.Sprint(x)
	}
}
