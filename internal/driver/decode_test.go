package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name     string
		typeName string
		value    any
		want     string
	}{
		{"null", "VARCHAR", nil, "NULL"},
		{"null without type", "", nil, "NULL"},
		{"datetime value", "DATETIME", ts, "2024-03-09 14:05:07"},
		{"timestamp value", "TIMESTAMP", ts, "2024-03-09 14:05:07"},
		{"time.Time with unknown type", "", ts, "2024-03-09 14:05:07"},
		{"datetime text", "DATETIME", []byte("2024-03-09 14:05:07"), "2024-03-09 14:05:07"},
		{"datetime text with fraction", "DATETIME", []byte("2024-03-09 14:05:07.250"), "2024-03-09 14:05:07"},
		{"zero datetime falls through to text", "DATETIME", []byte("0000-00-00 00:00:00"), "0000-00-00 00:00:00"},
		{"zero datetime parsed by the driver", "DATETIME", time.Time{}, "0000-00-00 00:00:00"},
		{"zero timestamp parsed by the driver", "TIMESTAMP", time.Time{}, "0000-00-00 00:00:00"},
		{"zero date parsed by the driver", "DATE", time.Time{}, "0000-00-00"},
		{"date value", "DATE", ts, "2024-03-09"},
		{"date text", "DATE", []byte("2024-03-09"), "2024-03-09"},
		{"time text", "TIME", []byte("14:05:07"), "14:05:07"},
		{"time out of clock range falls through", "TIME", []byte("838:59:59"), "838:59:59"},
		{"int64", "BIGINT", int64(-42), "-42"},
		{"int32", "INT", int32(7), "7"},
		{"int text", "INT", []byte("123"), "123"},
		{"unsigned bigint text beyond int64", "UNSIGNED BIGINT", []byte("18446744073709551615"), "18446744073709551615"},
		{"uint64 beyond int64", "", uint64(18446744073709551615), "18446744073709551615"},
		{"uint32", "", uint32(9), "9"},
		{"float64", "DOUBLE", 1.5, "1.5"},
		{"float64 whole number", "DOUBLE", 3.0, "3"},
		{"float column as float64", "FLOAT", float64(float32(0.1)), "0.1"},
		{"float32", "", float32(2.25), "2.25"},
		{"double text", "DOUBLE", []byte("2.5"), "2.5"},
		{"decimal stays exact", "DECIMAL", []byte("12.50"), "12.50"},
		{"bool true", "BOOL", true, "true"},
		{"bool text", "BOOLEAN", []byte("f"), "false"},
		{"json compacted", "JSON", []byte(`{"a": 1,  "b": [1, 2]}`), `{"a":1,"b":[1,2]}`},
		{"invalid json falls through", "JSON", []byte(`{oops`), `{oops`},
		{"string", "VARCHAR", "hello", "hello"},
		{"varchar bytes", "VARCHAR", []byte("héllo"), "héllo"},
		{"empty varchar", "VARCHAR", []byte(""), "<binary>"},
		{"empty string value", "TEXT", "", "<binary>"},
		{"utf8 blob", "BLOB", []byte("plain text"), "plain text"},
		{"binary blob", "BLOB", []byte{0xff, 0xfe, 0x00}, "<binary>"},
		{"digits in blob stay text", "BLOB", []byte("123"), "123"},
		{"unsupported", "", struct{}{}, "<unsupported>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.typeName, tt.value))
		})
	}
}

func TestCascadeOrder(t *testing.T) {
	names := make([]string, len(DefaultCascade))
	for i, p := range DefaultCascade {
		names[i] = p.Name
	}
	assert.Equal(t, []string{
		"null", "datetime", "date", "time",
		"int64", "int32", "uint64", "uint32",
		"float64", "float32", "bool", "json",
		"string", "bytes",
	}, names)
}

func TestCascadeRejectEmpty(t *testing.T) {
	emptyString := Probe{
		Name:        "string",
		Decode:      func(Cell) (string, bool) { return "", true },
		RejectEmpty: true,
	}
	c := Cascade{emptyString, {Name: "bytes", Decode: decodeBytes}}

	assert.Equal(t, "abc", c.Format(Cell{Value: []byte("abc")}))
	assert.Equal(t, BinaryText, c.Format(Cell{Value: []byte{0xc3}}))
	assert.Equal(t, UnsupportedText, Cascade{emptyString}.Format(Cell{Value: 1}))
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, familyInt, familyOf("UNSIGNED INT"))
	assert.Equal(t, familyInt, familyOf("int unsigned"))
	assert.Equal(t, familyText, familyOf("varchar(255)"))
	assert.Equal(t, familyFloat64, familyOf("double precision"))
	assert.Equal(t, familyUnknown, familyOf("GEOGRAPHY"))
}

func TestDecodeName(t *testing.T) {
	assert.Equal(t, "shop", DecodeName([]byte("shop")))
	assert.Equal(t, "bad�name", DecodeName([]byte("bad\xffname")))
	assert.Equal(t, "", DecodeName(nil))
	assert.Equal(t, "12", DecodeName(int64(12)))
}
