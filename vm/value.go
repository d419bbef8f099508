package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/govm-net/contractvm/heap"
)

// Value is a VM value: int32 (boolean, byte, char, short, int), int64,
// float32, float64, string, *heap.ObjectHandle or nil
type Value = heap.Value

func isWide(v Value) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func isReference(v Value) bool {
	switch v.(type) {
	case nil, string, *heap.ObjectHandle:
		return true
	}
	return false
}

func f2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// fcmp compares with NaN mapped to nanResult
func fcmp(a, b float64, nanResult int32) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nanResult
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// formatDouble renders a floating point value the way Double.toString does
func formatDouble(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bitSize)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, bitSize)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	exp = strings.TrimPrefix(exp, "+")
	return mant + "E" + exp
}

// toUTF16 returns the UTF-16 code units of s
func toUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func fromUTF16(u []uint16) string {
	return string(utf16.Decode(u))
}

// utf16Len is String.length
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// stringHash is String.hashCode
func stringHash(s string) int32 {
	var h int32
	for _, c := range toUTF16(s) {
		h = 31*h + int32(c)
	}
	return h
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
