// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gametitle

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	romanCharset      = regexp.MustCompile(`^[ivxlcdm]+$`)
	romanNumeral      = regexp.MustCompile(`^m{0,4}(cm|cd|d?c{0,3})(xc|xl|l?x{0,3})(ix|iv|v?i{0,3})$`)
	shortRomanCharset = regexp.MustCompile(`^[ivx]+$`)
	shortRomanNumeral = regexp.MustCompile(`^x{0,3}(ix|iv|v?i{0,3})$`)
)

var romanValues = map[byte]int{
	'I': 1,
	'V': 5,
	'X': 10,
	'L': 50,
	'C': 100,
	'D': 500,
	'M': 1000,
}

// romanToNumber decodes a roman numeral written in valid subtractive notation.
// Invalid forms (e.g. "IIII", "VX") return 0.
func romanToNumber(value string) int {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" || !romanCharset.MatchString(lower) || !romanNumeral.MatchString(lower) {
		return 0
	}

	upper := strings.ToUpper(lower)
	total := 0
	for i := 0; i < len(upper); i++ {
		current := romanValues[upper[i]]
		next := 0
		if i+1 < len(upper) {
			next = romanValues[upper[i+1]]
		}
		if next > current {
			total -= current
		} else {
			total += current
		}
	}

	return total
}

// isShortRomanNumeral reports whether token is a small roman numeral (I..XXXIX)
// of the kind used for game installments.
func isShortRomanNumeral(token string) bool {
	lower := strings.ToLower(token)
	return shortRomanCharset.MatchString(lower) && shortRomanNumeral.MatchString(lower)
}

// normalizePartToken converts an installment token ("ii", "IV", "2", "007")
// into its canonical arabic form, or "" when the token is not a valid number.
func normalizePartToken(value string) string {
	if n, err := strconv.Atoi(value); err == nil {
		if n > 0 {
			return strconv.Itoa(n)
		}
		return ""
	}

	if n := romanToNumber(value); n > 0 {
		return strconv.Itoa(n)
	}
	return ""
}
