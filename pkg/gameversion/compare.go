// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"regexp"
	"strconv"
	"strings"
)

// Ordering describes how a remote version relates to the local one.
type Ordering int

const (
	// Unknown means either input was empty or failed to parse.
	Unknown Ordering = iota
	// Newer means the remote version is newer than the local one.
	Newer
	// Older means the remote version is older than the local one.
	Older
	// Equal means both versions are numerically identical.
	Equal
)

func (o Ordering) String() string {
	switch o {
	case Newer:
		return "newer"
	case Older:
		return "older"
	case Equal:
		return "equal"
	default:
		return "unknown"
	}
}

var versionPrefix = regexp.MustCompile(`^[vV]\.?\s*`)

// Normalize strips a leading "v"/"V" prefix from a version string.
func Normalize(version string) string {
	if version == "" {
		return ""
	}
	return strings.TrimSpace(versionPrefix.ReplaceAllString(version, ""))
}

// Compare orders two dotted version strings. Components are compared
// numerically position by position, missing trailing components count as 0.
// Returns Unknown when either input is empty or a component is not numeric.
func Compare(local, remote string) Ordering {
	if local == "" || remote == "" {
		return Unknown
	}

	localParts, ok := splitNumeric(Normalize(local))
	if !ok {
		return Unknown
	}
	remoteParts, ok := splitNumeric(Normalize(remote))
	if !ok {
		return Unknown
	}

	maxLen := max(len(localParts), len(remoteParts))
	for i := 0; i < maxLen; i++ {
		l, r := 0, 0
		if i < len(localParts) {
			l = localParts[i]
		}
		if i < len(remoteParts) {
			r = remoteParts[i]
		}
		if r > l {
			return Newer
		}
		if r < l {
			return Older
		}
	}

	return Equal
}

func splitNumeric(version string) ([]int, bool) {
	parts := strings.Split(version, ".")
	numbers := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		numbers[i] = n
	}
	return numbers, true
}
