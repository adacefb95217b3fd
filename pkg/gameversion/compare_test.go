// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gameversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		local    string
		remote   string
		expected Ordering
	}{
		{"equal", "1.2", "1.2", Equal},
		{"equal with v prefix", "v1.2", "1.2", Equal},
		{"equal with dotted v prefix", "V.1.0", "1.0", Equal},
		{"missing components count as zero", "1.2", "1.2.0", Equal},
		{"remote newer", "1.2", "1.3", Newer},
		{"numeric not lexicographic", "1.9", "1.10", Newer},
		{"remote older", "2.0", "1.9.9", Older},
		{"longer remote newer", "1.2", "1.2.1", Newer},
		{"empty local", "", "1.0", Unknown},
		{"empty remote", "1.0", "", Unknown},
		{"non numeric component", "1.0a", "1.0", Unknown},
		{"build against dotted", "12345", "1.0", Older},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Compare(tt.local, tt.remote))
		})
	}
}

func TestCompareReflexive(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"1.0", "1.2.3", "v2.0", "12345", "0.0.1"} {
		assert.Equal(t, Equal, Compare(v, v), "Compare(%q, %q)", v, v)
	}
}

func TestCompareAntisymmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"1.0", "1.1"},
		{"1.2", "1.2.5"},
		{"0.9", "1.0"},
		{"1.9", "1.10"},
	}

	for _, pair := range pairs {
		assert.Equal(t, Newer, Compare(pair[0], pair[1]))
		assert.Equal(t, Older, Compare(pair[1], pair[0]))
	}
}

func TestOrderingString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "newer", Newer.String())
	assert.Equal(t, "older", Older.String())
	assert.Equal(t, "equal", Equal.String())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.2.3", Normalize("v1.2.3"))
	assert.Equal(t, "1.2.3", Normalize("V. 1.2.3"))
	assert.Equal(t, "1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "", Normalize(""))
}
