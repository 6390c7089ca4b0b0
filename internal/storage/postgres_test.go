/**
 * Storage Tests
 */

package storage

import "testing"

func TestSanitizeConfidence(t *testing.T) {
	testCases := []struct {
		name string
		in   float64
		want float64
	}{
		{"clamps negative", -0.5, 0},
		{"clamps above one", 1.7, 1},
		{"exact zero", 0, 0},
		{"exact one", 1, 1},
		{"rounds float noise", 0.9632000000000001, 0.9632},
		{"rounds to four decimals", 0.123456, 0.1235},
		{"short value unchanged", 0.25, 0.25},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeConfidence(tc.in); got != tc.want {
				t.Errorf("sanitizeConfidence(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
