package otp

import "testing"

func TestMaskIdentity(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"+15550000", "+155***00"},
		{"+15551234567", "+155******67"},
		{"1234567", "1234*67"},
		{"123456", "******"},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := MaskIdentity(tc.in); got != tc.want {
			t.Errorf("MaskIdentity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
