package version

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    Firmware
		wantErr bool
	}{
		{"2.1", Firmware{Major: 2, Minor: 1}, false},
		{"2.1.0", Firmware{Major: 2, Minor: 1}, false},
		{"0.9.12", Firmware{Major: 0, Minor: 9, Patch: 12}, false},
		{"2", Firmware{}, true},
		{"2.1.0.4", Firmware{}, true},
		{"2.x", Firmware{}, true},
		{"", Firmware{}, true},
		{"-1.0", Firmware{}, true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtract(t *testing.T) {
	cases := []struct {
		in        string
		want      Firmware
		wantToken string
		wantErr   bool
	}{
		{"2.1.0", Firmware{Major: 2, Minor: 1}, "2.1.0", false},
		{"romeo 2.1", Firmware{Major: 2, Minor: 1}, "2.1", false},
		{"board rev3 v1.4.2 build 77", Firmware{Major: 1, Minor: 4, Patch: 2}, "v1.4.2", false},
		{"no version here", Firmware{}, "", true},
		{"", Firmware{}, "", true},
	}
	for _, tc := range cases {
		got, token, err := Extract(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Extract(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Extract(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want || token != tc.wantToken {
			t.Errorf("Extract(%q) = %v, %q, want %v, %q", tc.in, got, token, tc.want, tc.wantToken)
		}
	}
}

func TestString(t *testing.T) {
	fw := Firmware{Major: 2, Minor: 1}
	if fw.String() != "2.1.0" {
		t.Errorf("String() = %q, want %q", fw.String(), "2.1.0")
	}
}

func TestCompareAndAtLeast(t *testing.T) {
	v21 := Firmware{Major: 2, Minor: 1}
	v210 := Firmware{Major: 2, Minor: 1, Patch: 0}
	v214 := Firmware{Major: 2, Minor: 1, Patch: 4}
	v30 := Firmware{Major: 3}

	if v21.Compare(v210) != 0 {
		t.Error("2.1 and 2.1.0 should compare equal")
	}
	if v21.Compare(v214) != -1 {
		t.Error("2.1 should order before 2.1.4")
	}
	if v30.Compare(v214) != 1 {
		t.Error("3.0 should order after 2.1.4")
	}

	if !v214.AtLeast(v21) {
		t.Error("2.1.4 should satisfy AtLeast(2.1)")
	}
	if v21.AtLeast(v30) {
		t.Error("2.1 should not satisfy AtLeast(3.0)")
	}
	if !v21.AtLeast(v210) {
		t.Error("equal versions should satisfy AtLeast")
	}
}
