package scheduler

import "testing"

func TestCronSpec(t *testing.T) {
	cases := map[string]string{
		"06:00": "0 6 * * *",
		"00:00": "0 0 * * *",
		"23:59": "59 23 * * *",
		"13:05": "5 13 * * *",
	}
	for in, want := range cases {
		got, err := CronSpec(in)
		if err != nil {
			t.Fatalf("CronSpec(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("CronSpec(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCronSpecRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "6am", "25:00", "06:60", "6:0:0"} {
		if _, err := CronSpec(in); err == nil {
			t.Fatalf("CronSpec(%q) should fail", in)
		}
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	if _, err := New(nil, "06:00", "Not/AZone", nil); err == nil {
		t.Fatalf("expected timezone error")
	}
}
