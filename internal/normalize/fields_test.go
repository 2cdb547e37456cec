package normalize

import "testing"

func TestNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"two people", 2, true},
		{"we are 4", 4, true},
		{"Seventeen guests", 17, true},
		{"a table for twelve please", 12, true},
		{"just EIGHT of us", 8, true},
		{"lots of us", 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("Number(%q) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"jane@example.com", "j.doe+booking@mail.example.co.uk", " bob@my-host.io "}
	invalid := []string{"", "jane", "jane@example", "jane@.com", "jane@example.c", "@example.com"}
	for _, s := range valid {
		if !ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = true", s)
		}
	}
}

func TestEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"My email is Jane.Doe@Example.COM, thanks", "jane.doe@example.com", true},
		{"send it to bob@test.io.", "bob@test.io", true},
		{"jane dot doe at example dot com", "jane.doe@example.com", true},
		{"no email please", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Email(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("Email(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"7 PM", "19:00", true},
		{"7:30pm", "19:30", true},
		{"7.30 p.m.", "19:30", true},
		{"19:00", "19:00", true},
		{"19h30", "19:30", true},
		{"11am", "11:00", true},
		{"12 am", "00:00", true},
		{"noon", "12:00", true},
		{"at 7", "19:00", true},
		{"7:30", "19:30", true},
		{"7:30 please", "19:30", true},
		{"07:30", "07:30", true},
		{"8 in the evening", "20:00", true},
		{"25:00", "", false},
		{"13 pm", "", false},
		{"whenever", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Time(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("Time(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
