package addr

import "testing"

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"127.0.0.1:8080",
		"0.0.0.0:0",
		"10.0.0.1:65535",
	}
	for _, c := range cases {
		a, err := FromString(c)
		if err != nil {
			t.Fatalf("FromString(%q): %v", c, err)
		}
		if got := a.String(); got != c {
			t.Errorf("round trip %q -> %q", c, got)
		}
	}
}

func TestAnyIsWildcard(t *testing.T) {
	a := Any(9001)
	if !a.IsWildcard() {
		t.Errorf("Any(9001) should be wildcard")
	}
	if a.Port() != 9001 {
		t.Errorf("port = %d, want 9001", a.Port())
	}
}

func TestInvalidPort(t *testing.T) {
	if _, err := FromString("127.0.0.1:99999"); err == nil {
		t.Errorf("expected error for out-of-range port")
	}
}

func TestInvalidHost(t *testing.T) {
	if _, err := FromString("not-an-ip:80"); err == nil {
		t.Errorf("expected error for invalid host")
	}
}

func TestOrdering(t *testing.T) {
	a, _ := FromString("10.0.0.1:10")
	b, _ := FromString("10.0.0.1:20")
	c, _ := FromString("10.0.0.2:1")
	if !a.Less(b) {
		t.Errorf("expected a < b on port")
	}
	if !b.Less(c) {
		t.Errorf("expected b < c on host")
	}
	if a.Equal(b) {
		t.Errorf("a should not equal b")
	}
}
