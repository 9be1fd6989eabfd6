package config

import "testing"

func TestBufferSizeRoundsUp(t *testing.T) {
	cfg := Config{SamplingRate: 3, BufferSizeS: 2.5}
	if got := cfg.BufferSize(); got != 8 {
		t.Fatalf("BufferSize() = %d, want 8", got)
	}
}

func TestBufferSizeExact(t *testing.T) {
	cfg := Config{SamplingRate: 2, BufferSizeS: 5}
	if got := cfg.BufferSize(); got != 10 {
		t.Fatalf("BufferSize() = %d, want 10", got)
	}
}

func TestListify(t *testing.T) {
	cases := map[string][]string{
		"":          nil,
		"a":         {"a"},
		"a,b,c":     {"a", "b", "c"},
		"a, b , c ": {"a", "b", "c"},
	}
	for in, want := range cases {
		got := listify(in)
		if len(got) != len(want) {
			t.Fatalf("listify(%q) = %v, want %v", in, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("listify(%q)[%d] = %q, want %q", in, i, got[i], want[i])
			}
		}
	}
}

func TestResolveIPLiteralAndLocalhost(t *testing.T) {
	cfg := &Config{IP: "10.0.0.5"}
	resolveIP(cfg)
	if cfg.IP != "10.0.0.5" {
		t.Fatalf("resolveIP(10.0.0.5) = %q, want the literal IP unchanged", cfg.IP)
	}

	cfg = &Config{IP: "localhost"}
	resolveIP(cfg)
	if cfg.IP != "127.0.0.1" {
		t.Fatalf("resolveIP(localhost) = %q, want 127.0.0.1", cfg.IP)
	}
}

func TestPublisherURLDisabled(t *testing.T) {
	cfg := Config{RunPublisher: false, IP: "127.0.0.1", PortPublisher: 6000}
	if got := cfg.PublisherURL(); got != "" {
		t.Fatalf("PublisherURL() = %q, want empty when disabled", got)
	}
}

func TestPublisherURLEnabled(t *testing.T) {
	cfg := Config{RunPublisher: true, IP: "127.0.0.1", PortPublisher: 6000}
	if got := cfg.PublisherURL(); got != "tcp://127.0.0.1:6000" {
		t.Fatalf("PublisherURL() = %q, want tcp://127.0.0.1:6000", got)
	}
}
