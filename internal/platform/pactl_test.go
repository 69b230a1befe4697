package platform

import "testing"

const sampleSinkInputs = `[
  {
    "index": 58,
    "corked": false,
    "mute": false,
    "volume": {
      "front-left": {"value": 65536, "value_percent": "100%", "db": "0.00 dB"},
      "front-right": {"value": 32768, "value_percent": "50%", "db": "-18.06 dB"}
    },
    "properties": {
      "application.name": "Firefox",
      "application.process.id": "4242",
      "application.process.binary": "firefox"
    }
  },
  {
    "index": 61,
    "corked": true,
    "mute": true,
    "volume": {"mono": {"value": 0}},
    "properties": {"application.process.id": "77"}
  },
  {
    "index": 70,
    "corked": false,
    "mute": false,
    "volume": {},
    "properties": {"application.name": "system"}
  }
]`

func TestParseSinkInputs(t *testing.T) {
	got, err := parseSinkInputs([]byte(sampleSinkInputs))
	if err != nil {
		t.Fatalf("parseSinkInputs() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sink inputs, got %d", len(got))
	}

	ff := got[0]
	if ff.Index != 58 || ff.PID != 4242 || ff.Binary != "firefox" {
		t.Fatalf("unexpected first entry: %+v", ff)
	}
	if ff.Volume < 0.74 || ff.Volume > 0.76 {
		t.Fatalf("expected averaged volume 0.75, got %v", ff.Volume)
	}
	if ff.Muted || ff.Corked {
		t.Fatalf("expected first entry playing and unmuted: %+v", ff)
	}

	second := got[1]
	if !second.Muted || !second.Corked || second.Volume != 0 {
		t.Fatalf("unexpected second entry: %+v", second)
	}
}

func TestParseSinkInputs_InvalidJSON(t *testing.T) {
	if _, err := parseSinkInputs([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPulseVolumeArg(t *testing.T) {
	tests := []struct {
		level float32
		want  string
	}{
		{0, "0"},
		{1, "65536"},
		{0.5, "32768"},
		{1.5, "65536"},
		{-1, "0"},
	}
	for _, tt := range tests {
		if got := pulseVolumeArg(tt.level); got != tt.want {
			t.Fatalf("pulseVolumeArg(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}
