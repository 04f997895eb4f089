package manifest

import (
	"encoding/json"
	"os"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"0755", 0755, false},
		{"755", 0755, false},
		{"0o755", 0755, false},
		{"0644", 0644, false},
		{"04755", 04755, false},
		{"0", 0, false},
		{"", 0, true},
		{"0999", 0, true},
		{"017777", 0, true},
		{"rwxr-xr-x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMode(%q) = %o, want %o", tt.in, got, tt.want)
			}
		})
	}
}

func TestMode_LeadingZeroFormsCompareEqual(t *testing.T) {
	a, _ := ParseMode("0755")
	b, _ := ParseMode("755")
	if a != b {
		t.Errorf("0755 and 755 should be the same mode, got %o and %o", a, b)
	}
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		in   Mode
		want string
	}{
		{0755, "0755"},
		{0644, "0644"},
		{04755, "04755"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Mode(%o).String() = %q, want %q", uint32(tt.in), got, tt.want)
		}
	}
}

func TestMode_JSON(t *testing.T) {
	t.Run("marshal as octal string", func(t *testing.T) {
		data, err := json.Marshal(Mode(0750))
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(data) != `"0750"` {
			t.Errorf("Marshal = %s", data)
		}
	})

	t.Run("unmarshal string", func(t *testing.T) {
		var m Mode
		if err := json.Unmarshal([]byte(`"0700"`), &m); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if m != 0700 {
			t.Errorf("got %o", m)
		}
	})

	t.Run("unmarshal number as bitmask", func(t *testing.T) {
		var m Mode
		if err := json.Unmarshal([]byte(`493`), &m); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if m != 0755 {
			t.Errorf("got %o, want 755", m)
		}
	})

	t.Run("reject garbage", func(t *testing.T) {
		var m Mode
		if err := json.Unmarshal([]byte(`true`), &m); err == nil {
			t.Error("expected error for boolean mode")
		}
	})
}

func TestMode_FileModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{0755, 0600, 04755, 02755, 01777} {
		if got := ModeOf(m.FileMode()); got != m {
			t.Errorf("ModeOf(FileMode(%o)) = %o", uint32(m), uint32(got))
		}
	}

	if got := ModeOf(os.ModeDir | 0755); got != 0755 {
		t.Errorf("type bits should be ignored, got %o", uint32(got))
	}
}
