package manifest

import "testing"

func TestIdentity_Canonical(t *testing.T) {
	id := Identity{Name: "snappy", Version: "1.0.5", Platform: "linux"}

	if got := id.Canonical(); got != "snappy-1.0.5-linux" {
		t.Errorf("Canonical() = %q", got)
	}
	if got := id.ManifestFile(); got != "snappy-1.0.5-linux.json" {
		t.Errorf("ManifestFile() = %q", got)
	}
}

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      Identity
		wantErr bool
	}{
		{"valid", Identity{"snappy", "1.0.5", "linux"}, false},
		{"missing name", Identity{"", "1.0.5", "linux"}, true},
		{"missing version", Identity{"snappy", "", "linux"}, true},
		{"missing platform", Identity{"snappy", "1.0.5", ""}, true},
		{"separator in name", Identity{"snappy/evil", "1.0.5", "linux"}, true},
		{"traversal in platform", Identity{"snappy", "1.0.5", ".."}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseManifestName(t *testing.T) {
	tests := []struct {
		in      string
		want    Identity
		wantErr bool
	}{
		{"snappy-1.0.5-linux.json", Identity{"snappy", "1.0.5", "linux"}, false},
		{"snappy-1.0.5-linux", Identity{"snappy", "1.0.5", "linux"}, false},
		{"lib-snappy-1.0.5-linux.json", Identity{"lib-snappy", "1.0.5", "linux"}, false},
		{"snappy-linux.json", Identity{}, true},
		{"snappy.json", Identity{}, true},
		{"-1.0-linux", Identity{}, true},
		{"snappy--linux", Identity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseManifestName(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseManifestName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseManifestName(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if NormalizeManifestName(tt.in) != got.ManifestFile() {
				t.Errorf("round trip mismatch: %q vs %q", NormalizeManifestName(tt.in), got.ManifestFile())
			}
		})
	}
}
