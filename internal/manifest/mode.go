package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mode holds Unix permission bits, including setuid, setgid and sticky.
// It is compared numerically; the octal string form only exists at the
// JSON boundary.
type Mode uint32

// ModeMask covers every bit a Mode may carry.
const ModeMask Mode = 07777

const (
	modeSetuid Mode = 04000
	modeSetgid Mode = 02000
	modeSticky Mode = 01000
)

// ParseMode parses an octal permission string. "0755", "755", "0o755" and
// "0" are all accepted.
func ParseMode(s string) (Mode, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0o"), "0O")
	if trimmed == "" {
		return 0, fmt.Errorf("invalid mode %q: empty", s)
	}

	v, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", s, err)
	}
	m := Mode(v)
	if m&^ModeMask != 0 {
		return 0, fmt.Errorf("invalid mode %q: bits outside %o", s, ModeMask)
	}
	return m, nil
}

// ModeOf extracts the permission bits of an os.FileMode.
func ModeOf(fm os.FileMode) Mode {
	m := Mode(fm.Perm())
	if fm&os.ModeSetuid != 0 {
		m |= modeSetuid
	}
	if fm&os.ModeSetgid != 0 {
		m |= modeSetgid
	}
	if fm&os.ModeSticky != 0 {
		m |= modeSticky
	}
	return m
}

// FileMode converts m to an os.FileMode suitable for chmod.
func (m Mode) FileMode() os.FileMode {
	fm := os.FileMode(m & 0777)
	if m&modeSetuid != 0 {
		fm |= os.ModeSetuid
	}
	if m&modeSetgid != 0 {
		fm |= os.ModeSetgid
	}
	if m&modeSticky != 0 {
		fm |= os.ModeSticky
	}
	return fm
}

// String renders the mode with a leading zero ("0755", "04755"), the form
// written by manifest generation.
func (m Mode) String() string {
	if m == 0 {
		return "0"
	}
	return "0" + strconv.FormatUint(uint64(m), 8)
}

// MarshalJSON writes the mode as an octal string.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts an octal string or a JSON number holding the
// numeric bitmask.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseMode(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	var n uint32
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid mode %s: must be an octal string or number", string(data))
	}
	if Mode(n)&^ModeMask != 0 {
		return fmt.Errorf("invalid mode %d: bits outside %o", n, ModeMask)
	}
	*m = Mode(n)
	return nil
}
