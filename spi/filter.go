package spi

// FilterRule is the passthrough filter rule of spec.md §3: a matching rule
// rewrites the forwarded opcode to ForceOpcode, or drops the command if
// ForceOpcode is Invalid.
type FilterRule struct {
	Valid       bool
	ForceOpcode Opcode
	MatchValue  byte
	MatchMask   byte
}

// Filter holds the 16-slot ordered rule table of spec.md §4.5.
type Filter struct {
	rules [16]FilterRule
}

// SetRule installs rule at slot, 0-15.
func (f *Filter) SetRule(slot int, rule FilterRule) {
	f.rules[slot] = rule
}

// Evaluate returns the opcode to forward downstream for a host-issued
// opcode, and whether any rule matched. The first valid rule whose
// MatchValue equals opcode&MatchMask wins; ForceOpcode == Invalid means the
// command is blocked even though a rule matched.
func (f *Filter) Evaluate(opcode Opcode) (Opcode, bool) {
	for _, r := range f.rules {
		if !r.Valid {
			continue
		}
		if byte(opcode)&r.MatchMask == r.MatchValue {
			if r.ForceOpcode == Invalid {
				return Invalid, false
			}
			return r.ForceOpcode, true
		}
	}
	return Invalid, false
}

// FourByteReadRules is the fixed passthrough rule table of spec.md §6.2 for
// a 4-byte-address configuration: it rewrites every read-family opcode
// prefix to its canonical form.
func FourByteReadRules() [7]FilterRule {
	return [7]FilterRule{
		{Valid: true, MatchValue: 0x00, MatchMask: 0xf8, ForceOpcode: NormalRead},         // 0000_0XXX
		{Valid: true, MatchValue: 0x08, MatchMask: 0xfc, ForceOpcode: FastRead},           // 0000_10XX
		{Valid: true, MatchValue: 0x0c, MatchMask: 0xfc, ForceOpcode: FastRead4B},         // 0000_11XX
		{Valid: true, MatchValue: 0x10, MatchMask: 0xf0, ForceOpcode: NormalRead},         // 0001_XXXX
		{Valid: true, MatchValue: 0x20, MatchMask: 0xe0, ForceOpcode: FastReadDualOutput}, // 001X_XXXX
		{Valid: true, MatchValue: 0x40, MatchMask: 0xc0, ForceOpcode: NormalRead},         // 01XX_XXXX
		{Valid: true, MatchValue: 0x80, MatchMask: 0x80, ForceOpcode: NormalRead},         // 1XXX_XXXX
	}
}

// InstallFourByteReadRules populates f's first 7 slots with
// FourByteReadRules, leaving the remainder invalid.
func (f *Filter) InstallFourByteReadRules() {
	rules := FourByteReadRules()
	for i, r := range rules {
		f.rules[i] = r
	}
	for i := len(rules); i < len(f.rules); i++ {
		f.rules[i] = FilterRule{}
	}
}
