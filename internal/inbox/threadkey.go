// Package inbox derives stable conversation keys for the unified inbox.
// Messages from both directions of the same conversation must land in the
// same thread, so the key is computed from normalized addressing rather
// than provider identifiers.
package inbox

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// ThreadKey returns a deterministic key for a conversation. SMS threads key
// on the peer number alone; email threads key on peer plus normalized
// subject so distinct topics with the same contact stay separate.
func ThreadKey(channel, peer, subject string) string {
	var material string
	switch channel {
	case ChannelEmail:
		material = channel + "|" + NormalizeEmail(peer) + "|" + NormalizeSubject(subject)
	default:
		material = channel + "|" + NormalizePhone(peer)
	}

	sum := sha1.Sum([]byte(material))
	return hex.EncodeToString(sum[:])
}

// NormalizePhone reduces a phone number to a canonical digit string. A
// leading + is preserved; US 10-digit numbers gain the +1 prefix so provider
// formats like "(555) 000-1111" and "+15550001111" agree.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if strings.HasPrefix(digits, "+") {
		return digits
	}
	if len(digits) == 10 {
		return "+1" + digits
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits
	}
	return digits
}

// NormalizeEmail lowercases and trims an address, dropping any display name.
func NormalizeEmail(addr string) string {
	addr = strings.TrimSpace(addr)
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.LastIndex(addr, ">"); end > start {
			addr = addr[start+1 : end]
		}
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

// NormalizeSubject strips reply and forward prefixes so "Re: Quote" and
// "Quote" thread together.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		trimmed := s
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(lower, prefix) {
				trimmed = strings.TrimSpace(s[len(prefix):])
				break
			}
		}
		if trimmed == s {
			break
		}
		s = trimmed
	}
	return strings.ToLower(s)
}
