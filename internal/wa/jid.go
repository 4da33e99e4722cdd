package wa

import "strings"

const (
	UserServer      = "s.whatsapp.net"
	GroupServer     = "g.us"
	StatusBroadcast = "status@broadcast"
)

// NormalizeJID strips the device suffix from a jid: "user:12@server" becomes
// "user@server". Jids without a device part are returned unchanged.
func NormalizeJID(jid string) string {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return ""
	}
	at := strings.LastIndexByte(jid, '@')
	if at < 0 {
		return jid
	}
	user, server := jid[:at], jid[at+1:]
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		user = user[:colon]
	}
	return user + "@" + server
}

// IsGroup reports whether jid addresses a group chat.
func IsGroup(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}

// IsUser reports whether jid addresses a user account.
func IsUser(jid string) bool {
	return strings.HasSuffix(jid, "@"+UserServer)
}

// User returns the part of jid before '@' with any device suffix removed.
func User(jid string) string {
	jid = NormalizeJID(jid)
	if at := strings.LastIndexByte(jid, '@'); at >= 0 {
		return jid[:at]
	}
	return jid
}

// PhoneJID turns a phone number in any common notation ("+226 51-46", "22651@s.whatsapp.net")
// into a user jid made of its digits only. It returns "" when no digit is present.
func PhoneJID(number string) string {
	number = User(number)
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "@" + UserServer
}
