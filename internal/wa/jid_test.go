package wa

import "testing"

func TestNormalizeJID(t *testing.T) {
	cases := map[string]string{
		"22651463203:12@s.whatsapp.net": "22651463203@s.whatsapp.net",
		"22651463203@s.whatsapp.net":    "22651463203@s.whatsapp.net",
		"1203630@g.us":                  "1203630@g.us",
		" 42:3@s.whatsapp.net ":         "42@s.whatsapp.net",
		"":                              "",
		"nojid":                         "nojid",
	}
	for in, want := range cases {
		if got := NormalizeJID(in); got != want {
			t.Fatalf("NormalizeJID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPhoneJID(t *testing.T) {
	cases := map[string]string{
		"+226 51-46-32-03":              "22651463203@s.whatsapp.net",
		"22651463203:4@s.whatsapp.net":  "22651463203@s.whatsapp.net",
		"abc":                           "",
	}
	for in, want := range cases {
		if got := PhoneJID(in); got != want {
			t.Fatalf("PhoneJID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGroupAdmins(t *testing.T) {
	meta := GroupMetadata{Participants: []Participant{
		{ID: "1:2@s.whatsapp.net", Admin: "superadmin"},
		{ID: "2@s.whatsapp.net"},
		{ID: "3@s.whatsapp.net", Admin: "admin"},
	}}
	admins := meta.Admins()
	if len(admins) != 2 || admins[0] != "1@s.whatsapp.net" || admins[1] != "3@s.whatsapp.net" {
		t.Fatalf("unexpected admins %v", admins)
	}
	if !IsGroup("1203630@g.us") || IsGroup("1@s.whatsapp.net") {
		t.Fatalf("IsGroup misclassified")
	}
}
