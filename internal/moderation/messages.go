package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/nekodylan/OVL-MD/internal/core"
	"github.com/nekodylan/OVL-MD/internal/wa"
)

// notices holds the French texts of one escalation policy. Every func receives the
// "@user" mention.
type notices struct {
	deleted func(u string) string
	kicked  func(u string) string
	warned  func(u string, n int) string
	removed func(u string) string
}

var policyNotices = map[core.PolicyKind]notices{
	core.PolicyLink: {
		deleted: func(u string) string { return u + ", les liens ne sont pas autorisés ici." },
		kicked:  func(u string) string { return u + " a été retiré pour avoir envoyé un lien." },
		warned: func(u string, n int) string {
			return fmt.Sprintf("%s, avertissement %d/%d pour avoir envoyé un lien.", u, n, core.MaxWarnings)
		},
		removed: func(u string) string { return u + " a été retiré après 3 avertissements." },
	},
	core.PolicyTag: {
		deleted: func(u string) string { return u + ", l'envoi de tags multiples est interdit dans ce groupe." },
		kicked:  func(u string) string { return u + " a été retiré du groupe pour avoir mentionné plus de 30 membres." },
		warned: func(u string, n int) string {
			if n == 1 {
				return u + ", vous avez reçu un avertissement (1/3) pour avoir mentionné plus de 30 membres."
			}
			return fmt.Sprintf("%s, avertissement %d/%d pour avoir mentionné plus de 30 membres.", u, n, core.MaxWarnings)
		},
		removed: func(u string) string { return u + " a été retiré du groupe après 3 avertissements." },
	},
	core.PolicyBot: {
		deleted: func(u string) string { return u + ", les bots ne sont pas autorisés ici." },
		kicked:  func(u string) string { return u + " a été retiré pour avoir utilisé un bot." },
		warned: func(u string, n int) string {
			return fmt.Sprintf("%s, avertissement %d/%d pour utilisation de bot.", u, n, core.MaxWarnings)
		},
		removed: func(u string) string { return u + " a été retiré après 3 avertissements." },
	},
}

// Mention renders a jid as the "@number" form the client highlights.
func Mention(jid string) string {
	return "@" + wa.User(jid)
}

func welcomeText(member string, meta wa.GroupMetadata) string {
	subject := meta.Subject
	if subject == "" {
		subject = "Groupe inconnu"
	}
	desc := meta.Desc
	if desc == "" {
		desc = "Aucune description"
	}
	return fmt.Sprintf("*🎉Bienvenue %s🎉*\n*👥Groupe: %s*\n*🔆Membres: #%d*\n*📃Description:* %s",
		Mention(member), subject, len(meta.Participants), desc)
}

func goodbyeText(member string) string {
	return "👋Au revoir " + Mention(member)
}

func promoteRevertedText(member string) string {
	return "🚫Promotion non autorisée: " + Mention(member) + " a été rétrogradé."
}

func demoteRevertedText(member string) string {
	return "🚫Rétrogradation non autorisée: " + Mention(member) + " a été promu à nouveau."
}

// antiDeleteHeader describes who sent and who deleted a message. provenance is the
// group subject line or the direct chat line.
func antiDeleteHeader(sender, deleter, provenance string, at time.Time) string {
	var b strings.Builder
	b.WriteString("✨ OVL-MD ANTI-DELETE MSG✨\n")
	b.WriteString("👤 Envoyé par : " + Mention(sender) + "\n")
	b.WriteString("❌ Supprimé par : " + Mention(deleter) + "\n")
	b.WriteString("⏰ Heure de suppression : " + at.UTC().Format("15:04:05") + "\n")
	b.WriteString(provenance)
	return b.String()
}
