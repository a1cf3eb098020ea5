package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/whalix/dashboard-server/internal/errors"
	"github.com/whalix/dashboard-server/internal/model"
)

const maxPreviewMenuItems = 3

var (
	highIntentKeywords = []string{
		"acheter", "commander", "prendre", "veux", "prix", "combien",
		"réserver", "booking", "disponible", "stock", "livraison",
	}
	mediumIntentKeywords = []string{
		"intéressé", "peut-être", "j'aime", "pourquoi", "comment",
		"info", "renseignement", "détail",
	}
)

type MenuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type ReplyPreview struct {
	Reply      string       `json:"reply"`
	Confidence float64      `json:"confidence"`
	Intent     model.Intent `json:"intent"`
}

// AnalyzeIntent classifies a customer message by purchase intent.
func AnalyzeIntent(text string) model.Intent {
	lower := strings.ToLower(text)

	for _, keyword := range highIntentKeywords {
		if strings.Contains(lower, keyword) {
			return model.IntentHigh
		}
	}
	for _, keyword := range mediumIntentKeywords {
		if strings.Contains(lower, keyword) {
			return model.IntentMedium
		}
	}
	return model.IntentLow
}

// ReplyPreviewer drafts the automatic reply a customer message would get.
type ReplyPreviewer struct {
	feed *LiveFeedStore
}

func NewReplyPreviewer(feed *LiveFeedStore) *ReplyPreviewer {
	return &ReplyPreviewer{feed: feed}
}

func (p *ReplyPreviewer) Preview(message string, menu []MenuItem) ReplyPreview {
	lower := strings.ToLower(message)
	preview := ReplyPreview{Intent: AnalyzeIntent(message)}

	switch {
	case containsAny(lower, "bonjour", "salut"):
		preview.Reply = "Bonjour ! 👋 Bienvenue chez nous. Comment puis-je vous aider aujourd'hui ?"
		preview.Confidence = 0.95
	case containsAny(lower, "prix", "menu"):
		if len(menu) > 0 {
			preview.Reply = menuReply(menu)
			preview.Confidence = 0.90
		} else {
			preview.Reply = "Notre menu est en cours de mise à jour. Contactez-nous directement pour plus d'informations."
			preview.Confidence = 0.70
		}
	case containsAny(lower, "ouvert", "horaire"):
		preview.Reply = "🕐 HORAIRES D'OUVERTURE :\n\n📍 Lundi - Samedi : 8h - 22h\n📍 Dimanche : 10h - 20h\n\nNous sommes actuellement ouverts !"
		preview.Confidence = 0.95
	case strings.Contains(lower, "livr"):
		preview.Reply = "🚗 LIVRAISON DISPONIBLE !\n\n✅ Zone : 5km autour du restaurant\n⏱️ Délai : 30-45 minutes\n💵 Frais : 1000 FCFA\n\nPour commander, choisissez vos plats !"
		preview.Confidence = 0.90
	case strings.Contains(lower, "command"):
		preview.Reply = "📝 POUR COMMANDER :\n\n1️⃣ Choisissez vos plats\n2️⃣ Confirmez votre adresse\n3️⃣ Choisissez le mode de paiement\n\nQue souhaitez-vous commander ?"
		preview.Confidence = 0.85
	default:
		preview.Reply = "Merci pour votre message ! 😊 Un de nos agents va vous répondre rapidement. En attendant, vous pouvez consulter notre menu ou nos horaires."
		preview.Confidence = 0.60
	}

	return preview
}

// AutoReply drafts a reply for a feed message and marks it answered.
func (p *ReplyPreviewer) AutoReply(ctx context.Context, tenantID, messageID string, menu []MenuItem) (*ReplyPreview, error) {
	messages, err := p.feed.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if msg.ID != messageID {
			continue
		}
		preview := p.Preview(msg.Text, menu)
		if err := p.feed.MarkReplied(ctx, tenantID, messageID, preview.Reply); err != nil {
			return nil, err
		}
		return &preview, nil
	}

	return nil, errors.NotFound("Message")
}

func menuReply(menu []MenuItem) string {
	if len(menu) > maxPreviewMenuItems {
		menu = menu[:maxPreviewMenuItems]
	}

	lines := make([]string, len(menu))
	for i, item := range menu {
		lines[i] = fmt.Sprintf("%d. %s - %s FCFA", i+1, item.Name, formatAmount(item.Price))
	}

	return "📋 NOTRE MENU :\n\n" + strings.Join(lines, "\n") + "\n\nPour commander, envoyez le numéro du plat !"
}

// formatAmount renders whole FCFA amounts with space-separated thousands.
func formatAmount(amount float64) string {
	digits := strconv.FormatInt(int64(amount), 10)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

func containsAny(s string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
