package conversation

import (
	"strings"

	"ai-voice-bridge-service/internal/models"
)

// Keyword sets are matched by substring containment on lowercased text.
var (
	negativeKeywords = []string{"नहीं", "नही"}
	todayKeywords    = []string{"आज", "अभी"}
	laterKeywords    = []string{"कल", "तारीख", "बाद"}

	gratitudeMarkers = []string{
		"आपके समय के लिए धन्यवाद",
		"कॉल करने के लिए धन्यवाद",
		"धन्यवाद",
		"शुक्रिया",
		"thank you",
	}
	farewellMarkers = []string{
		"हमारा सपोर्ट स्पेशलिस्ट",
		"हमारा support specialist",
		"नमस्ते",
		"bye",
		"goodbye",
	}

	paymentQuestionKeywords = []string{"payment", "भुगतान", "पेमेंट", "आज ही", "अभी"}

	fillers = map[string]bool{
		"":     true,
		"...":  true,
		"…":    true,
		"ok":   true,
		"okay": true,
		"ओके":  true,
		"ओके।": true,
		"हम्म": true,
	}
)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// IsFiller reports whether text carries no substantive answer.
func IsFiller(text string) bool {
	return fillers[strings.ToLower(strings.TrimSpace(text))]
}

// ClassifyIntent maps a caller answer to a payment intent. The negative check
// runs first so "नहीं, आज नहीं" stays cannot_pay_now.
func ClassifyIntent(text string) models.PaymentIntent {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, negativeKeywords):
		return models.IntentCannotPayNow
	case containsAny(t, todayKeywords):
		return models.IntentPayToday
	case containsAny(t, laterKeywords):
		return models.IntentPayLater
	default:
		return models.IntentUnclear
	}
}

// IsClosingPhrase requires both a gratitude marker and a farewell marker;
// a greeting such as "नमस्ते" alone never ends the call.
func IsClosingPhrase(text string) bool {
	t := strings.ToLower(text)
	return containsAny(t, gratitudeMarkers) && containsAny(t, farewellMarkers)
}

// AsksAboutPayment is the keyword trigger used by PolicyKeyword.
func AsksAboutPayment(text string) bool {
	return containsAny(strings.ToLower(text), paymentQuestionKeywords)
}
