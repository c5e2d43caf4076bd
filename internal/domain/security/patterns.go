package security

import (
	"regexp"
	"strings"
)

// PatternCategory identifies one class of suspicious phrasing.
type PatternCategory string

const (
	PatternPaymentUrgency       PatternCategory = "payment_urgency"
	PatternAccountStatus        PatternCategory = "account_status"
	PatternAccountVerification  PatternCategory = "account_verification"
	PatternCredentialHarvesting PatternCategory = "credential_harvesting"
	PatternIdentityData         PatternCategory = "identity_data"
	PatternPhishingDelivery     PatternCategory = "phishing_delivery"
	PatternSocialEngineering    PatternCategory = "social_engineering"
	PatternUnauthorizedAccess   PatternCategory = "unauthorized_access"
)

// fraudPatterns is the static pattern library. Order matters: when an alert
// is raised, the first matched category decides the fraud type.
var fraudPatterns = []struct {
	Category PatternCategory
	Pattern  *regexp.Regexp
}{
	{PatternPaymentUrgency, regexp.MustCompile(`(?i)(urgent|immediate|emergency).*(payment|transfer|deposit)`)},
	{PatternAccountStatus, regexp.MustCompile(`(?i)account.*(suspended|blocked|frozen)`)},
	{PatternAccountVerification, regexp.MustCompile(`(?i)(verify|confirm|validate).*(account|identity)`)},
	{PatternCredentialHarvesting, regexp.MustCompile(`(?i)(verify|confirm|update|provide).*(password|pin|credentials?|bank account|card number)`)},
	{PatternIdentityData, regexp.MustCompile(`(?i)(ssn|social security|tax id|mother'?s maiden name|date of birth)`)},
	{PatternPhishingDelivery, regexp.MustCompile(`(?i)(click|open|download).*(link|attachment)`)},
	{PatternSocialEngineering, regexp.MustCompile(`(?i)(urgent|emergency|immediately|act now|right away|asap|final (notice|warning)|last chance|don'?t tell anyone)`)},
	{PatternUnauthorizedAccess, regexp.MustCompile(`(?i)(admin|administrator|root|superuser).*(access|login|privileges?)`)},
}

// categoryFraudType maps a matched category to the fraud type an alert
// carries.
var categoryFraudType = map[PatternCategory]FraudType{
	PatternPaymentUrgency:       FraudPayment,
	PatternAccountStatus:        FraudPhishing,
	PatternAccountVerification:  FraudPhishing,
	PatternCredentialHarvesting: FraudPhishing,
	PatternIdentityData:         FraudIdentityTheft,
	PatternPhishingDelivery:     FraudPhishing,
	PatternSocialEngineering:    FraudSocialEngineering,
	PatternUnauthorizedAccess:   FraudUnauthorizedAccess,
}

// DetectPatterns runs the pattern library over free text and returns the
// matched categories in library order. Pure; no I/O.
func DetectPatterns(text string) []PatternCategory {
	if text == "" {
		return nil
	}
	var matched []PatternCategory
	for _, p := range fraudPatterns {
		if p.Pattern.MatchString(text) {
			matched = append(matched, p.Category)
		}
	}
	return matched
}

// FraudTypeFor returns the fraud type implied by the first matched category,
// defaulting to social engineering when nothing specific matched.
func FraudTypeFor(categories []PatternCategory) FraudType {
	for _, c := range categories {
		if ft, ok := categoryFraudType[c]; ok {
			return ft
		}
	}
	return FraudSocialEngineering
}

// UrgencyBonus scores urgency wording in an utterance: urgent +0.10,
// emergency +0.20, immediate +0.15, cumulative.
func UrgencyBonus(text string) float64 {
	lower := strings.ToLower(text)
	bonus := 0.0
	if strings.Contains(lower, "urgent") {
		bonus += 0.10
	}
	if strings.Contains(lower, "emergency") {
		bonus += 0.20
	}
	if strings.Contains(lower, "immediate") {
		bonus += 0.15
	}
	return bonus
}
