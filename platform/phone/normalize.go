// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var defaultRegion = "NG"

// SetDefaultRegion sets the ISO region used to parse nationally formatted
// numbers. Called once at startup, before any traffic is served.
func SetDefaultRegion(region string) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region != "" {
		defaultRegion = region
	}
}

// Channel identifies the transport an inbound message arrived on.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Inbound is the normalized form of a raw provider payload.
type Inbound struct {
	Phone             string
	Channel           Channel
	Body              string
	ProviderMessageID string
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// ParseInbound normalizes a provider webhook payload. A "whatsapp:" prefix on
// the From field selects the whatsapp channel, anything else is sms.
func ParseInbound(from, body, providerMessageID string) Inbound {
	const waPrefix = "whatsapp:"

	channel := ChannelSMS
	raw := strings.TrimSpace(from)
	if len(raw) >= len(waPrefix) && strings.EqualFold(raw[:len(waPrefix)], waPrefix) {
		channel = ChannelWhatsApp
		raw = strings.TrimSpace(raw[len(waPrefix):])
	}

	return Inbound{
		Phone:             NormalizeE164(raw),
		Channel:           channel,
		Body:              strings.TrimSpace(body),
		ProviderMessageID: strings.TrimSpace(providerMessageID),
	}
}

// CountryFromPhone infers an ISO 3166-1 alpha-2 country code from the phone's
// calling code. Returns "" when the number cannot be parsed.
func CountryFromPhone(input string) string {
	number, err := phonenumbers.Parse(strings.TrimSpace(input), defaultRegion)
	if err != nil {
		return ""
	}
	region := phonenumbers.GetRegionCodeForNumber(number)
	if region == "ZZ" {
		return ""
	}
	return region
}
