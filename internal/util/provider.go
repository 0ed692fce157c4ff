package util

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sensitiveQueryParams are callback and token parameters that never appear in logs verbatim.
var sensitiveQueryParams = map[string]struct{}{
	"code":          {},
	"state":         {},
	"code_verifier": {},
}

// sensitivePayloadFields are token endpoint response fields masked before printing.
var sensitivePayloadFields = []string{"access_token", "refresh_token", "id_token"}

// HideAPIKey obscures a secret, keeping a few leading and trailing characters.
func HideAPIKey(apiKey string) string {
	if len(apiKey) > 8 {
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	} else if len(apiKey) > 4 {
		return apiKey[:2] + "..." + apiKey[len(apiKey)-2:]
	} else if len(apiKey) > 2 {
		return apiKey[:1] + "..." + apiKey[len(apiKey)-1:]
	}
	return apiKey
}

// MaskAuthorizationHeader masks the Authorization header value while preserving the auth type prefix.
func MaskAuthorizationHeader(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) < 2 {
		return HideAPIKey(value)
	}
	return parts[0] + " " + HideAPIKey(parts[1])
}

// MaskSensitiveQuery masks sensitive query parameters, e.g. code or access_token, within the raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart := part
		valuePart := ""
		if idx := strings.Index(part, "="); idx >= 0 {
			keyPart = part[:idx]
			valuePart = part[idx+1:]
		}
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		masked := HideAPIKey(strings.TrimSpace(decodedValue))
		parts[i] = keyPart + "=" + url.QueryEscape(masked)
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := sensitiveQueryParams[key]; ok {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}

// MaskTokenPayload returns a copy of a JSON token payload with token values obscured.
// Payloads that are not JSON objects are returned unchanged.
func MaskTokenPayload(payload []byte) []byte {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return payload
	}
	out := payload
	for _, field := range sensitivePayloadFields {
		value := gjson.GetBytes(out, field)
		if !value.Exists() || value.Type != gjson.String {
			continue
		}
		masked, err := sjson.SetBytes(out, field, HideAPIKey(value.String()))
		if err != nil {
			continue
		}
		out = masked
	}
	return out
}
