package config

import "testing"

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"api": map[string]any{
			"baseUrl": "https://api.example.com",
		},
		"realtime": map[string]any{
			"pingInterval": "30s",
		},
		"session": map[string]any{
			"safetyBuffer": "60s",
		},
		"notifications": map[string]any{
			"backfillLimit": 20,
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "API_BASEURL", want: "api.baseUrl"},
		{envKey: "REALTIME_PINGINTERVAL", want: "realtime.pingInterval"},
		{envKey: "SESSION_SAFETYBUFFER", want: "session.safetyBuffer"},
		{envKey: "NOTIFICATIONS_BACKFILLLIMIT", want: "notifications.backfillLimit"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}
