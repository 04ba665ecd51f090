package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/retailpos/retailpos-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "retailpos",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	locID := uuid.New()
	payload := AccessTokenPayload{
		UserID:      uuid.New(),
		Login:       "k1",
		DisplayName: "Kasia",
		Role:        "cashier",
		LocationID:  &locID,
	}

	signed, err := MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != payload.UserID {
		t.Fatalf("expected user id %s, got %s", payload.UserID, claims.UserID)
	}
	if claims.Role != "cashier" {
		t.Fatalf("expected role cashier, got %s", claims.Role)
	}
	if claims.LocationID == nil || *claims.LocationID != locID {
		t.Fatal("expected location id to round-trip")
	}
}

func TestMintRejectsUnknownRole(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Login:  "k1",
		Role:   "superuser",
	})
	if err == nil {
		t.Fatal("expected role validation error")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Login:  "k1",
		Role:   "cashier",
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Login:  "k1",
		Role:   "cashier",
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	bad := cfg
	bad.Secret = "other-secret"
	if _, err := ParseAccessToken(bad, signed); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}
