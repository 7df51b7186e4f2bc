package security

import (
	"strings"
	"testing"
	"time"
)

func TestInviteTokenRoundTrip(t *testing.T) {
	token, err := GenerateInviteToken(42, "  Invitee@Example.COM ", time.Hour, "secret")
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}

	claims, err := VerifyInviteToken(token, "secret")
	if err != nil {
		t.Fatalf("VerifyInviteToken: %v", err)
	}
	if claims.PoolID != 42 {
		t.Fatalf("expected pool 42, got %d", claims.PoolID)
	}
	if claims.Email != "invitee@example.com" {
		t.Fatalf("expected normalized email, got %q", claims.Email)
	}
}

func TestInviteTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateInviteToken(1, "a@b.de", time.Hour, "secret")
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	if _, err := VerifyInviteToken(token, "other-secret"); err == nil {
		t.Fatalf("expected verification with wrong secret to fail")
	}
}

func TestInviteTokenRejectsTampering(t *testing.T) {
	token, err := GenerateInviteToken(1, "a@b.de", time.Hour, "secret")
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	parts := strings.SplitN(token, ".", 2)
	tampered := parts[0] + "x." + parts[1]
	if _, err := VerifyInviteToken(tampered, "secret"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
}

func TestInviteTokenExpiry(t *testing.T) {
	token, err := GenerateInviteToken(1, "a@b.de", -time.Minute, "secret")
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	if _, err := VerifyInviteToken(token, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestInviteTokenRequiresSecret(t *testing.T) {
	if _, err := GenerateInviteToken(1, "a@b.de", time.Hour, ""); err == nil {
		t.Fatalf("expected generation without secret to fail")
	}
	if _, err := VerifyInviteToken("x.y", ""); err == nil {
		t.Fatalf("expected verification without secret to fail")
	}
}
