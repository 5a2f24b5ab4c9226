package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenManager(t *testing.T) {
	m, err := NewTokenManager("s3cret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	token, err := m.Generate("billing-app")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Subject != "billing-app" {
		t.Errorf("subject = %q, want billing-app", claims.Subject)
	}
	if claims.Issuer != Issuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, Issuer)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m, _ := NewTokenManager("s3cret", time.Minute)
	other, _ := NewTokenManager("different", time.Minute)

	token, _ := other.Generate("billing-app")

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired, _ := m.Generate("billing-app")
		m.now = func() time.Time { return time.Now().Add(time.Hour) }
		defer func() { m.now = time.Now }()

		if _, err := m.Validate(expired); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})
}

func TestNewTokenManager_EmptySecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Minute); !errors.Is(err, ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}
}
