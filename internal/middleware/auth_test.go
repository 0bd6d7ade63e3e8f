package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/models"
)

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey), "email": c.GetString(EmailKey)})
	})
	return r
}

func authRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGenerateToken(t *testing.T) {
	user := &models.User{Base: models.Base{ID: "0190a1b2-0000-7000-8000-000000000001"}, Email: "a@test.com"}

	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Subject != user.ID {
		t.Errorf("expected subject %s, got %s", user.ID, claims.Subject)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(claims *JWTClaims, key []byte) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		return s
	}
	valid := func() *JWTClaims {
		return &JWTClaims{
			UserID: "user-1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	t.Run("wrong_key", func(t *testing.T) {
		if _, err := ParseToken(sign(valid(), []byte("other-secret"))); err == nil {
			t.Error("expected error for token signed with another key")
		}
	})

	t.Run("expired", func(t *testing.T) {
		claims := valid()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		if _, err := ParseToken(sign(claims, getJWTKey())); err == nil {
			t.Error("expected error for expired token")
		}
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		claims := valid()
		claims.Issuer = "someone-else"
		if _, err := ParseToken(sign(claims, getJWTKey())); err == nil {
			t.Error("expected error for foreign issuer")
		}
	})

	t.Run("missing_user", func(t *testing.T) {
		claims := valid()
		claims.UserID = ""
		if _, err := ParseToken(sign(claims, getJWTKey())); err == nil {
			t.Error("expected error for token without user")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseToken("not-a-token"); err == nil {
			t.Error("expected error for malformed token")
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	user := &models.User{Base: models.Base{ID: "0190a1b2-0000-7000-8000-000000000002"}, Email: "b@test.com"}
	token, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("valid_token", func(t *testing.T) {
		rec := authRequest(setupAuthRouter(), "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := parseBody(t, rec)["user_id"]; got != user.ID {
			t.Errorf("expected user_id %s, got %v", user.ID, got)
		}
	})

	t.Run("scheme_is_case_insensitive", func(t *testing.T) {
		rec := authRequest(setupAuthRouter(), "bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	for name, header := range map[string]string{
		"missing_header": "",
		"wrong_scheme":   "Basic " + token,
		"invalid_token":  "Bearer nope",
		"empty_token":    "Bearer ",
		"extra_segment":  "Bearer " + token + " extra",
	} {
		t.Run(name, func(t *testing.T) {
			rec := authRequest(setupAuthRouter(), header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %q", code)
			}
		})
	}
}
