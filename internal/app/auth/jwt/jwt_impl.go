package jwt

import (
	"crypto/rsa"
	"os"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	customErrors "github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/config"
)

const leeway = 2 * time.Minute

type JwtUtilImpl struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
}

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	privPem, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read private key")
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse private key")
	}

	pubPem, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "read public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "parse public key")
	}

	return &JwtUtilImpl{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}, nil
}

func (j *JwtUtilImpl) registered(userID uuid.UUID, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    j.issuer,
		Audience:  jwt.ClaimStrings{j.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (j *JwtUtilImpl) GenerateAccessToken(userID uuid.UUID, telegramID int64, roles []string) (token string, exp time.Time, jti string, err error) {
	claims := jwt2.AccessClaims{
		RegisteredClaims: j.registered(userID, j.accessTTL),
		Roles:            roles,
		TelegramID:       telegramID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign access token")
	}

	return signed, claims.ExpiresAt.Time, claims.ID, nil
}

func (j *JwtUtilImpl) GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error) {
	claims := jwt2.RefreshClaims{
		RegisteredClaims: j.registered(userID, j.refreshTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign refresh token")
	}

	return signed, claims.ExpiresAt.Time, claims.ID, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (jwt2.AccessClaims, error) {
	var claims jwt2.AccessClaims
	if err := j.parse(raw, &claims); err != nil {
		return jwt2.AccessClaims{}, err
	}
	return claims, nil
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (jwt2.RefreshClaims, error) {
	var claims jwt2.RefreshClaims
	if err := j.parse(raw, &claims); err != nil {
		return jwt2.RefreshClaims{}, err
	}
	return claims, nil
}

func (j *JwtUtilImpl) parse(raw string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.publicKey, nil
	}, jwt.WithIssuedAt(), jwt.WithLeeway(leeway))

	if err != nil || !token.Valid {
		return customErrors.ErrInvalidToken
	}

	iss, err := claims.GetIssuer()
	if err != nil {
		return customErrors.WrapInternal(errors.Wrap(err, "issuer"), "parse claims")
	}
	if j.issuer != "" && iss != j.issuer {
		return customErrors.ErrInvalidToken
	}

	if j.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains([]string(aud), j.audience) {
			return customErrors.ErrInvalidToken
		}
	}

	if sub, err := claims.GetSubject(); err != nil || sub == "" {
		return customErrors.ErrInvalidToken
	}
	return nil
}
