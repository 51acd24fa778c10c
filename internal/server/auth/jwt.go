// Package auth issues and checks delete tokens. A delete token is handed to
// the uploader when a transfer is committed and lets them remove it before
// it expires; it is the only operation the relay authorizes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret is returned when tokens would be signed with an empty key.
var ErrNoSecret = errors.New("auth: empty signing secret")

// Claims carries the standard claims plus the transfer the token may delete.
type Claims struct {
	jwt.RegisteredClaims
	TransferID string `json:"tid"`
}

// GenerateToken signs a delete token for transferID that is valid until
// expiresAt, which callers set to the transfer's own deadline.
func GenerateToken(transferID string, secretKey []byte, expiresAt time.Time) (string, error) {
	if len(secretKey) == 0 {
		return "", ErrNoSecret
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    common.ServerName,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TransferID: transferID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetTransferIDFromToken validates tokenString and returns the transfer it
// names. Expiry is judged against now, the clock the relay stamps transfers
// with; nil means time.Now. Every failure is reported as
// common.ErrInvalidToken.
func GetTransferIDFromToken(tokenString string, secretKey []byte, now func() time.Time) (string, error) {
	if len(secretKey) == 0 {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, ErrNoSecret)
	}
	if now == nil {
		now = time.Now
	}
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(common.ServerName), jwt.WithTimeFunc(now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.TransferID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.TransferID, nil
}

// Authorize checks that tokenString permits deleting transferID.
func Authorize(tokenString string, secretKey []byte, transferID string, now func() time.Time) error {
	id, err := GetTransferIDFromToken(tokenString, secretKey, now)
	if err != nil {
		return err
	}
	if id != transferID {
		return fmt.Errorf("%w: token is for another transfer", common.ErrInvalidToken)
	}
	return nil
}
