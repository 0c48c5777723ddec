package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMissingSellerID means no identity source yielded a seller.
var ErrMissingSellerID = errors.New("missing seller id")

// SellerHeader and SellerQueryParam are the fallback identity sources when no
// bearer token is supplied. Identity resolution itself is external; the value
// is only used to partition subscriptions and catalog rows.
const (
	SellerHeader     = "X-Seller-Id"
	SellerQueryParam = "sellerId"
)

// ResolveSellerID extracts the seller identity from the request. A bearer
// token (Authorization header or `token` query parameter) wins when present
// and must validate; otherwise the seller header, then the query parameter.
func ResolveSellerID(r *http.Request, validator TokenValidator) (string, error) {
	if token := extractToken(r); token != "" && validator != nil {
		claims, err := validator.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
	if seller := strings.TrimSpace(r.Header.Get(SellerHeader)); seller != "" {
		return seller, nil
	}
	if seller := strings.TrimSpace(r.URL.Query().Get(SellerQueryParam)); seller != "" {
		return seller, nil
	}
	return "", ErrMissingSellerID
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
