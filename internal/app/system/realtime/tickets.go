package realtime

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ticketIssuer = "studyhub-realtime"

// ErrInvalidTicket covers every way a ticket can fail verification.
var ErrInvalidTicket = errors.New("realtime: invalid ticket")

// Tickets issues short-lived HS256 tokens that let a client open the
// websocket where cookies are not sent (native apps, cross-origin).
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type ticketClaims struct {
	jwt.RegisteredClaims
}

// NewTickets creates an issuer. ttl defaults to one minute.
func NewTickets(secret string, ttl time.Duration) *Tickets {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Tickets{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a ticket for the user's ObjectID hex.
func (t *Tickets) Issue(id string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := ticketClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    ticketIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return token, exp, err
}

// Verify returns the ObjectID hex the ticket was issued for.
func (t *Tickets) Verify(token string) (string, error) {
	var claims ticketClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ticketIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidTicket
	}
	return claims.Subject, nil
}
