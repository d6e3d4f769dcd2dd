// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package web

import (
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/samber/oops"

	"github.com/helpdesk/helpdesk/internal/auth"
)

// generatedHashKeyLen is the HMAC key size used when none is configured.
const generatedHashKeyLen = 64

// CookieCodec reads and writes the tamper-evident session cookie.
type CookieCodec struct {
	name   string
	secure bool
	codec  *securecookie.SecureCookie
}

// NewCookieCodec creates a CookieCodec. A nil hashKey generates a random key,
// which invalidates every cookie on restart. A nil blockKey disables encryption.
func NewCookieCodec(name string, hashKey, blockKey []byte, secure bool) (*CookieCodec, error) {
	if name == "" {
		return nil, oops.Code("COOKIE_CONFIG_INVALID").Errorf("cookie name is required")
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(generatedHashKeyLen)
		if hashKey == nil {
			return nil, oops.Code("COOKIE_KEY_GENERATE_FAILED").Errorf("failed to generate cookie hash key")
		}
	}

	codec := securecookie.New(hashKey, blockKey)
	// Session expiry belongs to the session store, not the cookie.
	codec.MaxAge(0)
	codec.SetSerializer(securecookie.NopEncoder{})

	return &CookieCodec{name: name, secure: secure, codec: codec}, nil
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

// Read returns the session token carried by the request cookie. A missing
// cookie returns ok == false with a nil error; a cookie that fails
// verification returns an error.
func (c *CookieCodec) Read(r *http.Request) (token string, ok bool, err error) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false, nil
	}
	var raw []byte
	if err := c.codec.Decode(c.name, cookie.Value, &raw); err != nil {
		return "", false, oops.Code("COOKIE_INVALID").Wrap(err)
	}
	return string(raw), true, nil
}

// Write sets the session cookie for id.
func (c *CookieCodec) Write(w http.ResponseWriter, id auth.SessionID) error {
	encoded, err := c.codec.Encode(c.name, []byte(id.String()))
	if err != nil {
		return oops.Code("COOKIE_ENCODE_FAILED").Wrap(err)
	}
	http.SetCookie(w, c.cookie(encoded, 0))
	return nil
}

// Expire tells the client to drop the session cookie.
func (c *CookieCodec) Expire(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *CookieCodec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	}
}
