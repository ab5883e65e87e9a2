package bridge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// URIError describes why an ss:// URI was rejected. URI holds the raw input;
// Error prints it with the credentials hidden.
type URIError struct {
	URI    string
	Reason string
	Cause  error
}

func (e *URIError) Error() string {
	uri := redactURI(e.URI)
	if len(uri) > 64 {
		uri = uri[:64] + "..."
	}
	if e.Cause == nil {
		return fmt.Sprintf("invalid ss uri %q: %s", uri, e.Reason)
	}
	return fmt.Sprintf("invalid ss uri %q: %s: %v", uri, e.Reason, e.Cause)
}

func (e *URIError) Unwrap() error { return e.Cause }

// redactURI replaces the userinfo of s with ***. Without an '@' the whole
// payload may be legacy base64 of method:password@host:port, so all of it is
// hidden. Query and fragment are dropped.
func redactURI(s string) string {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	rest, _, _ = strings.Cut(rest, "#")
	rest, _, _ = strings.Cut(rest, "?")
	switch at := strings.LastIndexByte(rest, '@'); {
	case at >= 0:
		rest = "***" + rest[at:]
	case rest != "":
		rest = "***"
	}
	return scheme + "://" + rest
}

// ParseURI parses a SIP002 ss:// URI. Both the userinfo form
// ss://b64(method:password)@host:port and the legacy form
// ss://b64(method:password@host:port) are accepted; a #fragment name is
// ignored. Plugins are not supported.
func ParseURI(s string) (Configuration, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "ss://") {
		return Configuration{}, &URIError{URI: s, Reason: "scheme must be ss://"}
	}

	withoutFrag, _, _ := strings.Cut(s, "#")
	withoutQuery, query, _ := strings.Cut(withoutFrag, "?")
	if query != "" {
		return Configuration{}, &URIError{URI: s, Reason: "query parameters (plugins) are not supported"}
	}

	rest := strings.TrimPrefix(withoutQuery, "ss://")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return Configuration{}, &URIError{URI: s, Reason: "missing content after ss://"}
	}

	var userinfo, hostPort string
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		decoded, err := decodeBase64(rest[:at])
		if err != nil {
			// SIP002 allows plain percent-encoded userinfo for AEAD ciphers.
			unescaped, uerr := url.PathUnescape(rest[:at])
			if uerr != nil {
				return Configuration{}, &URIError{URI: s, Reason: "userinfo is neither base64 nor percent-encoded", Cause: uerr}
			}
			decoded = unescaped
		}
		userinfo, hostPort = decoded, rest[at+1:]
	} else {
		decoded, err := decodeBase64(rest)
		if err != nil {
			return Configuration{}, &URIError{URI: s, Reason: "base64 decoding failed", Cause: err}
		}
		at := strings.LastIndexByte(decoded, '@')
		if at < 0 {
			return Configuration{}, &URIError{URI: s, Reason: "decoded content lacks '@'"}
		}
		userinfo, hostPort = decoded[:at], decoded[at+1:]
	}

	method, password, ok := strings.Cut(userinfo, ":")
	method = strings.TrimSpace(method)
	if !ok || method == "" || password == "" {
		return Configuration{}, &URIError{URI: s, Reason: "userinfo must be method:password"}
	}
	if strings.ContainsAny(method+password, "\r\n\x00") {
		return Configuration{}, &URIError{URI: s, Reason: "userinfo contains control characters"}
	}

	host, port, err := parseHostPort(hostPort)
	if err != nil {
		return Configuration{}, &URIError{URI: s, Reason: "invalid host or port", Cause: err}
	}

	return Configuration{Address: host, Port: port, Password: password, Cipher: strings.ToLower(method)}, nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

func decodeBase64(s string) (string, error) {
	// Standard alphabet first, then URL-safe, each with and without padding.
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err != nil {
			lastErr = err
			continue
		}
		if !utf8.Valid(b) {
			return "", errors.New("decoded value is not valid utf-8")
		}
		return string(b), nil
	}
	return "", lastErr
}
