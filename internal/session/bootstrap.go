package session

import (
	"net/url"
	"strconv"
	"strings"
)

// Location is the view of the current page address that Bootstrap needs.
type Location interface {
	// Fragment returns the text after '#', with or without the leading '#'.
	Fragment() string
	// ClearFragment removes the fragment from the visible address.
	ClearFragment()
}

// Fragment is the typed result of parsing an implicit-grant callback fragment.
type Fragment struct {
	AccessToken string
	State       string
	TokenType   string
	ExpiresIn   int64

	// Extra holds any other well-formed pairs, by key.
	Extra map[string]string

	hasToken bool
	hasState bool
}

// HasAccessToken reports whether an access_token pair was present.
func (f Fragment) HasAccessToken() bool { return f.hasToken }

// HasState reports whether a state pair was present.
func (f Fragment) HasState() bool { return f.hasState }

// ParseFragment splits a fragment into key=value pairs joined by '&'.
//
// Pairs without '=' are dropped. Percent escapes in values are decoded when
// they are valid and kept raw otherwise; '+' is kept, since tokens may
// contain it. For a repeated key the last pair wins.
func ParseFragment(fragment string) Fragment {
	fragment = strings.TrimPrefix(fragment, "#")

	var f Fragment
	if fragment == "" {
		return f
	}

	for _, pair := range strings.Split(fragment, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}

		switch key {
		case "access_token":
			f.AccessToken = value
			f.hasToken = true
		case "state":
			f.State = value
			f.hasState = true
		case "token_type":
			f.TokenType = value
		case "expires_in":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				f.ExpiresIn = n
			}
		default:
			if f.Extra == nil {
				f.Extra = make(map[string]string)
			}
			f.Extra[key] = value
		}
	}

	return f
}

// Bootstrap reads an OAuth implicit-grant callback out of loc into s.
//
// An access_token is stored as the session token and the fragment is cleared
// so the token is not reprocessed or leaked by a copied address. A state value
// is stored as-is. The token is not validated here.
func Bootstrap(s *Session, loc Location) Fragment {
	if loc == nil {
		return Fragment{}
	}

	f := ParseFragment(loc.Fragment())
	if f.HasAccessToken() {
		s.SetToken(f.AccessToken)
		loc.ClearFragment()
	}
	if f.HasState() {
		s.setState(f.State)
	}
	return f
}

// StaticLocation is a Location over a fixed fragment string.
type StaticLocation struct {
	Hash string
}

// NewLocation returns a Location for the fragment of rawURL.
// A rawURL that is only a fragment ("#access_token=...") also works.
func NewLocation(rawURL string) *StaticLocation {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return &StaticLocation{Hash: rawURL[i+1:]}
	}
	return &StaticLocation{}
}

// Fragment implements Location.
func (l *StaticLocation) Fragment() string { return l.Hash }

// ClearFragment implements Location.
func (l *StaticLocation) ClearFragment() { l.Hash = "" }
