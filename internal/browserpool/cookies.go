package browserpool

import (
	"fmt"
	"net/http"

	"github.com/go-rod/rod/lib/proto"
)

// SetCookies parses one or more Set-Cookie syntax strings (the X-Set-Cookie
// request header's format) and applies them to bc's page before navigation.
func (bc *BrowserContext) SetCookies(setCookieHeaders ...string) error {
	if len(setCookieHeaders) == 0 {
		return nil
	}

	h := http.Header{}
	for _, v := range setCookieHeaders {
		h.Add("Set-Cookie", v)
	}
	resp := http.Response{Header: h}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return fmt.Errorf("browserpool: no valid cookies in Set-Cookie header")
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}

	if err := bc.Page.SetCookies(params); err != nil {
		return fmt.Errorf("browserpool: set cookies: %w", err)
	}
	return nil
}
