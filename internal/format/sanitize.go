package format

import "github.com/microcosm-cc/bluemonday"

// sanitizer strips dangerous markup before markdown conversion. Grounded on
// haowjy-meridian's docsystem/converter/sanitizer, which wraps
// bluemonday.UGCPolicy the same way.
type sanitizer struct {
	policy *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &sanitizer{policy: policy}
}

func (s *sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
