package track

import "strings"

// titleReplacer decodes the HTML entities search results leak through and
// swaps markup-significant characters for harmless lookalikes so titles do
// not break Discord's link/markdown rendering.
var titleReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&amp;", "&",
	"[", "【",
	"]", "】",
	"*", `"`,
	"_", " ",
	"{", "(",
	"}", ")",
)

// CleanTitle normalizes a provider-supplied title for display.
func CleanTitle(s string) string {
	s = titleReplacer.Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
