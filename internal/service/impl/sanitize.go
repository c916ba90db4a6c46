package impl

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// sanitizeContent strips markup from message text. Text nodes are kept as
// written (entities are not decoded), and the bodies of script and style
// elements are dropped together with their tags. Only complete tags and
// comments count as markup: a '<' that never closes stays in the text.
func sanitizeContent(in string) string {
	z := html.NewTokenizer(strings.NewReader(in))
	var b strings.Builder
	b.Grow(len(in))
	skipDepth := 0
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Whatever the tokenizer gave up on (an unterminated tag at end
			// of input, or a read error) is kept verbatim.
			if skipDepth == 0 && consumed < len(in) {
				b.WriteString(in[consumed:])
			}
			return strings.TrimSpace(b.String())
		}
		raw := z.Raw()
		consumed += len(raw)
		switch tt {
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(raw)
			}
		case html.CommentToken, html.DoctypeToken:
			if skipDepth == 0 && !declarationClosed(raw) {
				b.Write(raw)
			}
		case html.StartTagToken:
			if isDroppedElement(z) {
				skipDepth++
			}
		case html.EndTagToken:
			if isDroppedElement(z) && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

// declarationClosed reports whether a comment or doctype token was terminated
// before end of input. The tokenizer hands back unterminated ones as ordinary
// tokens running to EOF.
func declarationClosed(raw []byte) bool {
	s := string(raw)
	if strings.HasPrefix(s, "<!--") {
		return s == "<!-->" || s == "<!--->" ||
			strings.HasSuffix(s, "-->") || strings.HasSuffix(s, "--!>")
	}
	return strings.HasSuffix(s, ">")
}

func isDroppedElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Iframe, atom.Noscript, atom.Template:
		return true
	}
	return false
}
