package formatter

import (
	"io"
	"regexp"

	"github.com/valyala/fasttemplate"
)

const (
	BlockOpen  = "<=="
	BlockClose = "==>"
)

// Tokens recognised by Render. Anything else in braces is left as written.
var Tokens = []string{
	"slot_id", "title", "date", "time",
	"server_date", "server_time", "server_tz",
	"client_date", "client_time", "client_tz", "client_timezone",
	"time_remaining",
}

var knownTokens = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Tokens))
	for _, name := range Tokens {
		m[name] = struct{}{}
	}
	return m
}()

var conditionalBlock = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(BlockOpen) + `(.*?)` + regexp.QuoteMeta(BlockClose))

// Render substitutes {token} occurrences from values. Only names in Tokens are replaced;
// any other {tag}, or a token with no value, is written back unchanged.
func Render(template string, values map[string]string) string {
	return fasttemplate.ExecuteFuncString(template, "{", "}", func(w io.Writer, tag string) (int, error) {
		if _, ok := knownTokens[tag]; ok {
			if v, ok := values[tag]; ok {
				return io.WriteString(w, v)
			}
		}
		return io.WriteString(w, "{"+tag+"}")
	})
}

// ApplyConditionalBlocks keeps the interior of every <==...==> region when keep is true
// and drops the region entirely otherwise. Markers never survive.
func ApplyConditionalBlocks(text string, keep bool) string {
	if keep {
		return conditionalBlock.ReplaceAllString(text, "${1}")
	}
	return conditionalBlock.ReplaceAllString(text, "")
}
