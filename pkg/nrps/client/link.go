package client

import "strings"

// NextPageURL extracts the rel="next" target of an RFC 5988 Link header
// value, as attached to a membership by the client.
func NextPageURL(link string) (string, bool) {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segs[1:] {
			name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(name), "rel") {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
				if strings.EqualFold(rel, "next") {
					return target[1 : len(target)-1], true
				}
			}
		}
	}
	return "", false
}
