package export

import "strings"

const maxStemLength = 60

// fileStem turns a title into a lowercase ASCII slug. Runs of anything other
// than letters and digits collapse to one hyphen.
func fileStem(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	stem := b.String()
	if len(stem) > maxStemLength {
		stem = strings.TrimRight(stem[:maxStemLength], "-")
	}
	if stem == "" {
		return "project-brief"
	}
	return stem
}
