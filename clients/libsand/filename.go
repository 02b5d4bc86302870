package libsand

import "strings"

// UserFromFilename splits a name of the form <realname>_<owner>_ into the real
// file name and its owner. The owner is the text between the last two
// underscores, so real names may contain underscores themselves.
func UserFromFilename(filename string) (realname string, owner string, ok bool) {
	if !strings.HasSuffix(filename, "_") {
		return "", "", false
	}
	trimmed := filename[:len(filename)-1]

	i := strings.LastIndexByte(trimmed, '_')
	if i <= 0 || i == len(trimmed)-1 {
		return "", "", false
	}
	return trimmed[:i], trimmed[i+1:], true
}
