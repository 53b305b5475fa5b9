package jobs

import (
	"fmt"
	"strings"
)

// HelpText is HELP's job-output payload, preserved verbatim from the
// reference implementation's usage banner (SPEC_FULL.md §C.1).
const HelpText = "Available commands:\n" +
	"  WRITE [(key,value)(key2,value2),...]\n" +
	"  READ [key,key2,...]\n" +
	"  DELETE [key,key2,...]\n" +
	"  SHOW\n" +
	"  WAIT <delay_ms>\n" +
	"  BACKUP\n" +
	"  HELP\n"

// FormatRead builds READ's output line: "[(k,v)(k,KVSERROR)...]\n", with
// KVSERROR standing in for a miss so the output preserves request order.
func FormatRead(keys []string, values map[string][]byte) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, k := range keys {
		if v, ok := values[k]; ok {
			fmt.Fprintf(&b, "(%s,%s)", k, v)
		} else {
			fmt.Fprintf(&b, "(%s,KVSERROR)", k)
		}
	}
	b.WriteByte(']')
	b.WriteByte('\n')
	return b.String()
}

// FormatDelete builds DELETE's output: "[(k,KVSMISSING)...]\n" listing only
// the keys that didn't exist, or "" if every key was deleted.
func FormatDelete(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for _, k := range missing {
		fmt.Fprintf(&b, "(%s,KVSMISSING)", k)
	}
	b.WriteByte(']')
	b.WriteByte('\n')
	return b.String()
}
