package csv

import "strings"

// bom is the UTF-8 byte order mark some exporters put before the header.
const bom = "\ufeff"

// StripHeaderBOM drops a byte order mark from the first column name. names is
// modified in place and returned.
func StripHeaderBOM(names []string) []string {
	if len(names) > 0 {
		names[0] = strings.TrimPrefix(names[0], bom)
	}
	return names
}
