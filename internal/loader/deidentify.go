package loader

import "regexp"

var deidentifyRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`([가-힣]{2,4})(님|씨|과장|팀장|대리|부장|차장|주임|선생님|교수님)`), "[NAME]${2}"},
	{regexp.MustCompile(`([가-힣]{2,4})\s*(수사관|검사|사무관|조사관|드림|올림)`), "[NAME] ${2}"},
	{regexp.MustCompile(`\d{2,3}-\d{3,4}-\d{4}`), "[TEL]"},
	{regexp.MustCompile(`\d{10,14}`), "[ACC]"},
	{regexp.MustCompile(`https?://\S+`), "[URL]"},
	{regexp.MustCompile(`\d{4,}`), "[NUM]"},
}

// Deidentify masks personal names with honorifics or titles, phone numbers, account numbers,
// URLs, and remaining digit runs of four or more. Rules apply in order.
func Deidentify(text string) string {
	for _, rule := range deidentifyRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return text
}
