package risk

import "regexp"

// Trigger phrases scanned in the client's last message. The set is fixed and
// enumerable; matching is case-insensitive on the whole text.
var (
	postponePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnext\s+week\b`),
		regexp.MustCompile(`(?i)\blater\b`),
		regexp.MustCompile(`(?i)\bpostpone\w*\b`),
		regexp.MustCompile(`(?i)\bcircle\s+back\b`),
		regexp.MustCompile(`(?i)\bget\s+back\s+to\s+you\b`),
		regexp.MustCompile(`(?i)\bon\s+hold\b`),
	}
	priceObjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btoo\s+expensive\b`),
		regexp.MustCompile(`(?i)\bno\s+budget\b`),
		regexp.MustCompile(`(?i)\bover\s+budget\b`),
		regexp.MustCompile(`(?i)\bcan'?t\s+afford\b`),
	}
	choseOtherPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bchose\s+another\b`),
		regexp.MustCompile(`(?i)\bwent\s+with\b`),
		regexp.MustCompile(`(?i)\bdecided\s+on\s+another\b`),
		regexp.MustCompile(`(?i)\banother\s+vendor\b`),
	}
	refusalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnot\s+interested\b`),
		regexp.MustCompile(`(?i)\bdeclin\w*\b`),
		regexp.MustCompile(`(?i)\bcancel\w*\b`),
		regexp.MustCompile(`(?i)\bno\s+longer\s+need\b`),
	}
)

// Triggers returns the named semantic triggers found in a message, in a fixed
// order so the result is deterministic.
func Triggers(text string) []string {
	if text == "" {
		return nil
	}

	anyMatch := func(pats []*regexp.Regexp) bool {
		for _, p := range pats {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}

	var triggers []string
	if anyMatch(postponePatterns) {
		triggers = append(triggers, "postpone")
	}
	if anyMatch(priceObjectionPatterns) {
		triggers = append(triggers, "price_objection")
	}
	if anyMatch(choseOtherPatterns) {
		triggers = append(triggers, "chose_other")
	}
	if anyMatch(refusalPatterns) {
		triggers = append(triggers, "refusal")
	}
	return triggers
}
