package generate

import (
	"regexp"
	"strings"
)

// Canonical aspect ratios used internally. Providers map these onto their
// own enums at submission time.
const (
	RatioLandscape = "16:9"
	RatioPortrait  = "9:16"
)

// ratioTagPattern matches an inline ratio tag the UI appends to the prompt,
// e.g. "[ratio:1280:720]".
var ratioTagPattern = regexp.MustCompile(`\[ratio:([0-9:]+)\]`)

// portraitRatios are the raw tags that normalize to portrait orientation;
// everything else (including no tag at all) is landscape.
var portraitRatios = map[string]bool{
	"720:1280":  true,
	"1080:1920": true,
	"9:16":      true,
}

// ExtractRatio pulls the ratio tag out of a prompt, returning the canonical
// ratio and the cleaned prompt. Ratio tags are presentation hints and must
// not reach the generation model as text.
func ExtractRatio(text string) (ratio, cleaned string) {
	ratio = RatioLandscape
	if m := ratioTagPattern.FindStringSubmatch(text); m != nil {
		if portraitRatios[m[1]] {
			ratio = RatioPortrait
		}
		text = ratioTagPattern.ReplaceAllString(text, "")
	}
	return ratio, strings.TrimSpace(text)
}

// NormalizeChoice maps a requested value onto a provider's allowed set,
// falling back to the provider default. Allowed sets are configuration, not
// code: each provider validates against its own enum.
func NormalizeChoice(requested string, allowed []string, fallback string) string {
	for _, a := range allowed {
		if a == requested {
			return requested
		}
	}
	return fallback
}
