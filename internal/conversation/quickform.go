package conversation

import (
	"fmt"
	"regexp"
	"strings"
)

// Quick-form mode collects name, phone and address in one message. Two
// parse strategies run in order: labeled-field extraction wins per field,
// then positional line-splitting fills only fields still missing. Success
// requires all three fields with a valid phone.

var (
	labeledName    = regexp.MustCompile(`(?im)^\s*(?:name|নাম)\s*[:ঃ-]\s*(.+)$`)
	labeledPhone   = regexp.MustCompile(`(?im)^\s*(?:phone|mobile|number|ফোন|মোবাইল|নাম্বার)\s*[:ঃ-]\s*(.+)$`)
	labeledAddress = regexp.MustCompile(`(?im)^\s*(?:address|ঠিকানা|এড্রেস)\s*[:ঃ-]\s*(.+)$`)

	// phoneInText finds a candidate number anywhere inside a line.
	phoneInText = regexp.MustCompile(`(?:\+?88)?01[3-9][\d -]{8,12}`)
)

// QuickFormResult carries the parsed fields; Complete reports whether all
// three were found with a valid phone.
type QuickFormResult struct {
	Name    string
	Phone   string
	Address string
}

func (r QuickFormResult) Complete() bool {
	return r.Name != "" && r.Phone != "" && r.Address != ""
}

// ParseQuickForm extracts name/phone/address from a single message.
func ParseQuickForm(input string) QuickFormResult {
	var result QuickFormResult

	// Strategy 1: labeled fields.
	if m := labeledName.FindStringSubmatch(input); m != nil {
		candidate := strings.TrimSpace(m[1])
		if nameShape.MatchString(candidate) {
			result.Name = titleCaser.String(strings.ToLower(candidate))
		}
	}
	if m := labeledPhone.FindStringSubmatch(input); m != nil {
		result.Phone = normalizeLoosePhone(m[1])
	}
	if m := labeledAddress.FindStringSubmatch(input); m != nil {
		result.Address = strings.TrimSpace(m[1])
	}

	if result.Complete() {
		return result
	}

	// Strategy 2: positional. The phone regex anchors the split: name
	// before the phone line, address after it. Only fills missing fields.
	lines := splitNonEmptyLines(input)
	phoneLine := -1
	for i, line := range lines {
		if isLabeledLine(line) {
			continue
		}
		if m := phoneInText.FindString(line); m != "" {
			if normalized := normalizeLoosePhone(m); normalized != "" {
				if result.Phone == "" {
					result.Phone = normalized
				}
				phoneLine = i
				break
			}
		}
	}

	if phoneLine >= 0 {
		if result.Name == "" {
			for i := 0; i < phoneLine; i++ {
				candidate := strings.TrimSpace(lines[i])
				if !isLabeledLine(candidate) && nameShape.MatchString(candidate) {
					result.Name = titleCaser.String(strings.ToLower(candidate))
					break
				}
			}
		}
		if result.Address == "" && phoneLine+1 < len(lines) {
			var rest []string
			for _, line := range lines[phoneLine+1:] {
				if !isLabeledLine(line) {
					rest = append(rest, strings.TrimSpace(line))
				}
			}
			address := strings.Join(rest, ", ")
			if len([]rune(address)) >= 10 {
				result.Address = address
			}
		}
	}

	return result
}

func splitNonEmptyLines(input string) []string {
	var lines []string
	for _, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// isLabeledLine reports whether a line was already consumed by strategy 1.
func isLabeledLine(line string) bool {
	return labeledName.MatchString(line) || labeledPhone.MatchString(line) || labeledAddress.MatchString(line)
}

// normalizeLoosePhone validates a phone candidate that may carry trailing
// text or separators.
func normalizeLoosePhone(candidate string) string {
	digits := nonDigits.ReplaceAllString(candidate, "")
	if strings.HasPrefix(digits, "88") && len(digits) == 13 {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "01") && digits[2] >= '3' && digits[2] <= '9' {
		return digits
	}
	return ""
}

func handleAwaitingCustomerDetails(trimmed, normalized string, cctx *Context, settings *ResolvedSettings) Match {
	if cls := Classify(normalized); cls.Interruption != InterruptNone && len([]rune(trimmed)) < 25 {
		// Short questions are interruptions; longer messages are treated as
		// form attempts since addresses carry lookalike keywords.
		return answerInterruption(cls.Interruption, StateAwaitingCustomerDetails, cctx, settings)
	}

	parsed := ParseQuickForm(trimmed)
	if !parsed.Complete() {
		// Never silently drop a partial parse: re-prompt with the format and
		// carry the field summary so the failed attempt is visible in logs.
		return Match{
			Matched:  true,
			Action:   FastInvalid,
			Response: settings.Template(TplQuickFormRetry, nil),
			NewState: StateAwaitingCustomerDetails,
			Detail:   quickFormDetail(parsed),
		}
	}

	m := acceptAddress(parsed.Address, cctx, settings)
	m.Action = FastCollectDetails
	m.Patch.CustomerName = &parsed.Name
	m.Patch.CustomerPhone = &parsed.Phone
	return m
}

// quickFormDetail summarizes which fields an incomplete parse managed to
// extract.
func quickFormDetail(r QuickFormResult) string {
	return fmt.Sprintf("quick form incomplete: name=%t phone=%t address=%t",
		r.Name != "", r.Phone != "", r.Address != "")
}
